// Package rank holds the sorted-set entry shared by the cache backends.
package rank

// Entry is one scored member of a sorted set.
type Entry struct {
	Member string
	Score  float64
}
