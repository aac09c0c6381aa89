package skill

import (
	"context"
	"testing"

	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Fuzzy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSkill(t, db, "Go", "Concurrency")
	testutil.SeedSkill(t, db, "Go", "Testing")
	testutil.SeedSkill(t, db, "Databases", "PostgreSQL")

	got, err := NewSearch(db).Find(context.Background(), "postgr", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "PostgreSQL", got[0].Name)
	assert.Equal(t, "Databases", got[0].Category)
	assert.Equal(t, [5]int{5, 10, 15, 20, 25}, got[0].Points)

	got, err = NewSearch(db).Find(context.Background(), "go conc", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Concurrency", got[0].Name)
}

func TestSearch_EmptyQueryListsCatalog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSkill(t, db, "Go", "Testing")
	testutil.SeedSkill(t, db, "Go", "Concurrency")
	testutil.SeedSkill(t, db, "Ops", "Docker")

	got, err := NewSearch(db).Find(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Concurrency", got[0].Name)
	assert.Equal(t, "Docker", got[1].Name)
}

func TestSearch_NoMatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSkill(t, db, "Go", "Testing")

	got, err := NewSearch(db).Find(context.Background(), "zzzz", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
