package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllowList(t *testing.T) {
	got, err := ParseAllowList([]string{"10.0.0.1", " 10.8.3.4/16 ", "::ffff:192.0.2.1", "2001:db8::/32"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.1/32"),
		netip.MustParsePrefix("10.8.0.0/16"),
		netip.MustParsePrefix("192.0.2.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, got)

	_, err = ParseAllowList([]string{"10.0.0.1", "not-an-ip"})
	assert.ErrorContains(t, err, `"not-an-ip"`)
	_, err = ParseAllowList([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestAllowFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	allow, err := ParseAllowList([]string{"192.168.1.1", "10.8.0.0/16"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		allow  []netip.Prefix
		remote string
		want   int
	}{
		{"empty list admits all", nil, "1.2.3.4:1234", http.StatusOK},
		{"single host", allow, "192.168.1.1:1234", http.StatusOK},
		{"inside range", allow, "10.8.3.4:1234", http.StatusOK},
		{"outside range", allow, "10.9.0.1:1234", http.StatusForbidden},
		{"other host", allow, "192.168.1.2:1234", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(AllowFrom(tc.allow))
			r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.RemoteAddr = tc.remote
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
