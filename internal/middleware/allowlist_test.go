package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteGuard(t *testing.T) {
	g := NewWriteGuard("10.0.0.0/8, 192.0.2.9, not-an-ip, 2001:db8::/32")
	assert.True(t, g.Enabled())
	h := g.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	cases := []struct {
		method string
		remote string
		want   int
	}{
		{"GET", "203.0.113.1:1", http.StatusNoContent},
		{"POST", "203.0.113.1:1", http.StatusForbidden},
		{"POST", "10.1.2.3:1", http.StatusNoContent},
		{"DELETE", "192.0.2.9:1", http.StatusNoContent},
		{"DELETE", "192.0.2.10:1", http.StatusForbidden},
		{"POST", "[2001:db8::5]:1", http.StatusNoContent},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, "/geofences", nil)
		r.RemoteAddr = tc.remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, tc.want, rec.Code, tc.method+" "+tc.remote)
	}
}

func TestWriteGuardIgnoresForwardedHeaders(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("ADMIN_ALLOW_CIDRS", "")
	t.Setenv("ADMIN_ALLOW_LOCAL", "true")
	t.Setenv("ADMIN_REAL_IP_HEADER", "")
	g := WriteGuardFromEnv()
	// 外层 Wrap 会把 X-Forwarded-For 注入上下文，白名单判定不得采用
	h := Wrap(g.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })))

	r := httptest.NewRequest("DELETE", "/geofences/1", nil)
	r.RemoteAddr = "203.0.113.66:5123"
	r.Header.Set("X-Forwarded-For", "127.0.0.1")
	r.Header.Set("X-Real-IP", "127.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	r = httptest.NewRequest("DELETE", "/geofences/1", nil)
	r.RemoteAddr = "127.0.0.1:5123"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWriteGuardTrustedHeader(t *testing.T) {
	t.Setenv("ADMIN_ALLOW_CIDRS", "198.51.100.0/24")
	t.Setenv("ADMIN_ALLOW_LOCAL", "")
	t.Setenv("ADMIN_REAL_IP_HEADER", "X-Real-IP")
	g := WriteGuardFromEnv()
	h := g.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	cases := []struct {
		header string
		want   int
	}{
		{"198.51.100.20", http.StatusNoContent},
		{"bogus, 198.51.100.7", http.StatusNoContent},
		{"203.0.113.1", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("POST", "/geofences", nil)
		// 代理自身地址在白名单内也不放行，只看配置的头
		r.RemoteAddr = "198.51.100.1:443"
		if tc.header != "" {
			r.Header.Set("X-Real-IP", tc.header)
		}
		r.Header.Set("X-Forwarded-For", "198.51.100.30")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, tc.want, rec.Code, tc.header)
	}
}

func TestWriteGuardDisabled(t *testing.T) {
	t.Setenv("ADMIN_ALLOW_CIDRS", "")
	t.Setenv("ADMIN_ALLOW_LOCAL", "")
	g := WriteGuardFromEnv()
	assert.False(t, g.Enabled())

	t.Setenv("ADMIN_ALLOW_LOCAL", "true")
	assert.True(t, WriteGuardFromEnv().allowed([]byte{127, 0, 0, 1}))
}
