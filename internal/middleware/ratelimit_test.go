package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketRefillsEachSecond(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tb := &TokenBucket{capacity: 2, tokens: 2, lastSec: now.Unix(), now: func() time.Time { return now }}
	assert.True(t, tb.allow())
	assert.True(t, tb.allow())
	assert.False(t, tb.allow())
	now = now.Add(time.Second)
	assert.True(t, tb.allow())
}

func TestLimitReturns429(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tb := &TokenBucket{capacity: 1, tokens: 1, lastSec: now.Unix(), now: func() time.Time { return now }}
	h := Limit(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWrapInjectsClientIP(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	var got string
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = ClientIPFrom(r.Context()) }))

	cases := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:443", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:443", "198.51.100.2"},
		{"bad forwarded", map[string]string{"X-Forwarded-For": "garbage"}, "192.0.2.1:5555", "192.0.2.1"},
		{"remote", nil, "[2001:db8::1]:80", "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			assert.Equal(t, tc.want, got)
		})
	}
}
