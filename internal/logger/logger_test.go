package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Options{Level: "info", Format: "json"}.setup(&buf)
	assert.Same(t, l, L())

	l.Debug().Msg("hidden")
	l.Info().Int("geofences", 3).Msg("seed_loaded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "seed_loaded", ev["message"])
	assert.Equal(t, float64(3), ev["geofences"])
	assert.Contains(t, ev, "time")
}

func TestAccessMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := Options{Level: "debug", Format: "json"}.setup(&buf)

	var inner *zerolog.Logger
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))

	r := httptest.NewRequest("GET", "/geofences/1/contains", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	require.NotNil(t, inner)
	assert.NotEqual(t, zerolog.Disabled, inner.GetLevel())

	var ev map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev))
	assert.Equal(t, "http_access", ev["message"])
	assert.Equal(t, "req-42", ev["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), ev["status"])
	assert.Equal(t, float64(5), ev["bytes"])

	// 未携带请求 ID 时生成
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}
