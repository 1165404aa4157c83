package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesGeofenceMetrics(t *testing.T) {
	QueriesTotal.WithLabelValues("inside").Inc()
	before := testutil.ToFloat64(OverflowTotal)
	OverflowTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OverflowTotal))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `geofence_queries_total{classification="inside"}`)
	assert.Contains(t, string(body), "geofence_overflow_total")
}
