package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequestIncrementsCounterAndHistogram(t *testing.T) {
	RecordRequest(http.MethodGet, "GetObject", 200, 10*time.Millisecond)

	count := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "GetObject", "200"))
	assert.GreaterOrEqual(t, count, float64(1))
}

func TestRecordErrorIncrementsCounter(t *testing.T) {
	RecordError("GetObject", "NotFound")

	count := testutil.ToFloat64(ErrorsTotal.WithLabelValues("GetObject", "NotFound"))
	assert.GreaterOrEqual(t, count, float64(1))
}

func TestActiveConnectionsGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)

	IncrementActiveConnections()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveConnections))

	DecrementActiveConnections()
	assert.Equal(t, before, testutil.ToFloat64(ActiveConnections))
}
