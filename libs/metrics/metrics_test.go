package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/suggest", "200"))
	ObserveHTTP(http.MethodGet, "/suggest", http.StatusOK, 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/suggest", "200")))

	RateLimited("memory")
	assert.GreaterOrEqual(t, testutil.ToFloat64(rateLimited.WithLabelValues("memory")), 1.0)

	Outbound("book", "rejected")
	assert.GreaterOrEqual(t, testutil.ToFloat64(outboundRequests.WithLabelValues("book", "rejected")), 1.0)
}
