package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RunsTotal.WithLabelValues("backtest", StatusSuccess).Inc()
	m.TradesClosed.WithLabelValues("stop_loss").Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("backtest", StatusSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TradesClosed.WithLabelValues("stop_loss")))
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.RunsTotal.WithLabelValues("unit", StatusError))

	RecordRun("unit", errors.New("boom"), time.Millisecond)

	after := testutil.ToFloat64(DefaultMetrics.RunsTotal.WithLabelValues("unit", StatusError))
	assert.Equal(t, before+1, after)
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("miss")))
}
