package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Verifications.WithLabelValues("success").Inc()
	m.Watermark.WithLabelValues("EQa").Set(1200)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Verifications.WithLabelValues("success")))
	assert.Equal(t, float64(1200), testutil.ToFloat64(m.Watermark.WithLabelValues("EQa")))
	assert.Panics(t, func() { New(reg) }, "collectors are registered once per registry")
}
