package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.Nil(t, New(nil))
	assert.NotPanics(t, func() {
		m.LinePublished()
		m.TCPSend()
		m.TCPFault()
		m.UDPSend()
		m.UDPDropped()
		m.PingFault()
		m.Subscribers(3)
		m.Peers(2)
		m.Rate("lines", 42)
	})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.LinePublished()
	m.LinePublished()
	m.TCPSend()
	m.Subscribers(4)
	m.Rate("lines", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.linesPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tcpSends))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.subscribers))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.rate.WithLabelValues("lines")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "downlink_lines_published_total 2"))
}
