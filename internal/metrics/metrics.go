// Package metrics holds the prometheus instruments of the downlink daemon.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "downlink"

type Metrics struct {
	linesPublished prometheus.Counter
	tcpSends       prometheus.Counter
	tcpFaults      prometheus.Counter
	udpSends       prometheus.Counter
	udpDropped     prometheus.Counter
	pingFaults     prometheus.Counter
	subscribers    prometheus.Gauge
	peers          prometheus.Gauge
	rate           *prometheus.GaugeVec
}

//New creates the instruments and registers them with reg. A nil reg
//returns nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		linesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_published_total",
			Help:      "Lines handed to the broadcaster",
		}),
		tcpSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "sends_total",
			Help:      "Lines written to TCP subscribers",
		}),
		tcpFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "faults_total",
			Help:      "TCP subscribers closed after a write fault or overflow",
		}),
		udpSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "sends_total",
			Help:      "Datagrams written to UDP peers",
		}),
		udpDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "dropped_total",
			Help:      "Lines dropped because the UDP outbox was full",
		}),
		pingFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "ping_faults_total",
			Help:      "Keep-alive pings that failed to send",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "subscribers",
			Help:      "Active TCP subscribers",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "udp",
			Name:      "peers",
			Help:      "Alive UDP peers at the last send",
		}),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate",
			Help:      "Items handled in the last sampling window",
		}, []string{"path"}),
	}
	reg.MustRegister(
		m.linesPublished,
		m.tcpSends,
		m.tcpFaults,
		m.udpSends,
		m.udpDropped,
		m.pingFaults,
		m.subscribers,
		m.peers,
		m.rate,
	)
	return m
}

func (m *Metrics) LinePublished() {
	if m == nil {
		return
	}
	m.linesPublished.Inc()
}

func (m *Metrics) TCPSend() {
	if m == nil {
		return
	}
	m.tcpSends.Inc()
}

func (m *Metrics) TCPFault() {
	if m == nil {
		return
	}
	m.tcpFaults.Inc()
}

func (m *Metrics) UDPSend() {
	if m == nil {
		return
	}
	m.udpSends.Inc()
}

func (m *Metrics) UDPDropped() {
	if m == nil {
		return
	}
	m.udpDropped.Inc()
}

func (m *Metrics) PingFault() {
	if m == nil {
		return
	}
	m.pingFaults.Inc()
}

func (m *Metrics) Subscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) Peers(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

func (m *Metrics) Rate(path string, n int) {
	if m == nil {
		return
	}
	m.rate.WithLabelValues(path).Set(float64(n))
}

//Handler serves the registry in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
