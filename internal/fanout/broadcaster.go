// Package fanout delivers every reassembled line to the TCP subscribers and
// the UDP peers connected at the time it is published.
package fanout

import (
	"github.com/dumacp/go-downlink/internal/metrics"
	"github.com/dumacp/go-downlink/internal/rate"
	"github.com/dumacp/go-logs/pkg/logs"
)

//Subscribers is a slot-indexed set of stream consumers.
type Subscribers interface {
	Len() int
	IsActive(i int) bool
	SendLine(i int, line string) error
}

//Datagrams accepts lines for best-effort delivery.
type Datagrams interface {
	Enqueue(line string) bool
}

//Broadcaster publishes lines to every active consumer. Publish never
//blocks on a consumer and never fails.
type Broadcaster struct {
	tcp     Subscribers
	udp     Datagrams
	lines   *rate.Counter
	metrics *metrics.Metrics
}

type BroadcasterOption func(*Broadcaster)

//WithLineCounter counts every published line.
func WithLineCounter(c *rate.Counter) BroadcasterOption {
	return func(b *Broadcaster) {
		b.lines = c
	}
}

func WithBroadcasterMetrics(m *metrics.Metrics) BroadcasterOption {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

//NewBroadcaster takes either transport as nil when it is disabled.
func NewBroadcaster(tcp Subscribers, udp Datagrams, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		tcp: tcp,
		udp: udp,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broadcaster) Publish(line string) {
	defer func() {
		if r := recover(); r != nil {
			logs.LogError.Printf("recover publish: %v", r)
		}
	}()
	if b.tcp != nil {
		for i := 0; i < b.tcp.Len(); i++ {
			if !b.tcp.IsActive(i) {
				continue
			}
			if err := b.tcp.SendLine(i, line); err != nil {
				logs.LogBuild.Printf("tcp slot %d: %s", i, err)
			}
		}
	}
	if b.udp != nil {
		if !b.udp.Enqueue(line) {
			logs.LogBuild.Printf("udp outbox full, line dropped")
		}
	}
	b.lines.Add(1)
	b.metrics.LinePublished()
}
