package fanout

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dumacp/go-downlink/internal/metrics"
	"github.com/dumacp/go-downlink/internal/rate"
	"github.com/dumacp/go-logs/pkg/logs"
)

const (
	//DefaultPoolSize is the number of concurrent TCP subscribers.
	DefaultPoolSize     = 4
	DefaultQueueSize    = 64
	DefaultWriteTimeout = 500 * time.Millisecond
)

//ErrPoolFull is returned by Attach when every slot is taken.
var ErrPoolFull = errors.New("subscriber pool full")

//Registry is a fixed pool of TCP subscribers. Every slot fails
//independently; a closed subscriber frees its slot but the registry never
//accepts connections on its own.
type Registry struct {
	queueSize    int
	writeTimeout time.Duration
	sent         *rate.Counter
	metrics      *metrics.Metrics

	mux   sync.RWMutex
	slots []*subscriber
}

type RegistryOption func(*Registry)

//WithQueueSize bounds the lines buffered per subscriber.
func WithQueueSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

//WithSentCounter counts every line written to a subscriber.
func WithSentCounter(c *rate.Counter) RegistryOption {
	return func(r *Registry) {
		r.sent = c
	}
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(size int, opts ...RegistryOption) *Registry {
	if size <= 0 {
		size = DefaultPoolSize
	}
	r := &Registry{
		queueSize:    DefaultQueueSize,
		writeTimeout: DefaultWriteTimeout,
		slots:        make([]*subscriber, size),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

//Attach places conn in a free slot and activates it.
func (r *Registry) Attach(conn net.Conn) (int, error) {
	r.mux.Lock()
	slot := -1
	for i, s := range r.slots {
		if s == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		r.mux.Unlock()
		return -1, ErrPoolFull
	}
	s := newSubscriber(slot, conn, r.queueSize, r.writeTimeout)
	s.onSent = r.onSent
	s.onClose = r.release
	r.slots[slot] = s
	r.mux.Unlock()

	s.start()
	r.metrics.Subscribers(r.Active())
	logs.LogInfo.Printf("tcp subscriber %d (%s) connected from %s", slot, s.id, conn.RemoteAddr())
	return slot, nil
}

func (r *Registry) get(i int) *subscriber {
	r.mux.RLock()
	defer r.mux.RUnlock()
	if i < 0 || i >= len(r.slots) {
		return nil
	}
	return r.slots[i]
}

//Len is the pool size.
func (r *Registry) Len() int {
	return len(r.slots)
}

//IsActive reports whether slot i holds a subscriber ready to receive.
func (r *Registry) IsActive(i int) bool {
	s := r.get(i)
	return s != nil && s.active()
}

//SendLine queues line for slot i. A full queue closes the subscriber.
func (r *Registry) SendLine(i int, line string) error {
	s := r.get(i)
	if s == nil {
		return ErrNotActive
	}
	return s.send(line)
}

//Detach closes the subscriber in slot i.
func (r *Registry) Detach(i int) {
	if s := r.get(i); s != nil {
		s.close(errDetached)
	}
}

//Active counts the active subscribers.
func (r *Registry) Active() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	n := 0
	for _, s := range r.slots {
		if s != nil && s.active() {
			n++
		}
	}
	return n
}

//Close disconnects every subscriber.
func (r *Registry) Close() {
	r.mux.RLock()
	subs := make([]*subscriber, 0, len(r.slots))
	for _, s := range r.slots {
		if s != nil {
			subs = append(subs, s)
		}
	}
	r.mux.RUnlock()
	for _, s := range subs {
		s.close(errRegistryClosed)
	}
}

func (r *Registry) onSent() {
	r.sent.Add(1)
	r.metrics.TCPSend()
}

func (r *Registry) release(s *subscriber, cause error) {
	r.mux.Lock()
	if r.slots[s.slot] == s {
		r.slots[s.slot] = nil
	}
	r.mux.Unlock()
	switch {
	case errors.Is(cause, errRemoteClosed), errors.Is(cause, errDetached), errors.Is(cause, errRegistryClosed):
		logs.LogInfo.Printf("tcp subscriber %d (%s) closed: %s", s.slot, s.id, cause)
	default:
		r.metrics.TCPFault()
		logs.LogWarn.Printf("tcp subscriber %d (%s) fault: %s", s.slot, s.id, cause)
	}
	r.metrics.Subscribers(r.Active())
}
