package fanout

import (
	"os"
	"sync"
	"testing"

	"github.com/dumacp/go-downlink/internal/rate"
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logs.LogInfo = logs.New(os.Stderr, "", 0)
	logs.LogBuild = logs.New(os.Stderr, "", 0)
	logs.LogWarn = logs.New(os.Stderr, "", 0)
	logs.LogError = logs.New(os.Stderr, "", 0)
	os.Exit(m.Run())
}

type fakeSubscribers struct {
	mux    sync.Mutex
	active []bool
	lines  [][]string
	fail   map[int]error
}

func newFakeSubscribers(active ...bool) *fakeSubscribers {
	return &fakeSubscribers{
		active: active,
		lines:  make([][]string, len(active)),
		fail:   make(map[int]error),
	}
}

func (f *fakeSubscribers) Len() int { return len(f.active) }

func (f *fakeSubscribers) IsActive(i int) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.active[i]
}

func (f *fakeSubscribers) SendLine(i int, line string) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err := f.fail[i]; err != nil {
		f.active[i] = false
		return err
	}
	f.lines[i] = append(f.lines[i], line)
	return nil
}

type fakeDatagrams struct {
	lines []string
	full  bool
}

func (f *fakeDatagrams) Enqueue(line string) bool {
	if f.full {
		return false
	}
	f.lines = append(f.lines, line)
	return true
}

func TestBroadcaster_Publish(t *testing.T) {
	tcp := newFakeSubscribers(true, false, true, true)
	udp := &fakeDatagrams{}
	lines := &rate.Counter{}
	b := NewBroadcaster(tcp, udp, WithLineCounter(lines))

	input := []string{"$GPADC,1,2,3,4,5,6,7,8", "$GPRPM,1200", "$Id,7"}
	for _, l := range input {
		b.Publish(l)
	}

	assert.Equal(t, input, tcp.lines[0])
	assert.Empty(t, tcp.lines[1])
	assert.Equal(t, input, tcp.lines[2])
	assert.Equal(t, input, tcp.lines[3])
	assert.Equal(t, input, udp.lines)
	assert.Equal(t, 3, lines.Sample())
}

func TestBroadcaster_FaultIsolation(t *testing.T) {
	tcp := newFakeSubscribers(true, true, true)
	tcp.fail[1] = ErrSlowConsumer
	udp := &fakeDatagrams{full: true}
	b := NewBroadcaster(tcp, udp)

	b.Publish("a")
	b.Publish("b")

	assert.Equal(t, []string{"a", "b"}, tcp.lines[0])
	assert.Empty(t, tcp.lines[1])
	assert.False(t, tcp.IsActive(1))
	assert.Equal(t, []string{"a", "b"}, tcp.lines[2])
}

func TestBroadcaster_NoConsumers(t *testing.T) {
	lines := &rate.Counter{}
	b := NewBroadcaster(nil, nil, WithLineCounter(lines))
	assert.NotPanics(t, func() {
		b.Publish("x")
	})
	assert.Equal(t, 1, lines.Sample())
}

type panicSubscribers struct{}

func (panicSubscribers) Len() int                   { return 1 }
func (panicSubscribers) IsActive(int) bool          { return true }
func (panicSubscribers) SendLine(int, string) error { panic("boom") }

func TestBroadcaster_NeverPanics(t *testing.T) {
	b := NewBroadcaster(panicSubscribers{}, nil)
	assert.NotPanics(t, func() {
		b.Publish("x")
	})
}
