package rate

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logs.LogInfo = logs.New(os.Stderr, "", 0)
	logs.LogBuild = logs.New(os.Stderr, "", 0)
	logs.LogWarn = logs.New(os.Stderr, "", 0)
	logs.LogError = logs.New(os.Stderr, "", 0)
	os.Exit(m.Run())
}

type sinkRecorder struct {
	mux   sync.Mutex
	rates map[string][]string
}

func (s *sinkRecorder) Rate(path, value string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.rates == nil {
		s.rates = make(map[string][]string)
	}
	s.rates[path] = append(s.rates[path], value)
}

func (s *sinkRecorder) get(path string) []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]string(nil), s.rates[path]...)
}

func TestCounter(t *testing.T) {
	var c Counter
	c.Add(3)
	c.Add(4)
	assert.Equal(t, 7, c.Sample())
	assert.Equal(t, 0, c.Sample())

	var nilCounter *Counter
	nilCounter.Add(1)
	assert.Equal(t, 0, nilCounter.Sample())
}

func TestCounterConcurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, c.Sample())
}

func TestReporter_Window(t *testing.T) {
	sink := &sinkRecorder{}
	lines := &Counter{}
	r := NewReporter(sink, time.Second, nil)
	r.Register("lines", lines)

	for i := 0; i < 42; i++ {
		lines.Add(1)
	}
	r.Report()
	r.Report()

	assert.Equal(t, []string{"42", "0"}, sink.get("lines"))
}

func TestReporter_Actor(t *testing.T) {
	sink := &sinkRecorder{}
	lines := &Counter{}
	r := NewReporter(sink, time.Hour, nil)
	r.Register("lines", lines)
	r.Register("udp", &Counter{})

	sys := actor.NewActorSystem()
	pid := sys.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return r }))
	defer sys.Root.Stop(pid)

	lines.Add(5)
	sys.Root.Send(pid, &MsgTick{})

	require.Eventually(t, func() bool {
		return len(sink.get("udp")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"5"}, sink.get("lines"))
	assert.Equal(t, []string{"0"}, sink.get("udp"))
}

func TestReporter_Ticks(t *testing.T) {
	sink := &sinkRecorder{}
	r := NewReporter(sink, 20*time.Millisecond, nil)
	r.Register("lines", &Counter{})

	sys := actor.NewActorSystem()
	pid := sys.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return r }))
	defer sys.Root.Stop(pid)

	require.Eventually(t, func() bool {
		return len(sink.get("lines")) >= 3
	}, 2*time.Second, 10*time.Millisecond)
}
