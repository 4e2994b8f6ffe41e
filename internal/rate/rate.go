// Package rate counts items per sampling window and reports the count of
// each window to a display.
package rate

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-downlink/internal/metrics"
	"github.com/dumacp/go-logs/pkg/logs"
)

//DefaultWindow is the sampling window of the refresh rate.
const DefaultWindow = time.Second

//Counter is a windowed counter. The zero value is ready to use and a nil
//*Counter ignores Add.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Add(n int) {
	if c == nil {
		return
	}
	c.n.Add(int64(n))
}

//Sample returns the count since the previous Sample and resets it.
func (c *Counter) Sample() int {
	if c == nil {
		return 0
	}
	return int(c.n.Swap(0))
}

//Sink receives the rate of a path as a formatted string.
type Sink interface {
	Rate(path string, value string)
}

//MsgTick asks the Reporter to sample every path.
type MsgTick struct{}

type path struct {
	name    string
	counter *Counter
}

//Reporter samples its counters every window.
type Reporter struct {
	sink    Sink
	window  time.Duration
	metrics *metrics.Metrics

	mux   sync.Mutex
	paths []path
	quit  chan int
}

func NewReporter(sink Sink, window time.Duration, m *metrics.Metrics) *Reporter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Reporter{
		sink:    sink,
		window:  window,
		metrics: m,
	}
}

//Register adds a counter reported under name.
func (r *Reporter) Register(name string, c *Counter) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.paths = append(r.paths, path{name: name, counter: c})
}

//Report samples and resets every counter.
func (r *Reporter) Report() {
	r.mux.Lock()
	paths := append([]path(nil), r.paths...)
	r.mux.Unlock()
	for _, p := range paths {
		n := p.counter.Sample()
		r.metrics.Rate(p.name, n)
		if r.sink != nil {
			r.sink.Rate(p.name, strconv.Itoa(n))
		}
	}
}

func (r *Reporter) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started:
		logs.LogInfo.Printf("actor started \"%s\"", ctx.Self().Id)
		r.stop()
		r.quit = make(chan int)
		go tick(ctx, r.window, r.quit)
	case *MsgTick:
		r.Report()
	case *actor.Stopping:
		logs.LogInfo.Printf("actor stopping \"%s\"", ctx.Self().Id)
		r.stop()
	}
}

func (r *Reporter) stop() {
	if r.quit == nil {
		return
	}
	select {
	case _, ok := <-r.quit:
		if ok {
			close(r.quit)
		}
	default:
		close(r.quit)
	}
}

func tick(ctx actor.Context, window time.Duration, quit <-chan int) {
	rootctx := ctx.ActorSystem().Root
	self := ctx.Self()
	t1 := time.NewTicker(window)
	defer t1.Stop()
	for {
		select {
		case <-t1.C:
			rootctx.Send(self, &MsgTick{})
		case <-quit:
			return
		}
	}
}
