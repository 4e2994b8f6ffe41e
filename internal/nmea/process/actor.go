// Package process is the local consumer of the line stream: it parses each
// line, hands the record to the display and keeps frame quality figures.
package process

import (
	"fmt"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-downlink/internal/display"
	"github.com/dumacp/go-downlink/internal/nmea/device"
	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-logs/pkg/logs"
)

const (
	//DefaultBadFrameWindow is the period of the bad frame report.
	DefaultBadFrameWindow = 10 * time.Minute

	PathBadFrames = "badframes"
	PathTrack     = "track"
)

//MsgTick closes a bad frame window.
type MsgTick struct{}

type actorprocess struct {
	display display.Display
	window  time.Duration

	countFrames        int
	countInvalidFrames int
	lastBad            string
	track              track
	quit               chan int
}

type Option func(*actorprocess)

func WithBadFrameWindow(d time.Duration) Option {
	return func(a *actorprocess) {
		if d > 0 {
			a.window = d
		}
	}
}

func NewActor(disp display.Display, opts ...Option) actor.Actor {
	act := &actorprocess{}
	act.display = disp
	act.window = DefaultBadFrameWindow
	for _, opt := range opts {
		opt(act)
	}
	return act
}

func (a *actorprocess) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		logs.LogInfo.Printf("actor started \"%s\"", ctx.Self().Id)
		a.stop()
		a.quit = make(chan int)
		go tick(ctx, a.window, a.quit)
	case *device.MsgLine:
		a.record(msg.Line)
	case *MsgTick:
		a.report()
	case *actor.Stopping:
		logs.LogInfo.Printf("actor stopping \"%s\"", ctx.Self().Id)
		a.stop()
	}
}

func (a *actorprocess) record(line string) {
	s := sentence.Parse(line)
	a.countFrames++
	if err := check(s); err != nil {
		a.countInvalidFrames++
		if a.countInvalidFrames%5 == 0 {
			logs.LogWarn.Println(err)
		}
		a.lastBad = line
	}
	if fix, ok := s.(*sentence.Fix); ok {
		if leg := a.track.add(fix); leg > 0 {
			logs.LogBuild.Printf("distance: %v K", leg)
		}
	}
	if a.display != nil {
		a.display.Record(s)
	}
}

func check(s sentence.Sentence) error {
	switch v := s.(type) {
	case *sentence.ADC:
		if !v.Valid() {
			return fmt.Errorf("invalid fields in frame %q", v.Line)
		}
	case sentence.Line:
		if v.Type == sentence.Unknown {
			return fmt.Errorf("invalid frame %q", v.Text)
		}
	}
	return nil
}

//report publishes the bad frames per minute and the km travelled in the
//window, then starts a new one.
func (a *actorprocess) report() {
	rateBad := float64(a.countInvalidFrames) / a.window.Minutes()
	if a.countInvalidFrames > 0 {
		logs.LogWarn.Printf("last bad frame -> %q", a.lastBad)
	}
	logs.LogBuild.Printf("bad frames %d of %d", a.countInvalidFrames, a.countFrames)
	a.countFrames = 0
	a.countInvalidFrames = 0
	km := a.track.sample()
	if a.display == nil {
		return
	}
	a.display.Rate(PathBadFrames, fmt.Sprintf("%.2f", rateBad))
	a.display.Rate(PathTrack, fmt.Sprintf("%.3f", km))
}

func (a *actorprocess) stop() {
	if a.quit == nil {
		return
	}
	select {
	case _, ok := <-a.quit:
		if ok {
			close(a.quit)
		}
	default:
		close(a.quit)
	}
}

func tick(ctx actor.Context, timeout time.Duration, quit <-chan int) {
	rootctx := ctx.ActorSystem().Root
	self := ctx.Self()
	t1 := time.NewTicker(timeout)
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
