package device

import (
	"io"
	"sync"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/looplab/fsm"
)

//Publisher receives every line read from the device.
type Publisher interface {
	Publish(line string)
}

type actornmea struct {
	context     actor.Context
	rootctx     *actor.RootContext
	self        *actor.PID
	fsm         *fsm.FSM
	reassembler *sentence.Reassembler
	publisher   Publisher
	reopen      Opener
	bufSize     int
	retryDelay  time.Duration
	resetDelay  time.Duration
	chQuit      chan int

	mux        sync.Mutex
	src        io.ReadCloser
	processPID *actor.PID
}

type Option func(*actornmea)

//WithReopen sets the function used to reopen the source after it fails.
//Without it the stream ends at the first EOF.
func WithReopen(open Opener) Option {
	return func(a *actornmea) {
		a.reopen = open
	}
}

//WithBufferSize sets the size of a single read from the source.
func WithBufferSize(n int) Option {
	return func(a *actornmea) {
		if n > 0 {
			a.bufSize = n
		}
	}
}

func WithReassembler(r *sentence.Reassembler) Option {
	return func(a *actornmea) {
		if r != nil {
			a.reassembler = r
		}
	}
}

//WithRetryDelay sets the pause between reopen attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(a *actornmea) {
		if d > 0 {
			a.retryDelay = d
			a.resetDelay = 3 * d
		}
	}
}

//NewNmeaActor reads src, which may be nil when a reopen function is given,
//and publishes every complete line.
func NewNmeaActor(src io.ReadCloser, publisher Publisher, opts ...Option) actor.Actor {
	act := &actornmea{}
	act.src = src
	act.publisher = publisher
	act.bufSize = sentence.DefaultBufferSize
	act.retryDelay = 3 * time.Second
	act.resetDelay = 10 * time.Second
	act.reassembler = sentence.NewReassembler()
	for _, opt := range opts {
		opt(act)
	}
	act.fsm = initFSM()
	return act
}

func (act *actornmea) Receive(ctx actor.Context) {
	act.context = ctx
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		logs.LogInfo.Printf("actor started \"%s\"", ctx.Self().Id)
		act.rootctx = ctx.ActorSystem().Root
		act.self = ctx.Self()
		act.quit()
		act.chQuit = make(chan int)
		act.startfsm(act.chQuit)
	case *actor.Stopping:
		logs.LogInfo.Printf("actor stopping \"%s\"", ctx.Self().Id)
		act.quit()
		act.closeSource()
	case *MsgSubscribeProcess:
		if ctx.Sender() != nil {
			act.mux.Lock()
			act.processPID = ctx.Sender()
			act.mux.Unlock()
		}
	case *msgExhausted:
		logs.LogWarn.Printf("nmea source ended: %s", msg.err)
		act.closeSource()
		if parent := ctx.Parent(); parent != nil {
			ctx.Send(parent, &MsgSourceExhausted{Err: msg.err})
		}
	case *msgFatal:
		logs.LogError.Printf("nmea read failed: %s", msg.err)
	case *actor.Terminated:
		logs.LogError.Printf("actor terminated: %s", msg.Who.GetId())
	}
}

func (act *actornmea) quit() {
	if act.chQuit == nil {
		return
	}
	select {
	case _, ok := <-act.chQuit:
		if ok {
			close(act.chQuit)
		}
	default:
		close(act.chQuit)
	}
}

//dispatch runs on the fsm goroutine.
func (act *actornmea) dispatch(line string) {
	if act.publisher != nil {
		act.publisher.Publish(line)
	}
	act.mux.Lock()
	pid := act.processPID
	act.mux.Unlock()
	if pid != nil {
		act.rootctx.Send(pid, &MsgLine{Line: line})
	}
}

func (act *actornmea) source() io.ReadCloser {
	act.mux.Lock()
	defer act.mux.Unlock()
	return act.src
}

func (act *actornmea) setSource(src io.ReadCloser) {
	act.mux.Lock()
	defer act.mux.Unlock()
	act.src = src
}

func (act *actornmea) closeSource() {
	act.mux.Lock()
	src := act.src
	act.src = nil
	act.mux.Unlock()
	if src != nil {
		if err := src.Close(); err != nil {
			logs.LogBuild.Printf("nmea source close: %s", err)
		}
	}
}
