package device

import (
	"errors"
	"io"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/looplab/fsm"
)

const (
	sStart   = "sStart"
	sConnect = "sConnect"
	sRun     = "sRun"
	sReset   = "sReset"
	sStop    = "sStop"
	sClose   = "sClose"
)

const (
	startEvent       = "startEvent"
	readFailEvent    = "readFailEvent"
	readStopEvent    = "readStopEvent"
	connectOKEvent   = "connectOKEvent"
	connectFailEvent = "connectFailEvent"
	resetEvent       = "resetEvent"
)

const (
	maxReadFail  = 6
	maxReadEmpty = 120
	maxOpenFail  = 10
)

var errQuit = errors.New("close chQuit")

func initFSM() *fsm.FSM {
	f := fsm.NewFSM(
		sStart,
		fsm.Events{
			{Name: startEvent, Src: []string{sStart, sClose}, Dst: sConnect},
			{Name: connectOKEvent, Src: []string{sConnect}, Dst: sRun},
			{Name: connectFailEvent, Src: []string{sConnect}, Dst: sReset},
			{Name: readFailEvent, Src: []string{sRun}, Dst: sClose},
			{Name: readStopEvent, Src: []string{sStart, sConnect, sRun}, Dst: sStop},
			{Name: resetEvent, Src: []string{sReset}, Dst: sStart},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				logs.LogBuild.Printf("FSM NMEA state Src: %v, state Dst: %v", e.Src, e.Dst)
			},
			"leave_state": func(e *fsm.Event) {
				if e.Err != nil {
					e.Cancel(e.Err)
				}
			},
			"before_event": func(e *fsm.Event) {
				if e.Err != nil {
					e.Cancel(e.Err)
				}
			},
		},
	)
	return f
}

//sleep waits d or until chQuit closes.
func sleep(chQuit <-chan int, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-chQuit:
		return false
	case <-t.C:
		return true
	}
}

func (a *actornmea) startfsm(chQuit chan int) {
	funcRutine := func() (errx error) {

		defer func() {
			if r := recover(); r != nil {
				logs.LogError.Println("Recovered in \"startfsm()\", ", r)
				switch x := r.(type) {
				case string:
					errx = errors.New(x)
				case error:
					errx = x
				default:
					errx = errors.New("unknown panic")
				}
			}
		}()

		current := ""
		buf := make([]byte, a.bufSize)
		countFail := 0
		countEmpty := 0
		countOpen := 0
		a.fsm.SetState(sStart)
		for {
			select {
			case <-chQuit:
				return errQuit
			default:
			}
			if current != a.fsm.Current() {
				logs.LogInfo.Printf("current state NMEA: %v", a.fsm.Current())
				current = a.fsm.Current()
			}
			switch a.fsm.Current() {

			case sStart:
				a.fsm.Event(startEvent)

			case sConnect:
				if a.source() == nil {
					if a.reopen == nil {
						a.fsm.Event(readStopEvent)
						a.rootctx.Send(a.self, &msgExhausted{err: a.reassembler.End()})
						return nil
					}
					src, err := a.reopen()
					if err != nil {
						logs.LogError.Printf("nmea source error open: %s", err)
						countOpen++
						if countOpen > maxOpenFail {
							a.fsm.Event(connectFailEvent)
						}
						if !sleep(chQuit, a.retryDelay) {
							return errQuit
						}
						break
					}
					a.setSource(src)
				}
				countOpen = 0
				countFail = 0
				countEmpty = 0
				a.reassembler.Reset()
				a.fsm.Event(connectOKEvent)

			case sReset:
				a.rootctx.Send(a.self, &msgFatal{err: errors.New("many errors opening source")})
				if !sleep(chQuit, a.resetDelay) {
					return errQuit
				}
				countOpen = 0
				a.fsm.Event(resetEvent)

			case sRun:
				src := a.source()
				if src == nil {
					a.fsm.Event(readFailEvent)
					break
				}
				n, err := src.Read(buf)
				if n > 0 {
					countEmpty = 0
					countFail = 0
					for _, line := range a.reassembler.Feed(buf[:n]) {
						a.dispatch(line)
					}
				}
				switch {
				case err == nil && n > 0:
				case err == nil, errors.Is(err, io.EOF) && a.reopen != nil:
					// serial ports report a read timeout as an empty read
					countEmpty++
					if countEmpty > maxReadEmpty {
						logs.LogWarn.Printf("no data from nmea source after %d reads", countEmpty)
						a.fsm.Event(readFailEvent)
					}
				case errors.Is(err, io.EOF):
					exhausted := a.reassembler.End()
					a.fsm.Event(readStopEvent)
					a.rootctx.Send(a.self, &msgExhausted{err: exhausted})
					return nil
				default:
					countFail++
					if countFail > maxReadFail {
						logs.LogWarn.Printf("error listen source: %s", err)
						a.fsm.Event(readFailEvent)
					}
				}

			case sClose:
				a.closeSource()
				if !sleep(chQuit, a.retryDelay) {
					return errQuit
				}
				a.fsm.Event(startEvent)

			case sStop:
				return nil

			default:
				if !sleep(chQuit, time.Second) {
					return errQuit
				}
			}
		}
	}
	go func() {
		if err := funcRutine(); err != nil && !errors.Is(err, errQuit) {
			a.rootctx.Send(a.self, &msgFatal{err: err})
		}
	}()
}
