package fanout

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

const (
	sConnecting = "sConnecting"
	sActive     = "sActive"
	sClosed     = "sClosed"
)

const (
	readyEvent = "readyEvent"
	closeEvent = "closeEvent"
)

var (
	//ErrNotActive is returned when sending to a slot without an active subscriber.
	ErrNotActive = errors.New("subscriber not active")
	//ErrSlowConsumer closes a subscriber whose queue is full.
	ErrSlowConsumer = errors.New("slow consumer")

	errRemoteClosed   = errors.New("remote closed")
	errDetached       = errors.New("detached")
	errRegistryClosed = errors.New("registry closed")
)

//subscriber is one TCP connection receiving the line stream. Closed is
//terminal.
type subscriber struct {
	id           string
	slot         int
	conn         net.Conn
	fsm          *fsm.FSM
	queue        chan string
	done         chan struct{}
	writeTimeout time.Duration
	onSent       func()
	onClose      func(*subscriber, error)
}

func newSubscriber(slot int, conn net.Conn, queueSize int, writeTimeout time.Duration) *subscriber {
	s := &subscriber{
		id:           uuid.NewString(),
		slot:         slot,
		conn:         conn,
		queue:        make(chan string, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	s.fsm = fsm.NewFSM(
		sConnecting,
		fsm.Events{
			{Name: readyEvent, Src: []string{sConnecting}, Dst: sActive},
			{Name: closeEvent, Src: []string{sConnecting, sActive}, Dst: sClosed},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				logs.LogBuild.Printf("tcp subscriber %d state Src: %v, state Dst: %v", s.slot, e.Src, e.Dst)
			},
		},
	)
	return s
}

func (s *subscriber) start() {
	go s.writeLoop()
	go s.readLoop()
	if err := s.fsm.Event(readyEvent); err != nil {
		logs.LogBuild.Printf("tcp subscriber %d not activated: %s", s.slot, err)
	}
}

func (s *subscriber) active() bool {
	return s.fsm.Current() == sActive
}

//send queues the line without blocking.
func (s *subscriber) send(line string) error {
	if !s.active() {
		return ErrNotActive
	}
	select {
	case s.queue <- line:
		return nil
	default:
		s.close(ErrSlowConsumer)
		return ErrSlowConsumer
	}
}

//close is idempotent: only the first call wins the transition.
func (s *subscriber) close(cause error) {
	if err := s.fsm.Event(closeEvent); err != nil {
		return
	}
	close(s.done)
	s.conn.Close()
	if s.onClose != nil {
		s.onClose(s, cause)
	}
}

func (s *subscriber) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case line := <-s.queue:
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
				s.close(fmt.Errorf("write: %w", err))
				return
			}
			if s.onSent != nil {
				s.onSent()
			}
		}
	}
}

//readLoop discards whatever the client sends and detects the hang up.
func (s *subscriber) readLoop() {
	buf := make([]byte, 256)
	for {
		if _, err := s.conn.Read(buf); err != nil {
			if errors.Is(err, io.EOF) {
				err = errRemoteClosed
			}
			s.close(err)
			return
		}
	}
}
