package groundlink

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-logs/pkg/logs"
	"golang.org/x/sync/errgroup"
)

//Ping is the keep-alive byte exchanged with the daemon.
const Ping byte = 0x02

const udpReadTimeout = time.Second

//UDPReceiver keeps itself registered with the daemon by pinging it and
//parses every datagram it gets back.
type UDPReceiver struct {
	addr    string
	handler Handler
	options
}

func NewUDPReceiver(addr string, handler Handler, opts ...Option) *UDPReceiver {
	return &UDPReceiver{
		addr:    addr,
		handler: handler,
		options: newOptions(opts),
	}
}

//Run pings and receives until ctx is done.
func (r *UDPReceiver) Run(ctx context.Context) error {
	raddr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return conn.Close()
	})
	g.Go(func() error { return r.ping(ctx, conn) })
	g.Go(func() error { return r.receive(ctx, conn) })
	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (r *UDPReceiver) ping(ctx context.Context, conn *net.UDPConn) error {
	payload := []byte{Ping}
	tick := time.NewTicker(r.pingInterval)
	defer tick.Stop()
	for {
		if _, err := conn.Write(payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.handleError(err)
			logs.LogWarn.Printf("udp ping to %s failed: %s", r.addr, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func (r *UDPReceiver) receive(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, 512)
	for {
		conn.SetReadDeadline(time.Now().Add(udpReadTimeout))
		n, err := conn.Read(buf)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			// refused while the daemon is down; keep pinging
			r.handleError(err)
			continue
		}
		if n == 0 || (n == 1 && buf[0] == Ping) {
			continue
		}
		r.received.Add(1)
		if r.handler != nil {
			r.handler(sentence.Parse(string(buf[:n])))
		}
	}
}
