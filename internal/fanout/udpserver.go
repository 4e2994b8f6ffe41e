package fanout

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/dumacp/go-downlink/internal/metrics"
	"github.com/dumacp/go-downlink/internal/rate"
	"github.com/dumacp/go-logs/pkg/logs"
	"golang.org/x/sync/errgroup"
)

const (
	//DefaultUDPPort is the port UDP peers send their pings to.
	DefaultUDPPort      = 12367
	DefaultPingInterval = time.Second
	DefaultOutboxSize   = 256
	//Ping is the keep-alive payload.
	Ping byte = 0x02
)

const udpReadTimeout = time.Second

//UDPServer registers peers from incoming datagrams and sends them every
//line and a periodic keep-alive.
type UDPServer struct {
	addr         string
	peers        *Peers
	pingInterval time.Duration
	writeTimeout time.Duration
	outbox       chan string
	sent         *rate.Counter
	metrics      *metrics.Metrics

	conn *net.UDPConn
}

type UDPOption func(*UDPServer)

func WithPingInterval(d time.Duration) UDPOption {
	return func(s *UDPServer) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

//WithOutboxSize bounds the lines waiting to be sent.
func WithOutboxSize(n int) UDPOption {
	return func(s *UDPServer) {
		if n > 0 {
			s.outbox = make(chan string, n)
		}
	}
}

func WithUDPWriteTimeout(d time.Duration) UDPOption {
	return func(s *UDPServer) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

//WithDatagramCounter counts every datagram written to a peer.
func WithDatagramCounter(c *rate.Counter) UDPOption {
	return func(s *UDPServer) {
		s.sent = c
	}
}

func WithUDPMetrics(m *metrics.Metrics) UDPOption {
	return func(s *UDPServer) {
		s.metrics = m
	}
}

func NewUDPServer(addr string, peers *Peers, opts ...UDPOption) *UDPServer {
	s := &UDPServer{
		addr:         addr,
		peers:        peers,
		pingInterval: DefaultPingInterval,
		writeTimeout: DefaultWriteTimeout,
		outbox:       make(chan string, DefaultOutboxSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//Listen binds the UDP socket. A bind failure is fatal at startup.
func (s *UDPServer) Listen() error {
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn
	logs.LogInfo.Printf("udp server listening on %s", conn.LocalAddr())
	return nil
}

func (s *UDPServer) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

//Enqueue hands line to the sender without blocking. It returns false when
//the outbox is full and the line was dropped.
func (s *UDPServer) Enqueue(line string) bool {
	select {
	case s.outbox <- line:
		return true
	default:
		s.metrics.UDPDropped()
		return false
	}
}

//Run serves until ctx is done. Every write on the socket, keep-alives
//included, goes through a single sender.
func (s *UDPServer) Run(ctx context.Context) error {
	if s.conn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	g.Go(func() error { return s.receive(ctx) })
	g.Go(func() error { return s.send(ctx) })
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *UDPServer) receive(ctx context.Context) error {
	buf := make([]byte, 512)
	for {
		s.conn.SetReadDeadline(time.Now().Add(udpReadTimeout))
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logs.LogWarn.Printf("udp receive error: %s", err)
			continue
		}
		if n <= 0 {
			continue
		}
		if peer, fresh := s.peers.OnDatagram(from); fresh {
			logs.LogInfo.Printf("udp peer %s registered (%s)", peer.Addr, peer.Session)
		}
	}
}

func (s *UDPServer) send(ctx context.Context) error {
	tick := time.NewTicker(s.pingInterval)
	defer tick.Stop()
	ping := []byte{Ping}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			for _, p := range s.peers.AlivePeers() {
				if err := s.write(ping, p.Addr); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					s.metrics.PingFault()
					logs.LogWarn.Printf("udp ping to %s failed: %s", p.Addr, err)
				}
			}
		case line := <-s.outbox:
			peers := s.peers.AlivePeers()
			s.metrics.Peers(len(peers))
			payload := []byte(line)
			for _, p := range peers {
				if err := s.write(payload, p.Addr); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logs.LogBuild.Printf("udp send to %s failed: %s", p.Addr, err)
					continue
				}
				s.sent.Add(1)
				s.metrics.UDPSend()
			}
		}
	}
}

//write bounds each datagram by its own deadline.
func (s *UDPServer) write(payload []byte, to netip.AddrPort) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	_, err := s.conn.WriteToUDPAddrPort(payload, to)
	return err
}
