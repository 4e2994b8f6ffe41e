package fanout

import (
	"context"
	"errors"
	"net"

	"github.com/dumacp/go-logs/pkg/logs"
)

//DefaultTCPPort is the port TCP subscribers connect to.
const DefaultTCPPort = 12346

//TCPServer accepts subscribers into a Registry.
type TCPServer struct {
	addr     string
	registry *Registry
	ln       net.Listener
}

func NewTCPServer(addr string, registry *Registry) *TCPServer {
	return &TCPServer{addr: addr, registry: registry}
}

//Listen binds the listening socket. A bind failure is fatal at startup.
func (s *TCPServer) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	logs.LogInfo.Printf("tcp server listening on %s", ln.Addr())
	return nil
}

//Addr returns the bound address or nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

//Run accepts connections until ctx is done. Connections arriving while the
//pool is full are closed at once.
func (s *TCPServer) Run(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	defer s.registry.Close()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logs.LogWarn.Printf("tcp accept error: %s", err)
			continue
		}
		if _, err := s.registry.Attach(conn); err != nil {
			logs.LogWarn.Printf("tcp connection from %s rejected: %s", conn.RemoteAddr(), err)
			conn.Close()
		}
	}
}
