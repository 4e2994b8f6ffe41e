package fanout

import (
	"net/netip"
	"sync"
	"time"

	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/google/uuid"
)

//DefaultPeerTimeout is how long a peer stays alive without sending.
const DefaultPeerTimeout = 5 * time.Second

//Peer is a UDP endpoint that registered by sending a datagram. Session is
//new every time the peer registers afresh.
type Peer struct {
	Addr       netip.AddrPort
	Session    string
	Registered time.Time
	LastSeen   time.Time
}

//Peers tracks UDP peers and their liveness. A peer is alive while
//now-LastSeen < timeout and expired from the moment the timeout has fully
//elapsed. Expired peers are swept by AlivePeers and re-register with a new
//session.
type Peers struct {
	timeout time.Duration
	now     func() time.Time

	mux   sync.Mutex
	peers map[netip.AddrPort]*Peer
}

type PeersOption func(*Peers)

//WithClock replaces time.Now.
func WithClock(now func() time.Time) PeersOption {
	return func(p *Peers) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPeers(timeout time.Duration, opts ...PeersOption) *Peers {
	if timeout <= 0 {
		timeout = DefaultPeerTimeout
	}
	p := &Peers{
		timeout: timeout,
		now:     time.Now,
		peers:   make(map[netip.AddrPort]*Peer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Peers) expired(peer *Peer, now time.Time) bool {
	return now.Sub(peer.LastSeen) >= p.timeout
}

//OnDatagram records a datagram received from addr. fresh is true when the
//peer was unknown or had expired.
func (p *Peers) OnDatagram(addr netip.AddrPort) (peer Peer, fresh bool) {
	addr = unmap(addr)
	now := p.now()
	p.mux.Lock()
	defer p.mux.Unlock()
	v, ok := p.peers[addr]
	if !ok || p.expired(v, now) {
		v = &Peer{
			Addr:       addr,
			Session:    uuid.NewString(),
			Registered: now,
		}
		p.peers[addr] = v
		fresh = true
	}
	v.LastSeen = now
	return *v, fresh
}

//Touch refreshes a known peer. It returns false for unknown peers.
func (p *Peers) Touch(addr netip.AddrPort) bool {
	addr = unmap(addr)
	p.mux.Lock()
	defer p.mux.Unlock()
	v, ok := p.peers[addr]
	if !ok {
		return false
	}
	v.LastSeen = p.now()
	return true
}

//IsAlive reports whether addr was seen less than timeout ago.
func (p *Peers) IsAlive(addr netip.AddrPort, timeout time.Duration) bool {
	addr = unmap(addr)
	p.mux.Lock()
	defer p.mux.Unlock()
	v, ok := p.peers[addr]
	if !ok {
		return false
	}
	return p.now().Sub(v.LastSeen) < timeout
}

//AlivePeers returns the live peers and forgets the expired ones.
func (p *Peers) AlivePeers() []Peer {
	now := p.now()
	p.mux.Lock()
	defer p.mux.Unlock()
	alive := make([]Peer, 0, len(p.peers))
	for addr, v := range p.peers {
		if p.expired(v, now) {
			logs.LogInfo.Printf("udp peer %s (%s) expired", addr, v.Session)
			delete(p.peers, addr)
			continue
		}
		alive = append(alive, *v)
	}
	return alive
}

//Len counts known peers, expired or not.
func (p *Peers) Len() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.peers)
}

func unmap(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
