package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Loopback is an in-process Transport. Peers are created and driven directly
// by the caller, which makes it suitable for exercising the relay without
// sockets.
type Loopback struct {
	events chan Event

	mu     sync.Mutex
	nextID uint64
}

func NewLoopback(buffer int) *Loopback {
	return &Loopback{events: make(chan Event, buffer)}
}

func (l *Loopback) Start(ctx context.Context) error {
	return nil
}

func (l *Loopback) Stop() {}

func (l *Loopback) Events() <-chan Event {
	return l.events
}

// Connect creates a peer and emits its Connected event.
func (l *Loopback) Connect() *LoopbackPeer {
	l.mu.Lock()
	l.nextID++
	p := &LoopbackPeer{id: l.nextID, transport: l}
	l.mu.Unlock()

	l.events <- Event{Type: Connected, Peer: p}
	return p
}

// LoopbackPeer records everything sent to it.
type LoopbackPeer struct {
	id        uint64
	transport *Loopback

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (p *LoopbackPeer) ID() uint64 { return p.id }

func (p *LoopbackPeer) RemoteAddr() string { return fmt.Sprintf("loopback:%d", p.id) }

func (p *LoopbackPeer) Send(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.sent = append(p.sent, append([]byte(nil), data...))
	}
}

func (p *LoopbackPeer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.transport.events <- Event{Type: Disconnected, Peer: p}
}

// Closed reports whether the peer was closed by either side.
func (p *LoopbackPeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Deliver emits a Message event as if data had arrived from the remote side.
func (p *LoopbackPeer) Deliver(data []byte) {
	p.transport.events <- Event{Type: Message, Peer: p, Data: data}
}

// ReportLatency emits a Latency event for the peer.
func (p *LoopbackPeer) ReportLatency(d time.Duration) {
	p.transport.events <- Event{Type: Latency, Peer: p, Latency: d}
}

// Drain returns and forgets every datagram sent to the peer so far.
func (p *LoopbackPeer) Drain() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	sent := p.sent
	p.sent = nil
	return sent
}
