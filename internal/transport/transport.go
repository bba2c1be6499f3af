// Package transport describes the connection layer the relay server runs on.
// Implementations deliver connection lifecycle events and datagrams; the relay
// only ever sends through a Peer.
package transport

import (
	"context"
	"time"
)

// Peer is one connected remote endpoint.
type Peer interface {
	// ID is unique among the transport's live peers.
	ID() uint64
	RemoteAddr() string
	// Send queues a datagram for delivery and never blocks. A peer that
	// cannot keep up is disconnected.
	Send(data []byte)
	// Close disconnects the peer. A Disconnected event follows.
	Close()
}

type EventType int

const (
	Connected EventType = iota
	Disconnected
	Message
	Latency
)

func (t EventType) String() string {
	switch t {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Message:
		return "message"
	case Latency:
		return "latency"
	}
	return "unknown"
}

// Event is produced by the transport's own goroutines and consumed by the relay
// loop. Data is set for Message events and Latency for Latency events.
type Event struct {
	Type    EventType
	Peer    Peer
	Data    []byte
	Latency time.Duration
}

// Transport is the event source consumed by the relay loop.
type Transport interface {
	// Start begins accepting peers. It returns once the transport is ready.
	Start(ctx context.Context) error
	// Stop disconnects every peer and stops accepting new ones.
	Stop()
	Events() <-chan Event
}
