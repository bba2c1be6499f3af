// Package correlation matches inbound messages on a single connection to the
// goroutines waiting for them.
//
// A waiter registers interest in the next message of a particular type and
// then blocks on a channel. Receive hands each inbound message to the oldest
// compatible waiter; messages nobody waits for are dropped. Cancel releases
// every waiter with ErrCanceled when the connection goes away.
package correlation

import (
	"context"
	"errors"
	"sync"
)

// ErrCanceled is returned to waiters whose table was canceled.
var ErrCanceled = errors.New("correlation: canceled")

type slot[M any] struct {
	match func(M) bool
	ch    chan result[M]
}

type result[M any] struct {
	msg M
	err error
}

// Table holds the outstanding waiters of one connection. M is the message
// type flowing in; waiters select concrete types assignable from M.
type Table[M any] struct {
	mu       sync.Mutex
	slots    []*slot[M]
	canceled bool
}

func NewTable[M any]() *Table[M] {
	return &Table[M]{}
}

// Pending is a registered interest in the next message of type R.
type Pending[R any, M any] struct {
	table *Table[M]
	slot  *slot[M]
}

// Expect registers interest in the next message of type R without waiting.
// Callers that send a request should Expect the response before sending so a
// fast reply cannot slip past them.
func Expect[R any, M any](t *Table[M]) *Pending[R, M] {
	s := &slot[M]{
		match: func(m M) bool {
			_, ok := any(m).(R)
			return ok
		},
		ch: make(chan result[M], 1),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		s.ch <- result[M]{err: ErrCanceled}
	} else {
		t.slots = append(t.slots, s)
	}
	return &Pending[R, M]{table: t, slot: s}
}

// Wait blocks until the message arrives, the table is canceled or ctx is
// done. A slot abandoned through ctx is removed from the table.
func (p *Pending[R, M]) Wait(ctx context.Context) (R, error) {
	var zero R
	select {
	case res := <-p.slot.ch:
		if res.err != nil {
			return zero, res.err
		}
		return any(res.msg).(R), nil
	case <-ctx.Done():
		if !p.table.remove(p.slot) {
			// Resolved concurrently; the result is already buffered.
			res := <-p.slot.ch
			if res.err != nil {
				return zero, res.err
			}
			return any(res.msg).(R), nil
		}
		return zero, ctx.Err()
	}
}

// Await is Expect followed by Wait.
func Await[R any, M any](ctx context.Context, t *Table[M]) (R, error) {
	return Expect[R](t).Wait(ctx)
}

// Receive delivers msg to the first registered waiter whose type matches and
// reports whether one was found.
func (t *Table[M]) Receive(msg M) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.slots {
		if s.match(msg) {
			t.slots = append(t.slots[:i], t.slots[i+1:]...)
			s.ch <- result[M]{msg: msg}
			return true
		}
	}
	return false
}

// Cancel resolves every outstanding waiter with ErrCanceled. Waiters
// registered afterwards resolve immediately with ErrCanceled.
func (t *Table[M]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.canceled = true
	for _, s := range t.slots {
		s.ch <- result[M]{err: ErrCanceled}
	}
	t.slots = nil
}

// Canceled reports whether Cancel has been called.
func (t *Table[M]) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// Len returns the number of outstanding waiters.
func (t *Table[M]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

func (t *Table[M]) remove(s *slot[M]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, other := range t.slots {
		if other == s {
			t.slots = append(t.slots[:i], t.slots[i+1:]...)
			return true
		}
	}
	return false
}
