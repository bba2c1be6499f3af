package relay

import (
	"context"
	"time"
)

// pacer keeps the loop at a fixed period by sleeping away whatever part of
// the period the tick didn't use. A tick that overruns is followed
// immediately by the next one.
type pacer struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, now: time.Now}
}

func (p *pacer) start() {
	p.last = p.now()
}

// remaining is the time left in the current period.
func (p *pacer) remaining() time.Duration {
	left := p.interval - p.now().Sub(p.last)
	if left < 0 {
		return 0
	}
	return left
}

// wait sleeps until the end of the current period or until ctx is done.
func (p *pacer) wait(ctx context.Context) error {
	if left := p.remaining(); left > 0 {
		timer := time.NewTimer(left)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	p.last = p.now()
	return nil
}
