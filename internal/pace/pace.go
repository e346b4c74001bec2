// Package pace enforces a minimum interval between grants to callers that
// share a rate-limited upstream service.
package pace

import (
	"context"
	"time"
)

// Pacer spaces out acquisitions by at least the configured interval. Waiting
// callers are queued on a channel, so grants happen in arrival order and no
// caller is ever dropped.
type Pacer struct {
	interval time.Duration
	slot     chan struct{}
	last     time.Time
	now      func() time.Time
}

// New builds a pacer with the given minimum interval between grants. A zero
// or negative interval disables the delay but keeps the FIFO ordering.
func New(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		slot:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Acquire blocks until at least the configured interval has elapsed since the
// previous grant, then records the grant time and returns. Cancelling the
// context releases the caller without consuming a grant.
func (p *Pacer) Acquire(ctx context.Context) error {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slot }()

	// Only the slot holder reads or writes last, so no further locking.
	if !p.last.IsZero() {
		wait := p.interval - p.now().Sub(p.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	p.last = p.now()
	return nil
}
