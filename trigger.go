package serial

import (
	"context"
	"time"
)

// Trigger runs a job periodically outside interrupt context. Ticks and Kick
// calls only post into a one-slot channel, so at most one run is pending and
// a slow job coalesces the requests that arrive meanwhile.
type Trigger struct {
	period    time.Duration
	job       func()
	pending   chan struct{}
	coalesced func()
}

// NewTrigger returns a trigger calling job every period once Run is started.
func NewTrigger(period time.Duration, job func()) *Trigger {
	return &Trigger{
		period:  period,
		job:     job,
		pending: make(chan struct{}, 1),
	}
}

// Kick requests a run without waiting. It is safe from interrupt context.
func (t *Trigger) Kick() {
	select {
	case t.pending <- struct{}{}:
	default:
		if t.coalesced != nil {
			t.coalesced()
		}
	}
}

// Run starts the ticker and the worker and blocks until ctx is done.
// One goroutine per trigger for the ticker, one for the job. No catch-up.
func (t *Trigger) Run(ctx context.Context) {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.work(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case <-ticker.C:
			t.Kick()
		}
	}
}

func (t *Trigger) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.pending:
			t.job()
		}
	}
}
