package fanout

import (
	"context"
	"sync/atomic"
)

// Tally accumulates sub-job counts over every Run made with a context
// derived from WithTally.
type Tally struct {
	total  atomic.Int64
	failed atomic.Int64
}

type tallyKey struct{}

// WithTally returns a context that counts the sub-jobs of each Run into the
// returned Tally.
func WithTally(ctx context.Context) (context.Context, *Tally) {
	t := &Tally{}
	return context.WithValue(ctx, tallyKey{}, t), t
}

// Total reports how many sub-jobs reached a terminal state.
func (t *Tally) Total() int { return int(t.total.Load()) }

// Failed reports how many sub-jobs returned an error.
func (t *Tally) Failed() int { return int(t.failed.Load()) }

func (t *Tally) add(o Outcome) {
	t.total.Add(int64(o.Total()))
	t.failed.Add(int64(o.Failed()))
}

func tallyFrom(ctx context.Context) *Tally {
	t, _ := ctx.Value(tallyKey{}).(*Tally)
	return t
}
