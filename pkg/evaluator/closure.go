package evaluator

import (
	"context"
	"sync/atomic"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

// cancelCheckInterval is how many steps run between context checks.
const cancelCheckInterval = 256

// budget is the step allowance shared by a run and every lambda value it
// creates. Lambda values may be called from other goroutines.
type budget struct {
	remaining atomic.Int64
	steps     atomic.Int64
	limit     int64
	limited   bool
	// finished is set when the run returns. Lambda values called after
	// that get a budget of their own.
	finished atomic.Bool
}

func newBudget(limit int64) *budget {
	b := &budget{limit: limit, limited: limit > 0}
	b.remaining.Store(limit)
	return b
}

// Closure is the activation record of one run, or of one call of a lambda
// value. Locals holds the parameters, followed in a lambda call by the
// captured outer values.
type Closure struct {
	Constants []any
	Locals    []any

	ctx    context.Context
	budget *budget
}

func newClosure(ctx context.Context, constants []any, locals int, b *budget) *Closure {
	return &Closure{Constants: constants, Locals: make([]any, locals), ctx: ctx, budget: b}
}

// child creates the activation record of a lambda value call. A call
// made after the run returned is detached from the run's context.
func (c *Closure) child(constants []any, locals int) *Closure {
	if c.budget.finished.Load() {
		return newClosure(context.Background(), constants, locals, newBudget(c.budget.limit))
	}
	return newClosure(c.ctx, constants, locals, c.budget)
}

// step accounts for one node execution.
func (c *Closure) step(pos types.Position) error {
	b := c.budget
	n := b.steps.Add(1)
	if b.limited && b.remaining.Add(-1) < 0 {
		return runtimeError(types.ErrStepBudget, pos, "step budget exhausted")
	}
	if n%cancelCheckInterval == 0 && c.ctx != nil {
		if err := c.ctx.Err(); err != nil {
			return runtimeError(types.ErrCanceled, pos, "evaluation canceled: %v", err).WithCause(err)
		}
	}
	return nil
}
