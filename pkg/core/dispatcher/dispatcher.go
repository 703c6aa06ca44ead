package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/external-adapter-go/pkg/logging"
)

// Policy selects how a dispatch reacts to failed calls.
type Policy int

const (
	// FailFast cancels outstanding calls on the first failure and fails the dispatch.
	FailFast Policy = iota
	// BestEffort lets every call settle and reports each outcome.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case BestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail_fast", "failfast", "fail-fast":
		return FailFast, nil
	case "best_effort", "besteffort", "best-effort":
		return BestEffort, nil
	default:
		return FailFast, fmt.Errorf("%w: %q (must be 'fail_fast' or 'best_effort')", ErrUnknownPolicy, s)
	}
}

// Task is one upstream call to make. Index is the position of the originating item.
type Task struct {
	Index int
	ID    string
}

// Outcome is the settled result of one Task.
type Outcome struct {
	Index    int
	ID       string
	Document interface{}
	Err      error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// CallFunc performs one upstream call for a canonical id.
type CallFunc func(ctx context.Context, id string) (interface{}, error)

// Dispatcher runs one goroutine per task and joins them at a single point.
type Dispatcher struct {
	policy Policy
	limit  int
	logger *logging.Logger
}

// New creates a dispatcher. limit caps concurrent calls; zero or less means unlimited.
func New(policy Policy, limit int, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Dispatcher{policy: policy, limit: limit, logger: logger}
}

// Policy returns the configured failure policy.
func (d *Dispatcher) Policy() Policy { return d.policy }

// Dispatch issues every task concurrently and returns outcomes sorted by Index.
//
// Under FailFast the first failure cancels the context handed to the remaining
// calls and is returned as an *ItemError; no outcomes are returned in that case.
// Under BestEffort the error is always nil and failed calls appear as outcomes
// with Err set.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []Task, call CallFunc) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes, nil
	}

	var g *errgroup.Group
	callCtx := ctx
	if d.policy == FailFast {
		g, callCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}

	for i, task := range tasks {
		g.Go(func() error {
			// Tasks queued behind the limit after a fail-fast cancellation are skipped.
			if err := callCtx.Err(); err != nil {
				outcomes[i] = Outcome{Index: task.Index, ID: task.ID, Err: err}
				if d.policy == FailFast {
					return &ItemError{Index: task.Index, ID: task.ID, Err: err}
				}
				return nil
			}

			doc, err := call(callCtx, task.ID)
			outcomes[i] = Outcome{Index: task.Index, ID: task.ID, Document: doc, Err: err}
			if err == nil {
				return nil
			}

			d.logger.Debug("Upstream call failed", "index", task.Index, "id", task.ID, "error", err)
			if d.policy == FailFast {
				return &ItemError{Index: task.Index, ID: task.ID, Err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(outcomes, func(a, b int) bool {
		return outcomes[a].Index < outcomes[b].Index
	})
	return outcomes, nil
}

// DispatchOne runs a single call. Scalar requests have no partial success, so any
// failure is returned as an error regardless of the configured policy.
func (d *Dispatcher) DispatchOne(ctx context.Context, task Task, call CallFunc) (Outcome, error) {
	one := New(FailFast, 1, d.logger)
	outcomes, err := one.Dispatch(ctx, []Task{task}, call)
	if err != nil {
		return Outcome{}, err
	}
	return outcomes[0], nil
}
