package pluggable

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// BatchOp names a lifecycle operation that can run over a set of modules.
type BatchOp string

const (
	BatchActivate   BatchOp = "activate"
	BatchDeactivate BatchOp = "deactivate"
	BatchReload     BatchOp = "reload"
)

// BatchOptions controls batch execution.
type BatchOptions struct {
	// Parallel launches every operation concurrently and waits for all to
	// settle; sequential mode runs them one at a time in input order.
	Parallel bool

	// Force is forwarded to deactivate, cascading over active dependents.
	Force bool
}

// BatchFailure records one failed module in a batch result.
type BatchFailure struct {
	ModuleID string `json:"moduleId"`
	Err      error  `json:"error"`
}

// BatchResult partitions the input ids: every id appears in exactly one of
// the two lists. A failure never prevents the remaining ids from being
// attempted.
type BatchResult struct {
	Succeeded []string       `json:"success"`
	Failed    []BatchFailure `json:"failed"`
}

// BatchOperation applies op to every id. In parallel mode results arrive
// in nondeterministic completion order; both lists are sorted by id before
// returning so callers see stable output either way.
func (o *Orchestrator) BatchOperation(ctx context.Context, ids []string, op BatchOp, opts BatchOptions) (BatchResult, error) {
	apply, err := o.batchFunc(op, opts)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	if opts.Parallel {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				opErr := apply(ctx, id)
				mu.Lock()
				defer mu.Unlock()
				if opErr != nil {
					result.Failed = append(result.Failed, BatchFailure{ModuleID: id, Err: opErr})
				} else {
					result.Succeeded = append(result.Succeeded, id)
				}
			}(id)
		}
		wg.Wait()
	} else {
		for _, id := range ids {
			if opErr := apply(ctx, id); opErr != nil {
				result.Failed = append(result.Failed, BatchFailure{ModuleID: id, Err: opErr})
				continue
			}
			result.Succeeded = append(result.Succeeded, id)
		}
	}

	sort.Strings(result.Succeeded)
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].ModuleID < result.Failed[j].ModuleID
	})

	o.logger.Info("Batch operation finished", "op", op,
		"total", len(ids), "succeeded", len(result.Succeeded), "failed", len(result.Failed))
	return result, nil
}

func (o *Orchestrator) batchFunc(op BatchOp, opts BatchOptions) (func(context.Context, string) error, error) {
	switch op {
	case BatchActivate:
		return o.Activate, nil
	case BatchDeactivate:
		return func(ctx context.Context, id string) error {
			return o.Deactivate(ctx, id, opts.Force)
		}, nil
	case BatchReload:
		return o.Reload, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBatchOperation, op)
	}
}
