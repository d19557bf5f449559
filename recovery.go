package pluggable

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RecoveryController handles runtime errors reported from module code.
// Errors arrive with their module id attached (deterministic attribution
// through the ErrorReporter surface and the orchestrator's guarded hook
// calls) rather than guessed from stack traces. A reported error moves the
// module to the error state and, while attempts remain, schedules a reload
// after an exponentially increasing delay. Exhausting the attempts emits a
// terminal recovery-failed event and leaves the module in the error state.
type RecoveryController struct {
	orch        *Orchestrator
	maxAttempts int
	base        time.Duration

	mu     sync.Mutex
	states map[string]*recoveryState
}

type recoveryState struct {
	attempts   int
	reactivate bool
	bo         *backoff.ExponentialBackOff
	timer      *time.Timer
}

func newRecoveryController(orch *Orchestrator, maxAttempts int, base time.Duration) *RecoveryController {
	if base <= 0 {
		base = time.Second
	}
	return &RecoveryController{
		orch:        orch,
		maxAttempts: maxAttempts,
		base:        base,
		states:      make(map[string]*recoveryState),
	}
}

// ReportError attributes a runtime error to a module. An empty or unknown
// module id is announced as an unattributed error event and nothing else
// happens; there is no caller waiting on runtime errors, so nothing is
// propagated.
func (r *RecoveryController) ReportError(moduleID string, err error) {
	if err == nil {
		return
	}
	ctx := context.Background()

	rec, lookupErr := r.orch.record(moduleID)
	if moduleID == "" || lookupErr != nil {
		r.orch.logger.Error("Unattributed runtime error", "module", moduleID, "error", err)
		r.orch.emitEvent(ctx, EventTypeModuleError, ModuleErrorEvent{ModuleID: "", Error: err.Error()})
		return
	}

	status, _ := r.orch.statusAndErr(rec)
	r.mu.Lock()
	st := r.state(moduleID)
	if status == StatusActive {
		st.reactivate = true
	}
	r.mu.Unlock()

	r.orch.failModule(ctx, rec, err)
	r.scheduleRetry(ctx, moduleID, err)
}

// Stop cancels every pending retry timer.
func (r *RecoveryController) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.states {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	r.states = make(map[string]*recoveryState)
}

// state returns the tracked recovery state for id, creating it on first
// use. Callers hold r.mu.
func (r *RecoveryController) state(id string) *recoveryState {
	st, ok := r.states[id]
	if !ok {
		st = &recoveryState{}
		r.states[id] = st
	}
	return st
}

// scheduleRetry books the next reload attempt, or announces terminal
// failure once the configured attempts are exhausted.
func (r *RecoveryController) scheduleRetry(ctx context.Context, id string, cause error) {
	r.mu.Lock()
	st := r.state(id)
	if r.maxAttempts <= 0 || st.attempts >= r.maxAttempts {
		attempts := st.attempts
		delete(r.states, id)
		r.mu.Unlock()
		r.orch.logger.Error("Recovery attempts exhausted", "module", id, "attempts", attempts, "error", cause)
		r.orch.emitEvent(ctx, EventTypeModuleRecoveryFailed, ModuleErrorEvent{
			ModuleID: id,
			Error:    cause.Error(),
			Attempt:  attempts,
		})
		return
	}

	st.attempts++
	if st.bo == nil {
		st.bo = r.newBackoff()
	}
	delay := st.bo.NextBackOff()
	attempt := st.attempts
	st.timer = time.AfterFunc(delay, func() { r.retry(id) })
	r.mu.Unlock()

	r.orch.logger.Info("Scheduled module recovery", "module", id, "attempt", attempt, "delay", delay)
}

// retry performs one recovery attempt: force unload, load, and reactivate
// when the module was active at the time of the original failure.
func (r *RecoveryController) retry(id string) {
	ctx := context.Background()

	r.mu.Lock()
	st, tracked := r.states[id]
	reactivate := tracked && st.reactivate
	r.mu.Unlock()
	if !tracked {
		return
	}

	if err := r.orch.Unload(ctx, id, true); err != nil {
		r.scheduleRetry(ctx, id, err)
		return
	}
	if err := r.orch.Load(ctx, id); err != nil {
		r.scheduleRetry(ctx, id, err)
		return
	}
	if reactivate {
		if err := r.orch.Activate(ctx, id); err != nil {
			r.scheduleRetry(ctx, id, err)
			return
		}
	}

	r.mu.Lock()
	if st := r.states[id]; st != nil && st.timer != nil {
		st.timer.Stop()
	}
	delete(r.states, id)
	r.mu.Unlock()

	r.orch.logger.Info("Recovered module", "module", id, "reactivated", reactivate)
}

// newBackoff builds the retry schedule: base, base*2, base*4, ... with no
// jitter, so delays stay predictable for operators and tests.
func (r *RecoveryController) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.base
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = r.base * 64
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
