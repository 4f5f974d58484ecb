package engine

import (
	"context"
	"fmt"
)

// Prober answers whether a Target already holds on the system.
//
// Satisfied must be a pure read: no side effects, safe to call repeatedly.
// Absence of the queried resource is a normal false result. An error from
// Satisfied means the state could not be determined at all (for example a
// permission failure reading a file) and is always a hard failure — it is
// never silently treated as false.
type Prober interface {
	Satisfied(ctx context.Context, t Target) (bool, error)
}

// ProbeError wraps a Prober failure so callers can tell "could not check"
// apart from "mutation failed".
type ProbeError struct {
	Target Target
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Target, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Outcome classifies what executing an Action did.
type Outcome string

const (
	// Satisfied means the target already held; no mutation was performed.
	Satisfied Outcome = "satisfied"
	// Changed means the mutation ran and succeeded.
	Changed Outcome = "changed"
	// Failed means the probe or the mutation failed.
	Failed Outcome = "failed"
)

// Action pairs a Target with the mutation that establishes it.
//
// Execute probes first and mutates only when the target does not hold, which
// is what makes re-runs safe: after a failure the correct recovery is to fix
// the cause and run again, and everything already satisfied is skipped.
type Action struct {
	Target Target
	Desc   string
	Apply  func(ctx context.Context) error
}

// Execute probes the action's target and applies the mutation if needed.
// When dryRun is true the mutation is never called and an unsatisfied target
// reports Changed, describing what a real run would do.
func (a Action) Execute(ctx context.Context, p Prober, dryRun bool) (Outcome, error) {
	ok, err := p.Satisfied(ctx, a.Target)
	if err != nil {
		return Failed, &ProbeError{Target: a.Target, Err: err}
	}
	if ok {
		return Satisfied, nil
	}
	if dryRun {
		return Changed, nil
	}
	if err := a.Apply(ctx); err != nil {
		return Failed, fmt.Errorf("%s: %w", a.Desc, err)
	}
	return Changed, nil
}
