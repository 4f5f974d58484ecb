package engine

import "context"

// Result records the outcome of one executed Action. The sequence of
// Results produced by a run is append-only and fully determines the run's
// audit trail.
type Result struct {
	Step    string
	Action  string
	Outcome Outcome
	Err     error
}

// RunResult is the overall outcome of a Pipeline run.
type RunResult struct {
	Results    []Result
	FailedStep string // empty on success
	Err        error  // the failing action's error, nil on success
}

// OK reports whether the run completed without a failure.
func (r *RunResult) OK() bool { return r.FailedStep == "" }

// Changed reports how many actions actually mutated state.
func (r *RunResult) Changed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == Changed {
			n++
		}
	}
	return n
}

// Pipeline executes Steps sequentially in declared order with fail-fast
// semantics: the first failing Action aborts the run. There are no retries
// and no rollback — every Action is independently idempotent, so recovery
// is to fix the cause and re-run, which skips everything already satisfied.
type Pipeline struct {
	Steps    []Step
	Prober   Prober
	Reporter Reporter
	DryRun   bool
}

// Run executes the pipeline. The returned RunResult always carries every
// result produced up to the point the run stopped.
func (p *Pipeline) Run(ctx context.Context) *RunResult {
	rep := p.Reporter
	if rep == nil {
		rep = nopReporter{}
	}
	run := &RunResult{}
	for _, step := range p.Steps {
		rep.StepStarted(step.Name)
		results, ok := step.run(ctx, p.Prober, p.DryRun, rep.Report)
		run.Results = append(run.Results, results...)
		if !ok {
			last := results[len(results)-1]
			run.FailedStep = step.Name
			run.Err = last.Err
			return run
		}
	}
	return run
}
