package engine

import "context"

// Step is a named, ordered list of Actions covering one provisioning
// concern. Ordering within the list matters: later actions may assume
// earlier ones succeeded. A Step carries no state of its own.
type Step struct {
	Name    string
	Actions []Action
}

// run executes the step's actions in declared order, reporting each result
// as it is produced. On the first Failed outcome the remaining actions are
// not executed and the failing result is returned alongside those gathered
// so far.
func (s Step) run(ctx context.Context, p Prober, dryRun bool, report func(Result)) ([]Result, bool) {
	var results []Result
	for _, a := range s.Actions {
		outcome, err := a.Execute(ctx, p, dryRun)
		r := Result{Step: s.Name, Action: a.Desc, Outcome: outcome, Err: err}
		results = append(results, r)
		report(r)
		if outcome == Failed {
			return results, false
		}
	}
	return results, true
}
