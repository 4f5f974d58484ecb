package engine

import (
	"fmt"
	"io"

	"provisor/internal/color"
)

// Reporter consumes results as the pipeline produces them. Implementations
// must be purely observational: they never affect control flow.
type Reporter interface {
	StepStarted(name string)
	Report(r Result)
}

type nopReporter struct{}

func (nopReporter) StepStarted(string) {}
func (nopReporter) Report(Result)      {}

// Console renders results as classified lines for an operator.
type Console struct {
	Out     io.Writer
	Verbose bool // also print already-satisfied lines
}

func (c *Console) StepStarted(name string) {
	fmt.Fprintf(c.Out, "\n==> %s\n", color.Bold(name))
}

func (c *Console) Report(r Result) {
	switch r.Outcome {
	case Satisfied:
		if c.Verbose {
			fmt.Fprintf(c.Out, "  %s %s\n", color.Dim("ok"), color.Dim(r.Action))
		}
	case Changed:
		fmt.Fprintf(c.Out, "  %s %s\n", color.Green("+"), r.Action)
	case Failed:
		fmt.Fprintf(c.Out, "  %s %s: %v\n", color.BoldRed("x"), r.Action, r.Err)
	}
}

// Multi fans results out to several reporters in order.
func Multi(reporters ...Reporter) Reporter { return multi(reporters) }

type multi []Reporter

func (m multi) StepStarted(name string) {
	for _, r := range m {
		r.StepStarted(name)
	}
}

func (m multi) Report(res Result) {
	for _, r := range m {
		r.Report(res)
	}
}
