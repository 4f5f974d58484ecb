// Package audit keeps an append-only structured trail of every executed
// action, one JSON line per entry, grouped by run ID.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"provisor/internal/engine"
)

// Entry records a single executed action.
type Entry struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id"`
	Step    string    `json:"step"`
	Action  string    `json:"action"`
	Outcome string    `json:"outcome"` // "satisfied" | "changed" | "failed"
	Error   string    `json:"error,omitempty"`
}

// Trail appends entries for one run to the log file at Path. It implements
// engine.Reporter; write errors are swallowed so that logging never halts a
// provisioning run.
type Trail struct {
	Path  string
	RunID string
}

func (t *Trail) StepStarted(string) {}

func (t *Trail) Report(r engine.Result) {
	e := Entry{
		Time:    time.Now().UTC(),
		RunID:   t.RunID,
		Step:    r.Step,
		Action:  r.Action,
		Outcome: string(r.Outcome),
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	t.append(e)
}

func (t *Trail) append(e Entry) {
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(t.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	line, _ := json.Marshal(e)
	f.Write(append(line, '\n'))
}

// Read loads the last limit entries from the log at path (all if limit <= 0).
// Malformed lines are skipped.
func Read(path string, limit int) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

var _ engine.Reporter = (*Trail)(nil)
