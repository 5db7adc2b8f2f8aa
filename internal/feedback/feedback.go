// Package feedback records what controllers actually did with proposed
// actions. Decisions are appended to a JSONL file, one object per line, and
// aggregated into a per-action-type summary so recommendation quality can be
// tracked without a database.
package feedback

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Decision is the controller's verdict on one proposed action.
type Decision string

const (
	DecisionApply   Decision = "APPLY"
	DecisionDismiss Decision = "DISMISS"
	DecisionModify  Decision = "MODIFY"
)

func (d Decision) valid() bool {
	switch d {
	case DecisionApply, DecisionDismiss, DecisionModify:
		return true
	}
	return false
}

// Record is one logged controller decision.
type Record struct {
	ActionID   string    `json:"actionId"`
	ActionType string    `json:"actionType"`
	TrainID    string    `json:"trainId,omitempty"`
	PlanID     string    `json:"planId,omitempty"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Validate rejects records a summary could not attribute.
func (r Record) Validate() error {
	switch {
	case r.ActionID == "":
		return errors.New("feedback: action id is empty")
	case r.ActionType == "":
		return errors.New("feedback: action type is empty")
	case !r.Decision.valid():
		return fmt.Errorf("feedback: unknown decision %q", r.Decision)
	}
	return nil
}

// Log appends decision records to one JSONL file. Safe for concurrent use;
// each record is one flushed line, so a crash never corrupts earlier entries.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog opens (or creates) the decision log at path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append validates and writes one record. The timestamp is filled in when
// the caller left it zero.
func (l *Log) Append(rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode feedback record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append feedback record: %w", err)
	}
	return nil
}

// Records reads back every decision in file order. A missing file is an
// empty log, not an error.
func (l *Log) Records() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode feedback record: %w", err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read feedback log: %w", err)
	}
	return out, nil
}

// TypeSummary aggregates decisions for one action type.
type TypeSummary struct {
	ActionType string `json:"actionType"`
	Applied    int    `json:"applied"`
	Dismissed  int    `json:"dismissed"`
	Modified   int    `json:"modified"`
}

// Total is the number of decisions recorded for the type.
func (s TypeSummary) Total() int { return s.Applied + s.Dismissed + s.Modified }

// Summary groups the log's decisions by action type, sorted by type name.
func (l *Log) Summary() ([]TypeSummary, error) {
	recs, err := l.Records()
	if err != nil {
		return nil, err
	}
	byType := make(map[string]*TypeSummary)
	for _, r := range recs {
		s, ok := byType[r.ActionType]
		if !ok {
			s = &TypeSummary{ActionType: r.ActionType}
			byType[r.ActionType] = s
		}
		switch r.Decision {
		case DecisionApply:
			s.Applied++
		case DecisionDismiss:
			s.Dismissed++
		case DecisionModify:
			s.Modified++
		}
	}
	out := make([]TypeSummary, 0, len(byType))
	for _, s := range byType {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActionType < out[j].ActionType })
	return out, nil
}
