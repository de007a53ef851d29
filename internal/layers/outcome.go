// Package layers loads independent GeoJSON datasets concurrently and
// registers each on a map, tolerating the failure of any subset.
package layers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Kind classifies a failed load.
type Kind string

const (
	// KindNetwork covers transport errors, timeouts and non-success statuses.
	KindNetwork Kind = "network"
	// KindParse means the body was not valid JSON.
	KindParse Kind = "parse"
	// KindRendering means the map rejected the data or style.
	KindRendering Kind = "rendering"
)

// Failure describes why a dataset did not load.
type Failure struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

// Outcome is either Success (Data set) or Failure, never both.
type Outcome struct {
	Data    json.RawMessage `json:"-"`
	Failure *Failure        `json:"failure,omitempty"`
}

// Success wraps a parsed payload.
func Success(data json.RawMessage) Outcome {
	return Outcome{Data: data}
}

// Fail builds a failed outcome.
func Fail(kind Kind, format string, args ...any) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Reason: fmt.Sprintf(format, args...)}}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Status values reported per entry.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is the outcome for one configured layer.
type Entry struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Failure  *Failure      `json:"failure,omitempty"`
	Created  bool          `json:"created,omitempty"`
	Bound    *orb.Bound    `json:"bound,omitempty"`
	Sample   bool          `json:"sample,omitempty"`
	Duration time.Duration `json:"duration"`

	data json.RawMessage
}

// OK reports whether the layer registered.
func (e Entry) OK() bool {
	return e.Status == StatusSuccess
}

// Data returns the registered payload, nil on failure.
func (e Entry) Data() json.RawMessage {
	return e.data
}

func newEntry(id string, o Outcome) Entry {
	e := Entry{ID: id, Status: StatusSuccess, data: o.Data}
	if !o.OK() {
		e.Status = StatusFailure
		e.Failure = o.Failure
		e.data = nil
	}
	return e
}

// AggregateResult lists one entry per configured layer, in configured order.
type AggregateResult struct {
	CycleID  string    `json:"cycleId"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Entries  []Entry   `json:"entries"`
}

// Succeeded returns the entries that registered.
func (r AggregateResult) Succeeded() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// Failed returns the entries that did not register.
func (r AggregateResult) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// Bounds returns the union of the bounds of every registered dataset.
// ok is false when no registered dataset had a usable bound.
func (r AggregateResult) Bounds() (orb.Bound, bool) {
	var (
		union orb.Bound
		ok    bool
	)
	for _, e := range r.Entries {
		if !e.OK() || e.Bound == nil {
			continue
		}
		if !ok {
			union, ok = *e.Bound, true
			continue
		}
		union = union.Union(*e.Bound)
	}
	return union, ok
}

// Outcome classifies the whole cycle: complete, partial or empty.
func (r AggregateResult) Outcome() string {
	n := len(r.Succeeded())
	switch {
	case n == 0:
		return "empty"
	case n == len(r.Entries):
		return "complete"
	default:
		return "partial"
	}
}
