// internal/errors/outcome.go
package errors

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Kind classifies a failure by how far it is allowed to propagate
type Kind int

const (
	// KindNone marks a successful outcome
	KindNone Kind = iota
	// KindSkippable failures cost one source or record; the run continues
	KindSkippable
	// KindFatal failures abort the run
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSkippable:
		return "skippable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalText lets diagnostics serialize the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the explicit result of one operation
type Outcome[T any] struct {
	Value T
	Err   error
	Kind  Kind
}

// Success wraps a value with no error
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Skip records a recoverable failure; v is the degraded value to carry on with
func Skip[T any](v T, err error) Outcome[T] {
	return Outcome[T]{Value: v, Err: err, Kind: KindSkippable}
}

// Fatal records a failure that must stop the run
func Fatal[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err, Kind: KindFatal}
}

// OK reports whether the operation succeeded
func (o Outcome[T]) OK() bool { return o.Err == nil }

// IsFatal reports whether the run must stop
func (o Outcome[T]) IsFatal() bool { return o.Kind == KindFatal }

// Stage names the step of a run a diagnostic came from
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StageExtract Stage = "extract"
	StageEnrich  Stage = "enrich"
	StageStorage Stage = "storage"
)

// Diagnostic is one recorded failure
type Diagnostic struct {
	Source  string    `json:"source"`
	Stage   Stage     `json:"stage"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s/%s: %s", d.Kind, d.Source, d.Stage, d.Message)
}

// Diagnostics collects failures from concurrent sources
type Diagnostics struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items []Diagnostic
}

// NewDiagnostics creates an empty collector stamping times from clock
// (the real clock when nil)
func NewDiagnostics(clock clockwork.Clock) *Diagnostics {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Diagnostics{clock: clock}
}

// Add appends d, stamping the time if unset
func (d *Diagnostics) Add(diag Diagnostic) {
	if diag.Time.IsZero() {
		diag.Time = d.clock.Now()
	}
	d.mu.Lock()
	d.items = append(d.items, diag)
	d.mu.Unlock()
}

// Skippable records err as a recoverable failure of source at stage
func (d *Diagnostics) Skippable(source string, stage Stage, err error) {
	if err == nil {
		return
	}
	d.Add(Diagnostic{Source: source, Stage: stage, Kind: KindSkippable, Message: err.Error()})
}

// Merge appends every diagnostic in items
func (d *Diagnostics) Merge(items []Diagnostic) {
	d.mu.Lock()
	d.items = append(d.items, items...)
	d.mu.Unlock()
}

// Items returns a copy of everything recorded so far
func (d *Diagnostics) Items() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.items...)
}

// Len returns the number of recorded diagnostics
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// HasFatal reports whether any fatal diagnostic was recorded
func (d *Diagnostics) HasFatal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, item := range d.items {
		if item.Kind == KindFatal {
			return true
		}
	}
	return false
}
