package migration

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
	"github.com/roach88/menagerie/internal/state"
)

// ErrUnreachable is returned when the step table cannot take the store from
// its version to the target.
var ErrUnreachable = errors.New("target version not reachable")

// ErrCursor is returned when a saved cursor does not belong to the step that
// should resume.
var ErrCursor = errors.New("migration cursor does not match stored version")

const itemCursor = "MigrationCursor"

// Weight is the cost of an upgrade in storage operations.
type Weight struct {
	Reads  uint64
	Writes uint64
}

// Add returns the sum of w and o.
func (w Weight) Add(o Weight) Weight {
	return Weight{Reads: w.Reads + o.Reads, Writes: w.Writes + o.Writes}
}

// IsZero reports whether no storage operation was performed.
func (w Weight) IsZero() bool {
	return w == Weight{}
}

// StepReport describes the work one step did in one Upgrade call.
type StepReport struct {
	Name     string
	From     uint32
	To       uint32
	Records  int
	Complete bool
}

// Report is the result of one Upgrade call.
type Report struct {
	// From is the stored version before the call and To the version after it.
	From uint32
	To   uint32

	Steps  []StepReport
	Weight Weight

	// Done is true when the stored version equals the target and no cursor
	// is left.
	Done bool
}

// Engine runs upgrade steps against a store.
type Engine struct {
	steps      []Step
	maxRecords int
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRecords bounds the records rewritten per Upgrade call. Zero or less
// means unbounded.
func WithMaxRecords(n int) Option {
	return func(e *Engine) {
		e.maxRecords = n
	}
}

// WithSteps replaces the step table.
func WithSteps(steps []Step) Option {
	return func(e *Engine) {
		e.steps = steps
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New returns an engine over DefaultSteps.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{steps: DefaultSteps, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if err := validateSteps(e.steps); err != nil {
		return nil, err
	}
	return e, nil
}

// Steps returns the step table.
func (e *Engine) Steps() []Step {
	return e.steps
}

// Reachable reports whether target is a version in the step table.
func (e *Engine) Reachable(target uint32) bool {
	_, ok := LayoutFor(e.steps, target)
	return ok
}

// Pending reports whether an upgrade to target has work left: the stored
// version is below target or a cursor is saved.
func (e *Engine) Pending(r kv.Store, target uint32) (bool, error) {
	v, err := state.New(r).Version.Get()
	if err != nil {
		return false, err
	}
	if v < target {
		return true, nil
	}
	return r.Has(state.PlainKey(itemCursor))
}

// Upgrade applies every step from the stored version up to target. Steps
// whose From does not equal the stored version are skipped, so a store that
// is already at or past target reports zero weight.
//
// Upgrade writes directly to s. Callers wanting all-or-nothing semantics pass
// an overlay and commit it on success.
func (e *Engine) Upgrade(s kv.Store, target uint32) (Report, error) {
	if !e.Reachable(target) {
		return Report{}, fmt.Errorf("%w: %d", ErrUnreachable, target)
	}
	reg := state.New(s)
	version, err := reg.Version.Get()
	if err != nil {
		return Report{}, err
	}
	rep := Report{From: version, To: version}
	if version >= target {
		rep.Done = true
		return rep, nil
	}
	rep.Weight.Reads++

	budget := e.maxRecords
	for _, step := range e.steps {
		if step.From != rep.To || step.To > target {
			continue
		}
		if e.maxRecords > 0 && budget == 0 {
			break
		}
		sr, w, err := e.runStep(s, step, &budget)
		rep.Weight = rep.Weight.Add(w)
		if err != nil {
			return rep, fmt.Errorf("step %s: %w", step.Name, err)
		}
		rep.Steps = append(rep.Steps, sr)
		if !sr.Complete {
			break
		}
		if err := reg.Version.Put(step.To); err != nil {
			return rep, err
		}
		rep.Weight.Writes++
		rep.To = step.To
		e.logger.Info("migration step applied",
			zap.String("step", step.Name),
			zap.Uint32("from", step.From),
			zap.Uint32("to", step.To),
			zap.Int("records", sr.Records))
	}

	if rep.To == target {
		rep.Done = true
	}
	return rep, nil
}

// runStep rewrites records of one step, resuming after a saved cursor and
// stopping when budget runs out. budget is ignored when the engine is
// unbounded.
func (e *Engine) runStep(s kv.Store, step Step, budget *int) (StepReport, Weight, error) {
	sr := StepReport{Name: step.Name, From: step.From, To: step.To}
	var w Weight

	after, err := loadCursor(s, step.From)
	w.Reads++
	if err != nil {
		return sr, w, err
	}

	var last []byte
	more := false
	err = s.Iterate(state.EntityPrefix(), func(k, v []byte) error {
		if after != nil && bytes.Compare(k, after) <= 0 {
			return nil
		}
		if e.maxRecords > 0 && *budget == 0 {
			more = true
			return kv.ErrStop
		}
		w.Reads++
		old, err := step.Source.Decode(v)
		if err != nil {
			return keyError(k, err)
		}
		out, err := step.Target.Encode(step.Transform(old))
		if err != nil {
			return keyError(k, err)
		}
		if err := s.Put(k, out); err != nil {
			return err
		}
		w.Writes++
		sr.Records++
		last = k
		if e.maxRecords > 0 {
			*budget--
		}
		return nil
	})
	if err != nil {
		return sr, w, err
	}

	if more {
		if last != nil {
			if err := saveCursor(s, step.From, last); err != nil {
				return sr, w, err
			}
			w.Writes++
		}
		e.logger.Debug("migration step paused",
			zap.String("step", step.Name),
			zap.Int("records", sr.Records))
		return sr, w, nil
	}

	if after != nil {
		if err := s.Delete(state.PlainKey(itemCursor)); err != nil {
			return sr, w, err
		}
		w.Writes++
	}
	sr.Complete = true
	return sr, w, nil
}

func keyError(k []byte, err error) error {
	if id, kerr := state.IDFromKey(k); kerr == nil {
		return fmt.Errorf("entity %d: %w", id, err)
	}
	return fmt.Errorf("key %x: %w", k, err)
}

// The cursor is u32(step from) ‖ bytes(last rewritten key).
func loadCursor(r kv.Reader, from uint32) ([]byte, error) {
	b, ok, err := r.Get(state.PlainKey(itemCursor))
	if err != nil || !ok {
		return nil, err
	}
	d := ir.NewDecoder(b)
	v := d.U32()
	key := d.Bytes()
	if err := d.Finish(); err != nil {
		return nil, fmt.Errorf("migration cursor: %w", err)
	}
	if v != from {
		return nil, fmt.Errorf("%w: cursor for %d, resuming %d", ErrCursor, v, from)
	}
	return key, nil
}

func saveCursor(w kv.Writer, from uint32, key []byte) error {
	return w.Put(state.PlainKey(itemCursor), new(ir.Encoder).U32(from).Bytes(key).Out())
}
