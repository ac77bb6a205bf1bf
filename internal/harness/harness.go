package harness

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/menagerie/internal/engine"
	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kitties"
	"github.com/roach88/menagerie/internal/migration"
	"github.com/roach88/menagerie/internal/state"
	"github.com/roach88/menagerie/internal/store"
	"github.com/roach88/menagerie/internal/testutil"
)

// Harness executes one scenario against a real engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *zap.Logger

	// pending holds notifications published during the current step, so
	// they are traced after the call that emitted them.
	pending []engine.Notification
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory SQLite store for isolation, with
// deterministic call IDs and block entropy derived from block labels.
//
// Execution flow:
// 1. Create fresh in-memory store, seed legacy records, build the engine
// 2. Endow accounts in name order
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with engine logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seedLegacy(st, scenario.LegacyOwners); err != nil {
		return nil, fmt.Errorf("failed to seed legacy records: %w", err)
	}

	ctx := context.Background()
	opts, err := engineOptions(scenario, logger)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(ctx, st, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	for _, name := range slices.Sorted(maps.Keys(scenario.Accounts)) {
		if err := eng.Endow(ir.AccountID(name), ir.Balance(scenario.Accounts[name])); err != nil {
			return nil, fmt.Errorf("failed to endow %s: %w", name, err)
		}
	}

	h := &Harness{store: st, engine: eng, logger: logger}
	eng.Subscribe(func(n engine.Notification) {
		h.pending = append(h.pending, n)
	})

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store:  st,
		Engine: eng,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func engineOptions(s *Scenario, logger *zap.Logger) ([]engine.EngineOption, error) {
	kcfg := kitties.DefaultConfig()
	if s.Config.Price != 0 {
		kcfg.Price = ir.Balance(s.Config.Price)
	}
	opts := []engine.EngineOption{
		engine.WithCallIDGenerator(testutil.NewSequentialIDGenerator(s.CallIDPrefix)),
		engine.WithKitties(kcfg),
		engine.WithLogger(logger),
	}
	if s.Config.ExistentialDeposit != nil {
		opts = append(opts, engine.WithExistentialDeposit(ir.Balance(*s.Config.ExistentialDeposit)))
	}
	if s.Config.TargetVersion != 0 {
		opts = append(opts, engine.WithTargetVersion(s.Config.TargetVersion))
	}
	if s.Config.MaxRecords != 0 {
		m, err := migration.New(migration.WithMaxRecords(s.Config.MaxRecords), migration.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithMigrator(m))
	}
	return opts, nil
}

// seedLegacy writes records in the original nameless layout. Record i has
// a genetic code of sixteen bytes of value i+1.
func seedLegacy(st *store.Store, owners []string) error {
	if len(owners) == 0 {
		return nil
	}
	reg := state.New(st)
	for i, owner := range owners {
		id := ir.EntityID(i)
		var dna ir.DNA
		for j := range dna {
			dna[j] = byte(i + 1)
		}
		v, err := migration.LayoutV0.Encode(migration.Entry{DNA: dna})
		if err != nil {
			return err
		}
		if err := st.Put(state.MapKey(state.ItemEntities, id), v); err != nil {
			return err
		}
		if err := reg.Owners.Insert(id, ir.AccountID(owner)); err != nil {
			return err
		}
	}
	return reg.Allocator.Set(ir.EntityID(len(owners)))
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Runs against the engine (BeginBlock, Dispatch or Upgrade)
// 2. Appends the step and any notifications it published to the trace
// 3. Compares the outcome with the expect clause
//
// Only infrastructure failures abort the run. Rejections and expectation
// mismatches are recorded on the result.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		var err error
		switch {
		case step.Block != "":
			n := h.engine.BeginBlock(testutil.Seed(step.Block))
			result.add(TraceEntry{Type: EntryBlock, Block: n})
		case step.Call != "":
			err = h.executeCall(ctx, i, step, result)
		case step.Upgrade:
			err = h.executeUpgrade(ctx, i, step, result)
		}
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
	}
	return nil
}

func (h *Harness) executeCall(ctx context.Context, i int, step FlowStep, result *Result) error {
	req, err := buildRequest(step)
	if err != nil {
		return err
	}
	args := req.Fields()
	delete(args, "op")

	h.pending = h.pending[:0]
	rcpt, err := h.engine.Dispatch(ctx, ir.AccountID(step.Caller), req)

	var want ExpectClause
	if step.Expect != nil {
		want = *step.Expect
	}

	if err != nil {
		code := rejectionCode(err)
		if code == "" {
			return err
		}
		result.add(TraceEntry{Type: EntryReject, Op: step.Call, Caller: step.Caller, Args: args, Code: code})
		if want.Error != code {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got rejection %s", i, req, outcomeName(want.Error), code))
		}
		h.logger.Debug("flow step rejected", zap.Int("step", i), zap.String("code", code))
		return nil
	}

	result.add(TraceEntry{Type: EntryCall, Seq: rcpt.Seq, Op: step.Call, Caller: step.Caller, Args: args})
	kinds := make([]string, 0, len(h.pending))
	for _, n := range h.pending {
		result.add(eventEntry(n))
		kinds = append(kinds, string(n.Event.Kind))
	}
	h.pending = h.pending[:0]

	if want.Error != "" {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected rejection %s, got success", i, req, want.Error))
	}
	if want.Events != nil && !slices.Equal(want.Events, kinds) {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected events %v, got %v", i, req, want.Events, kinds))
	}
	return nil
}

func (h *Harness) executeUpgrade(ctx context.Context, i int, step FlowStep, result *Result) error {
	rep, err := h.engine.Upgrade(ctx)
	if err != nil {
		return err
	}
	entry := TraceEntry{Type: EntryUpgrade, From: rep.From, To: rep.To}
	if !rep.Weight.IsZero() {
		entry.Seq = h.engine.Seq()
	}
	result.add(entry)

	if step.Expect != nil && step.Expect.Version != nil && *step.Expect.Version != rep.To {
		result.AddError(fmt.Sprintf("flow[%d] upgrade: expected version %d, got %d", i, *step.Expect.Version, rep.To))
	}
	return nil
}

func eventEntry(n engine.Notification) TraceEntry {
	fields := n.Event.Fields()
	delete(fields, "kind")
	return TraceEntry{Type: EntryEvent, Seq: n.Seq, Kind: string(n.Event.Kind), Fields: fields}
}

// rejectionCode returns the code of a handler or engine rejection, or ""
// for any other failure.
func rejectionCode(err error) string {
	if code := kitties.CodeOf(err); code != "" {
		return string(code)
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}

func outcomeName(code string) string {
	if code == "" {
		return "success"
	}
	return "rejection " + code
}

// buildRequest converts a call step's loosely typed args into a request.
func buildRequest(step FlowStep) (kitties.Request, error) {
	req := kitties.Request{Op: kitties.Op(step.Call)}
	var err error

	if v, ok := step.Args["name"]; ok {
		s, ok := v.(string)
		if !ok {
			return req, fmt.Errorf("arg name: expected string, got %T", v)
		}
		if req.Name, err = ir.ParseName(s); err != nil {
			return req, fmt.Errorf("arg name: %w", err)
		}
	}
	if v, ok := step.Args["recipient"]; ok {
		s, ok := v.(string)
		if !ok {
			return req, fmt.Errorf("arg recipient: expected string, got %T", v)
		}
		req.Recipient = ir.AccountID(s)
	}
	for key, dst := range map[string]*ir.EntityID{
		"parent_a":  &req.ParentA,
		"parent_b":  &req.ParentB,
		"entity_id": &req.EntityID,
	} {
		v, ok := step.Args[key]
		if !ok {
			continue
		}
		n, ok := toInt64(v)
		if !ok || n < 0 || n > int64(ir.MaxEntityID) {
			return req, fmt.Errorf("arg %s: expected entity id, got %v", key, v)
		}
		*dst = ir.EntityID(n)
	}
	return req, nil
}

// toInt64 converts the integer types YAML and SQLite produce.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case ir.EntityID:
		return int64(n), true
	case ir.Balance:
		return int64(n), true
	}
	return 0, false
}
