package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kitties"
	"github.com/roach88/menagerie/internal/kv"
	"github.com/roach88/menagerie/internal/ledger"
	"github.com/roach88/menagerie/internal/metrics"
	"github.com/roach88/menagerie/internal/migration"
	"github.com/roach88/menagerie/internal/state"
	"github.com/roach88/menagerie/internal/store"
)

const tracerName = "github.com/roach88/menagerie/internal/engine"

// DefaultExistentialDeposit is the reference ledger's minimum balance.
const DefaultExistentialDeposit = ir.Balance(500)

// Notification is a committed event as delivered to subscribers.
type Notification struct {
	// Seq is the journal sequence number of the call that emitted it.
	Seq    int64
	CallID string
	// Index is the event's position within the call.
	Index int
	Event ir.Event
}

// Sink receives notifications in commit order.
type Sink func(Notification)

// Receipt describes a committed call.
type Receipt struct {
	CallID string
	Seq    int64
	Block  uint64
	Index  uint32
	Events []ir.Event
}

// Engine applies calls and upgrade signals against a backing store.
type Engine struct {
	mu sync.Mutex

	backend kv.Store
	journal *store.Store // set when backend is a SQLite store

	module   *kitties.Module
	ed       ir.Balance
	migrator *migration.Engine
	target   uint32

	clock   *Clock
	ids     CallIDGenerator
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	sinks    map[int]Sink
	sinkKeys []int
	nextSink int

	block uint64
	seed  ir.Seed
	index uint32
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithKitties sets the module parameters.
func WithKitties(cfg kitties.Config) EngineOption {
	return func(e *Engine) {
		e.module = kitties.New(cfg)
	}
}

// WithExistentialDeposit sets the reference ledger's minimum balance.
func WithExistentialDeposit(ed ir.Balance) EngineOption {
	return func(e *Engine) {
		e.ed = ed
	}
}

// WithMigrator replaces the migration engine.
func WithMigrator(m *migration.Engine) EngineOption {
	return func(e *Engine) {
		e.migrator = m
	}
}

// WithTargetVersion sets the layout version Upgrade migrates to.
//
// Default: migration.CurrentVersion. Targets past it leave the registry
// refusing calls once reached.
func WithTargetVersion(v uint32) EngineOption {
	return func(e *Engine) {
		e.target = v
	}
}

// WithCallIDGenerator sets the call ID source. Default: UUIDv7Generator.
func WithCallIDGenerator(g CallIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the collectors. Default: none.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer. Default: the global provider's tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an Engine over backend.
//
// A backend with no storage version and no allocated IDs is fresh and gets
// migration.CurrentVersion written. A backend with entities but no version is
// a legacy store and stays at version 0 until upgraded. When backend is a
// *store.Store the clock and block number resume from its journal.
func New(ctx context.Context, backend kv.Store, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		backend: backend,
		module:  kitties.New(kitties.DefaultConfig()),
		ed:      DefaultExistentialDeposit,
		target:  migration.CurrentVersion,
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		sinks:   make(map[int]Sink),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.migrator == nil {
		m, err := migration.New(migration.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.migrator = m
	}
	if !e.migrator.Reachable(e.target) {
		return nil, fmt.Errorf("%w: target %d", migration.ErrUnreachable, e.target)
	}

	if s, ok := backend.(*store.Store); ok {
		e.journal = s
		if err := e.resume(ctx); err != nil {
			return nil, err
		}
	}

	if err := e.genesis(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) genesis() error {
	reg := state.New(e.backend)
	initialized, err := reg.Version.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}
	var legacy bool
	err = e.backend.Iterate(state.EntityPrefix(), func(_, _ []byte) error {
		legacy = true
		return kv.ErrStop
	})
	if err != nil {
		return err
	}
	if legacy {
		e.logger.Info("legacy store found", zap.Uint32("version", 0))
		return nil
	}
	return reg.Version.Put(migration.CurrentVersion)
}

// Treasury returns the account creation fees are paid into.
func (e *Engine) Treasury() ir.AccountID {
	return e.module.Treasury()
}

// Subscribe registers fn for notifications and returns a function that
// removes it.
func (e *Engine) Subscribe(fn Sink) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.nextSink
	e.nextSink++
	e.sinks[key] = fn
	e.sinkKeys = append(e.sinkKeys, key)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.sinks, key)
		for i, k := range e.sinkKeys {
			if k == key {
				e.sinkKeys = append(e.sinkKeys[:i], e.sinkKeys[i+1:]...)
				break
			}
		}
	}
}

// BeginBlock starts a new block with the given entropy. Call indexes restart
// at zero.
func (e *Engine) BeginBlock(seed ir.Seed) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.block++
	e.seed = seed
	e.index = 0
	e.logger.Debug("block started", zap.Uint64("block", e.block))
	return e.block
}

// Block returns the current block number.
func (e *Engine) Block() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.block
}

// Endow mints amount into who through the reference ledger. It is a genesis
// helper and is not journaled.
func (e *Engine) Endow(who ir.AccountID, amount ir.Balance) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	overlay := kv.NewOverlay(e.backend)
	if err := ledger.NewBalances(overlay, e.ed).Mint(who, amount); err != nil {
		return fmt.Errorf("endow %s: %w", who, err)
	}
	return overlay.Commit(e.backend)
}

// Dispatch applies one call on behalf of caller.
//
// On success the call's writes are committed, the call and its events are
// journaled, and subscribers are notified. On failure nothing is written and
// the handler's error is returned as is. A call that reaches its handler
// consumes a position in the current block whether or not it succeeds.
func (e *Engine) Dispatch(ctx context.Context, caller ir.AccountID, req kitties.Request) (Receipt, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Dispatch", trace.WithAttributes(
		attribute.String("menagerie.op", string(req.Op)),
		attribute.String("menagerie.caller", string(caller)),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	rcpt, err := e.dispatch(ctx, caller, req)
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("menagerie.outcome", outcome))
	e.metrics.ObserveCall(string(req.Op), outcome)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if outcome == metrics.OutcomeError {
			e.logger.Error("call failed",
				zap.String("caller", string(caller)),
				zap.Stringer("request", req),
				zap.Error(err))
		} else {
			e.logger.Debug("call rejected",
				zap.String("caller", string(caller)),
				zap.Stringer("request", req),
				zap.String("code", rejectionCode(err)))
		}
		return Receipt{}, err
	}

	e.logger.Info("call dispatched",
		zap.String("call_id", rcpt.CallID),
		zap.Int64("seq", rcpt.Seq),
		zap.Uint64("block", rcpt.Block),
		zap.Uint32("index", rcpt.Index),
		zap.Stringer("request", req),
		zap.Int("events", len(rcpt.Events)))

	created := 0
	for i, ev := range rcpt.Events {
		if ev.Kind == ir.EventCreated || ev.Kind == ir.EventBred {
			created++
		}
		e.publish(Notification{Seq: rcpt.Seq, CallID: rcpt.CallID, Index: i, Event: ev})
	}
	e.metrics.ObserveCreated(created)
	return rcpt, nil
}

func (e *Engine) dispatch(ctx context.Context, caller ir.AccountID, req kitties.Request) (Receipt, error) {
	if !req.Op.Valid() {
		return Receipt{}, &RuntimeError{Code: ErrCodeUnknownOp, Message: "unknown operation", Op: string(req.Op)}
	}
	if caller == "" {
		return Receipt{}, &RuntimeError{Code: ErrCodeEmptyCaller, Message: "caller is required", Op: string(req.Op)}
	}
	if err := e.checkSchema(); err != nil {
		return Receipt{}, err
	}

	index := e.index
	e.index++

	overlay := kv.NewOverlay(e.backend)
	call := &kitties.Call{
		Caller:   caller,
		Seed:     e.seed,
		Index:    index,
		Registry: state.New(overlay),
		Ledger:   ledger.NewBalances(overlay, e.ed),
	}
	if err := e.module.Apply(call, req); err != nil {
		overlay.Discard()
		return Receipt{}, err
	}

	rcpt := Receipt{
		CallID: e.ids.Generate(),
		Seq:    e.clock.Current() + 1,
		Block:  e.block,
		Index:  index,
		Events: call.Events,
	}
	if err := e.commitCall(ctx, overlay, caller, req, rcpt); err != nil {
		overlay.Discard()
		return Receipt{}, err
	}
	e.clock.Next()
	return rcpt, nil
}

func (e *Engine) commitCall(ctx context.Context, overlay *kv.Overlay, caller ir.AccountID, req kitties.Request, rcpt Receipt) error {
	if e.journal == nil {
		if err := overlay.Commit(e.backend); err != nil {
			return fmt.Errorf("commit call: %w", err)
		}
		return nil
	}

	args := req.Fields()
	delete(args, "op")
	rec := store.CallRecord{
		Seq:            rcpt.Seq,
		ID:             rcpt.CallID,
		Op:             string(req.Op),
		Caller:         caller,
		Args:           args,
		Block:          rcpt.Block,
		Index:          rcpt.Index,
		ModuleVersion:  ir.ModuleVersion,
		JournalVersion: ir.JournalVersion,
	}
	digest, err := ir.CallDigest(store.CallPayload(rec))
	if err != nil {
		return err
	}
	rec.Digest = digest

	events := make([]store.EventRecord, len(rcpt.Events))
	for i, ev := range rcpt.Events {
		d, err := ir.EventDigest(ev)
		if err != nil {
			return err
		}
		events[i] = store.EventRecord{CallSeq: rcpt.Seq, Index: i, Event: ev, Digest: d}
	}
	return e.journal.CommitCall(ctx, overlay.Changes(), rec, events)
}

// checkSchema refuses calls while the stored layout is not the one the
// registry reads or a migration cursor is saved.
func (e *Engine) checkSchema() error {
	v, err := state.New(e.backend).Version.Get()
	if err != nil {
		return err
	}
	pending, err := e.migrator.Pending(e.backend, migration.CurrentVersion)
	if err != nil {
		return err
	}
	if v != migration.CurrentVersion || pending {
		return &RuntimeError{
			Code:    ErrCodeSchemaMismatch,
			Message: fmt.Sprintf("storage version %d, registry reads %d", v, migration.CurrentVersion),
		}
	}
	return nil
}

func (e *Engine) publish(n Notification) {
	for _, k := range e.sinkKeys {
		e.sinks[k](n)
	}
}

// Upgrade delivers the upgrade signal: it runs the migration engine toward
// the configured target and commits the result atomically. A store already
// at the target reports zero weight and writes nothing.
func (e *Engine) Upgrade(ctx context.Context) (migration.Report, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Upgrade", trace.WithAttributes(
		attribute.Int64("menagerie.target_version", int64(e.target)),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	overlay := kv.NewOverlay(e.backend)
	rep, err := e.migrator.Upgrade(overlay, e.target)
	if err != nil {
		overlay.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upgrade failed")
		e.logger.Error("upgrade failed", zap.Uint32("target", e.target), zap.Error(err))
		return migration.Report{}, fmt.Errorf("upgrade: %w", err)
	}
	span.SetAttributes(
		attribute.Int64("menagerie.from_version", int64(rep.From)),
		attribute.Int64("menagerie.to_version", int64(rep.To)),
		attribute.Int64("menagerie.reads", int64(rep.Weight.Reads)),
		attribute.Int64("menagerie.writes", int64(rep.Weight.Writes)),
	)
	if rep.Weight.IsZero() {
		return rep, nil
	}

	seq := e.clock.Current() + 1
	if e.journal != nil {
		err = e.journal.CommitUpgrade(ctx, overlay.Changes(), store.UpgradeRecord{
			Seq:         seq,
			FromVersion: rep.From,
			ToVersion:   rep.To,
			Reads:       rep.Weight.Reads,
			Writes:      rep.Weight.Writes,
			Done:        rep.Done,
		})
	} else {
		err = overlay.Commit(e.backend)
	}
	if err != nil {
		overlay.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return migration.Report{}, fmt.Errorf("upgrade: %w", err)
	}
	e.clock.Next()

	for _, st := range rep.Steps {
		e.metrics.ObserveMigration(st.Name, st.Records)
	}
	e.metrics.SetUpgradeWeight(rep.Weight.Reads, rep.Weight.Writes)
	e.logger.Info("upgrade applied",
		zap.Int64("seq", seq),
		zap.Uint32("from", rep.From),
		zap.Uint32("to", rep.To),
		zap.Bool("done", rep.Done),
		zap.Uint64("reads", rep.Weight.Reads),
		zap.Uint64("writes", rep.Weight.Writes))
	return rep, nil
}

// Owner returns the owner of id.
func (e *Engine) Owner(id ir.EntityID) (ir.AccountID, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.New(e.backend).Owners.Get(id)
}

// Entity returns the stored record for id.
func (e *Engine) Entity(id ir.EntityID) (ir.Record, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.New(e.backend).Entities.Get(id)
}

// Lineage returns the parents of a bred entity.
func (e *Engine) Lineage(id ir.EntityID) (ir.Lineage, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.New(e.backend).Lineages.Get(id)
}

// OnSale reports whether id carries a sale marker.
func (e *Engine) OnSale(id ir.EntityID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.New(e.backend).Market.Contains(id)
}

// NextID returns the ID the next create or breed would receive.
func (e *Engine) NextID() (ir.EntityID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.New(e.backend).Allocator.Peek()
}

// BalanceOf returns who's balance in the reference ledger.
func (e *Engine) BalanceOf(who ir.AccountID) (ir.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ledger.NewBalances(e.backend, e.ed).Balance(who)
}

// SchemaVersion returns the stored layout version.
func (e *Engine) SchemaVersion() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.New(e.backend).Version.Get()
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var de *kitties.DispatchError
	if errors.As(err, &de) || IsRuntimeError(err) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func rejectionCode(err error) string {
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return string(kitties.CodeOf(err))
}
