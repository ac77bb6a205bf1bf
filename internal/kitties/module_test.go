package kitties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
	"github.com/roach88/menagerie/internal/ledger"
	"github.com/roach88/menagerie/internal/state"
)

const (
	alice = ir.AccountID("alice")
	bob   = ir.AccountID("bob")
	carol = ir.AccountID("carol")

	existentialDeposit = ir.Balance(500)
	startBalance       = ir.Balance(100_000)
)

// fixture applies calls the way the host does: each call runs in its own
// overlay, committed on success and discarded on failure.
type fixture struct {
	t      *testing.T
	base   *kv.Memory
	mod    *Module
	seed   ir.Seed
	index  uint32
	events []ir.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, base: kv.NewMemory(), mod: New(DefaultConfig()), seed: ir.Seed{42}}
	bal := ledger.NewBalances(f.base, existentialDeposit)
	for _, who := range []ir.AccountID{alice, bob, carol} {
		require.NoError(t, bal.Mint(who, startBalance))
	}
	return f
}

func (f *fixture) do(caller ir.AccountID, req Request) error {
	f.t.Helper()
	ov := kv.NewOverlay(f.base)
	c := &Call{
		Caller:   caller,
		Seed:     f.seed,
		Index:    f.index,
		Registry: state.New(ov),
		Ledger:   ledger.NewBalances(ov, existentialDeposit),
	}
	f.index++
	if err := f.mod.Apply(c, req); err != nil {
		ov.Discard()
		return err
	}
	require.NoError(f.t, ov.Commit(f.base))
	f.events = append(f.events, c.Events...)
	return nil
}

func (f *fixture) registry() *state.Registry {
	return state.New(f.base)
}

func (f *fixture) owner(id ir.EntityID) ir.AccountID {
	f.t.Helper()
	o, _, err := f.registry().Owners.Get(id)
	require.NoError(f.t, err)
	return o
}

func (f *fixture) nextID() ir.EntityID {
	f.t.Helper()
	n, err := f.registry().Allocator.Peek()
	require.NoError(f.t, err)
	return n
}

func (f *fixture) balance(who ir.AccountID) ir.Balance {
	f.t.Helper()
	v, err := ledger.NewBalances(f.base, existentialDeposit).Balance(who)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) onSale(id ir.EntityID) bool {
	f.t.Helper()
	on, err := f.registry().Market.Contains(id)
	require.NoError(f.t, err)
	return on
}

func create(name string) Request {
	return Request{Op: OpCreate, Name: ir.MustParseName(name)}
}

func breed(a, b ir.EntityID, name string) Request {
	return Request{Op: OpBreed, ParentA: a, ParentB: b, Name: ir.MustParseName(name)}
}

func transfer(to ir.AccountID, id ir.EntityID) Request {
	return Request{Op: OpTransfer, Recipient: to, EntityID: id}
}

func list(id ir.EntityID) Request   { return Request{Op: OpList, EntityID: id} }
func unlist(id ir.EntityID) Request { return Request{Op: OpUnlist, EntityID: id} }
func buy(id ir.EntityID) Request    { return Request{Op: OpBuy, EntityID: id} }

func TestCreate_AssignsCounterValue(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		before := f.nextID()
		require.NoError(t, f.do(alice, create("kit"+string(rune('a'+i)))))
		assert.Equal(t, before+1, f.nextID())

		rec, ok, err := f.registry().Entities.Get(before)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "kit"+string(rune('a'+i)), rec.Name.String())
		assert.Equal(t, alice, f.owner(before))
	}

	require.Len(t, f.events, 3)
	assert.Equal(t, ir.EventCreated, f.events[0].Kind)
	assert.Equal(t, ir.EntityID(2), f.events[2].EntityID)
}

func TestCreate_DistinctCodesWithinBlock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, create("bbbb")))
	require.NoError(t, f.do(bob, create("cccc")))

	seen := map[ir.DNA]bool{}
	for _, e := range f.events {
		require.NotNil(t, e.Record)
		assert.False(t, seen[e.Record.DNA], "duplicate code for %d", e.EntityID)
		seen[e.Record.DNA] = true
	}
	assert.Equal(t, ir.DeriveDNA(f.seed, alice, 0), f.events[0].Record.DNA)
}

func TestCreate_ChargesPrice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("abcd")))

	assert.Equal(t, startBalance-DefaultPrice, f.balance(alice))
	assert.Equal(t, DefaultPrice, f.balance(f.mod.Treasury()))
}

func TestCreate_InsufficientFundsWritesNothing(t *testing.T) {
	f := newFixture(t)
	before := f.base.Len()

	err := f.do("pauper", create("abcd"))
	require.Error(t, err)
	assert.True(t, IsLedgerError(err))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, before, f.base.Len())
	assert.Equal(t, ir.EntityID(0), f.nextID())
	assert.Empty(t, f.events)
}

func TestCreate_KeepAliveEnforced(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, ledger.NewBalances(f.base, existentialDeposit).Mint("dave", DefaultPrice+100))

	err := f.do("dave", create("abcd"))
	assert.ErrorIs(t, err, ledger.ErrExistentialDeposit)
	assert.Equal(t, ir.EntityID(0), f.nextID())
}

func TestCreateAndBreed_TreasuryCannotPayItself(t *testing.T) {
	f := newFixture(t)
	treasury := f.mod.Treasury()
	require.NoError(t, ledger.NewBalances(f.base, existentialDeposit).Mint(treasury, startBalance))
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, create("bbbb")))
	before := f.base.Len()

	err := f.do(treasury, create("cccc"))
	assert.True(t, IsLedgerError(err))
	assert.ErrorIs(t, err, ErrTreasuryCaller)

	err = f.do(treasury, breed(0, 1, "dddd"))
	assert.ErrorIs(t, err, ErrTreasuryCaller)

	assert.Equal(t, before, f.base.Len())
	assert.Equal(t, ir.EntityID(2), f.nextID())
	assert.Equal(t, startBalance+2*DefaultPrice, f.balance(treasury))
}

func TestCreateAndBreed_CounterOverflow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, create("bbbb")))
	require.NoError(t, f.registry().Allocator.Set(ir.MaxEntityID))
	before := f.base.Len()

	err := f.do(alice, create("cccc"))
	assert.True(t, IsInvalidID(err))
	assert.ErrorIs(t, err, state.ErrCounterOverflow)

	err = f.do(alice, breed(0, 1, "dddd"))
	assert.True(t, IsInvalidID(err))

	assert.Equal(t, before, f.base.Len())
	assert.Equal(t, ir.MaxEntityID, f.nextID())
	has, err := f.registry().Owners.Contains(ir.MaxEntityID)
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, startBalance-2*DefaultPrice, f.balance(alice))
}

func TestBreed_SameID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))

	for _, id := range []ir.EntityID{0, 1, 77} {
		err := f.do(alice, breed(id, id, "kid!"))
		assert.Equal(t, ErrCodeSameID, CodeOf(err))
	}
	assert.Equal(t, ir.EntityID(1), f.nextID())
}

func TestBreed_MissingParent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))

	err := f.do(alice, breed(0, 5, "kid!"))
	assert.True(t, IsInvalidID(err))
	err = f.do(alice, breed(5, 0, "kid!"))
	assert.True(t, IsInvalidID(err))

	assert.Equal(t, ir.EntityID(1), f.nextID())
}

func TestBreed_MixesParentsAndRecordsLineage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("mama")))
	require.NoError(t, f.do(bob, create("papa")))
	require.NoError(t, f.do(carol, breed(0, 1, "kidd")))

	reg := f.registry()
	a, _, err := reg.Entities.Get(0)
	require.NoError(t, err)
	b, _, err := reg.Entities.Get(1)
	require.NoError(t, err)
	child, ok, err := reg.Entities.Get(2)
	require.NoError(t, err)
	require.True(t, ok)

	selector := ir.DeriveDNA(f.seed, carol, 2)
	assert.Equal(t, ir.MixDNA(selector, a.DNA, b.DNA), child.DNA)
	assert.Equal(t, "kidd", child.Name.String())
	assert.Equal(t, carol, f.owner(2))

	lin, ok, err := reg.Lineages.Get(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.Lineage{ParentA: 0, ParentB: 1}, lin)

	has, err := reg.Lineages.Contains(0)
	require.NoError(t, err)
	assert.False(t, has)

	assert.Equal(t, ir.EventBred, f.events[2].Kind)
	assert.Equal(t, startBalance-DefaultPrice, f.balance(carol))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))

	err := f.do(bob, transfer(carol, 0))
	assert.True(t, IsNotOwner(err))
	assert.Equal(t, alice, f.owner(0))

	err = f.do(alice, transfer(bob, 9))
	assert.True(t, IsInvalidID(err))

	require.NoError(t, f.do(alice, transfer(bob, 0)))
	assert.Equal(t, bob, f.owner(0))

	last := f.events[len(f.events)-1]
	assert.Equal(t, ir.Event{Kind: ir.EventTransferred, Who: alice, EntityID: 0, Recipient: bob}, last)
}

func TestTransfer_EmptyRecipient(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, list(0)))
	before := f.base.Len()

	err := f.do(alice, transfer("", 0))
	assert.Equal(t, ErrCodeInvalidRecipient, CodeOf(err))

	assert.Equal(t, alice, f.owner(0))
	assert.True(t, f.onSale(0))
	assert.Equal(t, before, f.base.Len())

	// The entity stays usable by its owner.
	require.NoError(t, f.do(alice, transfer(bob, 0)))
	assert.Equal(t, bob, f.owner(0))
}

func TestTransfer_ClearsListing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, list(0)))

	require.NoError(t, f.do(alice, transfer(bob, 0)))
	assert.False(t, f.onSale(0))

	err := f.do(carol, buy(0))
	assert.Equal(t, ErrCodeNotOnSale, CodeOf(err))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))

	assert.True(t, IsInvalidID(f.do(alice, list(3))))
	assert.True(t, IsNotOwner(f.do(bob, list(0))))

	require.NoError(t, f.do(alice, list(0)))
	assert.True(t, f.onSale(0))

	err := f.do(alice, list(0))
	assert.Equal(t, ErrCodeAlreadyOnSale, CodeOf(err))
}

func TestUnlist(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))

	assert.Equal(t, ErrCodeNotOnSale, CodeOf(f.do(alice, unlist(0))))
	require.NoError(t, f.do(alice, list(0)))
	assert.True(t, IsNotOwner(f.do(bob, unlist(0))))

	require.NoError(t, f.do(alice, unlist(0)))
	assert.False(t, f.onSale(0))
	assert.Equal(t, ir.EventSaleCancelled, f.events[len(f.events)-1].Kind)
}

func TestBuy_Preconditions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))

	assert.True(t, IsInvalidID(f.do(bob, buy(4))))
	assert.Equal(t, ErrCodeNotOnSale, CodeOf(f.do(bob, buy(0))))

	require.NoError(t, f.do(alice, list(0)))
	assert.Equal(t, ErrCodeAlreadyOwned, CodeOf(f.do(alice, buy(0))))
}

func TestBuy_NoOwnerEntry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.registry().Owners.Remove(0))

	assert.Equal(t, ErrCodeNoOwner, CodeOf(f.do(bob, buy(0))))
}

func TestBuy_MovesOwnershipAndPayment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, list(0)))
	aliceBefore, bobBefore := f.balance(alice), f.balance(bob)

	require.NoError(t, f.do(bob, buy(0)))

	assert.Equal(t, bob, f.owner(0))
	assert.False(t, f.onSale(0))
	assert.Equal(t, aliceBefore+DefaultPrice, f.balance(alice))
	assert.Equal(t, bobBefore-DefaultPrice, f.balance(bob))
	assert.Equal(t, ir.Event{Kind: ir.EventBought, Who: bob, EntityID: 0, Seller: alice}, f.events[len(f.events)-1])
}

func TestBuy_PaymentFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.do(alice, create("aaaa")))
	require.NoError(t, f.do(alice, list(0)))
	require.NoError(t, ledger.NewBalances(f.base, existentialDeposit).Mint("dave", 1_000))
	before := f.base.Len()

	err := f.do("dave", buy(0))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, alice, f.owner(0))
	assert.True(t, f.onSale(0))
	assert.Equal(t, before, f.base.Len())
	assert.Equal(t, ir.Balance(1_000), f.balance("dave"))
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.do(alice, create("zero")))
	require.NoError(t, f.do(alice, create("one!")))
	require.NoError(t, f.do(alice, breed(0, 1, "two!")))
	require.NoError(t, f.do(alice, transfer(bob, 2)))
	require.NoError(t, f.do(bob, list(2)))
	require.NoError(t, f.do(alice, buy(2)))

	lin, ok, err := f.registry().Lineages.Get(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.Lineage{ParentA: 0, ParentB: 1}, lin)

	assert.Equal(t, alice, f.owner(2))
	assert.False(t, f.onSale(2))
	assert.Equal(t, ir.EntityID(3), f.nextID())

	assert.Equal(t, startBalance-3*DefaultPrice-DefaultPrice, f.balance(alice))
	assert.Equal(t, startBalance+DefaultPrice, f.balance(bob))
	assert.Equal(t, 3*DefaultPrice, f.balance(f.mod.Treasury()))

	kinds := make([]ir.EventKind, len(f.events))
	for i, e := range f.events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []ir.EventKind{
		ir.EventCreated, ir.EventCreated, ir.EventBred,
		ir.EventTransferred, ir.EventOnSale, ir.EventBought,
	}, kinds)
}

func TestApply_UnknownOp(t *testing.T) {
	f := newFixture(t)
	err := f.do(alice, Request{Op: "burn"})
	require.Error(t, err)
	assert.Equal(t, ErrorCode(""), CodeOf(err))
}

func TestRequest_Fields(t *testing.T) {
	assert.Equal(t, map[string]any{"op": "breed", "name": "kidd", "parent_a": int64(0), "parent_b": int64(1)},
		breed(0, 1, "kidd").Fields())
	assert.Equal(t, map[string]any{"op": "transfer", "recipient": "bob", "entity_id": int64(2)},
		transfer(bob, 2).Fields())
	assert.Equal(t, "buy(7)", buy(7).String())
	assert.True(t, OpUnlist.Valid())
	assert.False(t, Op("burn").Valid())
}
