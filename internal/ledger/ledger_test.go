package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
)

const ed = ir.Balance(500)

func funded(t *testing.T, accounts map[ir.AccountID]ir.Balance) *Balances {
	t.Helper()
	b := NewBalances(kv.NewMemory(), ed)
	for who, amount := range accounts {
		require.NoError(t, b.Mint(who, amount))
	}
	return b
}

func balanceOf(t *testing.T, b *Balances, who ir.AccountID) ir.Balance {
	t.Helper()
	v, err := b.Balance(who)
	require.NoError(t, err)
	return v
}

func TestTransfer_KeepAlive(t *testing.T) {
	b := funded(t, map[ir.AccountID]ir.Balance{"alice": 10_000})

	require.NoError(t, b.Transfer("alice", "bob", 5_000, KeepAlive))
	assert.Equal(t, ir.Balance(5_000), balanceOf(t, b, "alice"))
	assert.Equal(t, ir.Balance(5_000), balanceOf(t, b, "bob"))
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	b := funded(t, map[ir.AccountID]ir.Balance{"alice": 1_000})

	err := b.Transfer("alice", "bob", 2_000, KeepAlive)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, ir.Balance(1_000), balanceOf(t, b, "alice"))
	assert.Equal(t, ir.Balance(0), balanceOf(t, b, "bob"))
}

func TestTransfer_KeepAliveRejectsBreach(t *testing.T) {
	b := funded(t, map[ir.AccountID]ir.Balance{"alice": 5_200})

	err := b.Transfer("alice", "bob", 5_000, KeepAlive)
	assert.ErrorIs(t, err, ErrExistentialDeposit)
	assert.Equal(t, ir.Balance(5_200), balanceOf(t, b, "alice"))
}

func TestTransfer_AllowDeathReapsSender(t *testing.T) {
	b := funded(t, map[ir.AccountID]ir.Balance{"alice": 5_200})

	require.NoError(t, b.Transfer("alice", "bob", 5_000, AllowDeath))
	assert.Equal(t, ir.Balance(0), balanceOf(t, b, "alice"))
	assert.Equal(t, ir.Balance(5_000), balanceOf(t, b, "bob"))
}

func TestTransfer_RecipientBelowMinimum(t *testing.T) {
	b := funded(t, map[ir.AccountID]ir.Balance{"alice": 10_000})

	err := b.Transfer("alice", "bob", 100, KeepAlive)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assert.Equal(t, ir.Balance(10_000), balanceOf(t, b, "alice"))
}

func TestTransfer_NoOps(t *testing.T) {
	b := funded(t, map[ir.AccountID]ir.Balance{"alice": 1_000})

	require.NoError(t, b.Transfer("alice", "bob", 0, KeepAlive))
	require.NoError(t, b.Transfer("alice", "alice", 900, KeepAlive))
	assert.Equal(t, ir.Balance(1_000), balanceOf(t, b, "alice"))
}

func TestMint(t *testing.T) {
	b := funded(t, nil)

	assert.ErrorIs(t, b.Mint("alice", 10), ErrBelowMinimum)
	require.NoError(t, b.Mint("alice", 600))
	assert.ErrorIs(t, b.Mint("alice", ^ir.Balance(0)), ErrOverflow)
	assert.Equal(t, ir.Balance(600), balanceOf(t, b, "alice"))
}

func TestBalances_DiscardedWithOverlay(t *testing.T) {
	base := kv.NewMemory()
	require.NoError(t, NewBalances(base, ed).Mint("alice", 10_000))

	overlay := kv.NewOverlay(base)
	require.NoError(t, NewBalances(overlay, ed).Transfer("alice", "bob", 5_000, KeepAlive))
	overlay.Discard()

	b := NewBalances(base, ed)
	assert.Equal(t, ir.Balance(10_000), balanceOf(t, b, "alice"))
	assert.Equal(t, ir.Balance(0), balanceOf(t, b, "bob"))
}

func TestModuleAccount(t *testing.T) {
	got := ModuleAccount("py/kitty")
	assert.Equal(t,
		ir.AccountID("0x6d6f646c70792f6b69747479"+"0000000000000000000000000000000000000000"),
		got)
	assert.Len(t, string(got), 2+64)
	assert.NotEqual(t, got, ModuleAccount("py/other"))
}

func TestExistencePolicy_String(t *testing.T) {
	assert.Equal(t, "keep_alive", KeepAlive.String())
	assert.Equal(t, "allow_death", AllowDeath.String())
}
