// Package ledger defines the payment contract the registry consumes and a
// reference balance ledger stored in the same kv.Store as the registry, so a
// discarded call discards its payments too.
package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
)

// Ledger errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrExistentialDeposit  = errors.New("transfer would drop sender below existential deposit")
	ErrBelowMinimum        = errors.New("resulting balance below existential deposit")
	ErrOverflow            = errors.New("balance overflow")
)

// ExistencePolicy says whether a transfer may leave the sender below the
// existential deposit.
type ExistencePolicy int

const (
	// KeepAlive requires the sender to retain at least the existential deposit.
	KeepAlive ExistencePolicy = iota
	// AllowDeath lets the sender fall below it; the account is then reaped.
	AllowDeath
)

func (p ExistencePolicy) String() string {
	switch p {
	case KeepAlive:
		return "keep_alive"
	case AllowDeath:
		return "allow_death"
	default:
		return fmt.Sprintf("ExistencePolicy(%d)", int(p))
	}
}

// Ledger moves funds between accounts.
type Ledger interface {
	Transfer(from, to ir.AccountID, amount ir.Balance, policy ExistencePolicy) error
	Balance(who ir.AccountID) (ir.Balance, error)
}

const (
	modulePrefix = "Balances"
	itemAccount  = "Account"
)

func accountKey(who ir.AccountID) []byte {
	m := ir.Twox128([]byte(modulePrefix))
	i := ir.Twox128([]byte(itemAccount))
	enc := ir.EncodeAccount(who)
	h := ir.Blake2_128(enc)
	key := make([]byte, 0, 48+len(enc))
	key = append(key, m[:]...)
	key = append(key, i[:]...)
	key = append(key, h[:]...)
	return append(key, enc...)
}

// Balances is the reference Ledger. A zero balance is stored as no entry.
type Balances struct {
	store              kv.Store
	existentialDeposit ir.Balance
}

// NewBalances returns a ledger over s with the given existential deposit.
func NewBalances(s kv.Store, existentialDeposit ir.Balance) *Balances {
	return &Balances{store: s, existentialDeposit: existentialDeposit}
}

// ExistentialDeposit returns the minimum balance a live account must hold.
func (b *Balances) ExistentialDeposit() ir.Balance {
	return b.existentialDeposit
}

// Balance implements Ledger.
func (b *Balances) Balance(who ir.AccountID) (ir.Balance, error) {
	v, ok, err := b.store.Get(accountKey(who))
	if err != nil || !ok {
		return 0, err
	}
	bal, err := ir.DecodeBalance(v)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", who, err)
	}
	return bal, nil
}

func (b *Balances) set(who ir.AccountID, v ir.Balance) error {
	if v == 0 {
		return b.store.Delete(accountKey(who))
	}
	return b.store.Put(accountKey(who), ir.EncodeBalance(v))
}

// Transfer implements Ledger. Transferring zero, or to oneself, is a no-op.
// Every check runs before the first write.
func (b *Balances) Transfer(from, to ir.AccountID, amount ir.Balance, policy ExistencePolicy) error {
	if amount == 0 || from == to {
		return nil
	}
	fromBal, err := b.Balance(from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from, fromBal, amount)
	}
	newFrom := fromBal - amount
	if newFrom < b.existentialDeposit {
		if policy == KeepAlive {
			return fmt.Errorf("%w: %s would keep %d", ErrExistentialDeposit, from, newFrom)
		}
		// Reaped: the dust below the deposit is burned.
		newFrom = 0
	}

	toBal, err := b.Balance(to)
	if err != nil {
		return err
	}
	newTo := toBal + amount
	if newTo < toBal {
		return fmt.Errorf("%w: crediting %s", ErrOverflow, to)
	}
	if newTo < b.existentialDeposit {
		return fmt.Errorf("%w: %s would hold %d", ErrBelowMinimum, to, newTo)
	}

	if err := b.set(from, newFrom); err != nil {
		return err
	}
	return b.set(to, newTo)
}

// Mint credits who with amount out of thin air. Genesis and tests use it.
func (b *Balances) Mint(who ir.AccountID, amount ir.Balance) error {
	bal, err := b.Balance(who)
	if err != nil {
		return err
	}
	next := bal + amount
	if next < bal {
		return fmt.Errorf("%w: minting to %s", ErrOverflow, who)
	}
	if next < b.existentialDeposit {
		return fmt.Errorf("%w: %s would hold %d", ErrBelowMinimum, who, next)
	}
	return b.set(who, next)
}

// ModuleAccount derives the treasury account of a module from its 8-byte
// identifier: "modl" ‖ id, zero padded to 32 bytes, hex encoded.
func ModuleAccount(moduleID string) ir.AccountID {
	var raw [32]byte
	n := copy(raw[:], "modl")
	copy(raw[n:], moduleID)
	return ir.AccountID("0x" + hex.EncodeToString(raw[:]))
}
