package testutil

import (
	"golang.org/x/crypto/blake2b"

	"github.com/roach88/menagerie/internal/ir"
)

// Well-known accounts.
const (
	Alice ir.AccountID = "alice"
	Bob   ir.AccountID = "bob"
	Carol ir.AccountID = "carol"
	Dave  ir.AccountID = "dave"
)

// Endowment is the balance test accounts start with.
const Endowment = ir.Balance(100_000)

// Accounts returns the well-known accounts in a fixed order.
func Accounts() []ir.AccountID {
	return []ir.AccountID{Alice, Bob, Carol, Dave}
}

// Seed derives block entropy from a label, so a test names its blocks
// instead of spelling out 32 bytes.
func Seed(label string) ir.Seed {
	return ir.Seed(blake2b.Sum256([]byte(label)))
}
