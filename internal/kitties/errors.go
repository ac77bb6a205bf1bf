package kitties

import (
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// ErrorCode categorizes a rejected call.
type ErrorCode string

const (
	// ErrCodeInvalidID means the entity does not exist or the ID counter
	// would overflow.
	ErrCodeInvalidID ErrorCode = "INVALID_ID"

	// ErrCodeSameID means both breeding parents are the same entity.
	ErrCodeSameID ErrorCode = "SAME_ID"

	// ErrCodeNotOwner means the caller does not own the entity.
	ErrCodeNotOwner ErrorCode = "NOT_OWNER"

	// ErrCodeAlreadyOnSale means the entity already carries a sale marker.
	ErrCodeAlreadyOnSale ErrorCode = "ALREADY_ON_SALE"

	// ErrCodeNotOnSale means the entity carries no sale marker.
	ErrCodeNotOnSale ErrorCode = "NOT_ON_SALE"

	// ErrCodeNoOwner means the entity has no ownership entry.
	ErrCodeNoOwner ErrorCode = "NO_OWNER"

	// ErrCodeAlreadyOwned means the buyer already owns the entity.
	ErrCodeAlreadyOwned ErrorCode = "ALREADY_OWNED"

	// ErrCodeInvalidRecipient means a transfer names no recipient.
	ErrCodeInvalidRecipient ErrorCode = "INVALID_RECIPIENT"

	// ErrCodeLedger means the payment was refused. Err holds the ledger error.
	ErrCodeLedger ErrorCode = "LEDGER"
)

// ErrTreasuryCaller is the cause of a LEDGER rejection when the treasury
// itself asks to create or breed. The ledger treats a self-payment as a
// no-op, so the fee would never be paid.
var ErrTreasuryCaller = errors.New("treasury cannot pay its own fee")

// DispatchError is the typed failure of a transition operation.
type DispatchError struct {
	Code     ErrorCode
	Op       Op
	EntityID ir.EntityID
	Message  string

	// Err is the underlying cause, when there is one.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first DispatchError in err's chain, or ""
// when there is none.
func CodeOf(err error) ErrorCode {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsInvalidID reports whether err was rejected with ErrCodeInvalidID.
func IsInvalidID(err error) bool {
	return CodeOf(err) == ErrCodeInvalidID
}

// IsNotOwner reports whether err was rejected with ErrCodeNotOwner.
func IsNotOwner(err error) bool {
	return CodeOf(err) == ErrCodeNotOwner
}

// IsLedgerError reports whether err was a refused payment.
func IsLedgerError(err error) bool {
	return CodeOf(err) == ErrCodeLedger
}

func reject(op Op, code ErrorCode, id ir.EntityID, msg string) *DispatchError {
	return &DispatchError{Code: code, Op: op, EntityID: id, Message: msg}
}
