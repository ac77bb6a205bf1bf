package kitties

import (
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// Op names a transition operation.
type Op string

// Operations exposed to the host.
const (
	OpCreate   Op = "create"
	OpBreed    Op = "breed"
	OpTransfer Op = "transfer"
	OpList     Op = "list"
	OpUnlist   Op = "unlist"
	OpBuy      Op = "buy"
)

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	switch op {
	case OpCreate, OpBreed, OpTransfer, OpList, OpUnlist, OpBuy:
		return true
	}
	return false
}

// Request is the operation-specific part of an inbound call. Only the fields
// the operation uses are read.
type Request struct {
	Op        Op
	Name      ir.Name
	ParentA   ir.EntityID
	ParentB   ir.EntityID
	Recipient ir.AccountID
	EntityID  ir.EntityID
}

// Fields returns the request arguments as a plain map for journaling.
func (r Request) Fields() map[string]any {
	m := map[string]any{"op": string(r.Op)}
	switch r.Op {
	case OpCreate:
		m["name"] = r.Name.String()
	case OpBreed:
		m["name"] = r.Name.String()
		m["parent_a"] = int64(r.ParentA)
		m["parent_b"] = int64(r.ParentB)
	case OpTransfer:
		m["recipient"] = string(r.Recipient)
		m["entity_id"] = int64(r.EntityID)
	case OpList, OpUnlist, OpBuy:
		m["entity_id"] = int64(r.EntityID)
	}
	return m
}

// String renders the request compactly for logs and traces.
func (r Request) String() string {
	switch r.Op {
	case OpCreate:
		return fmt.Sprintf("create(%s)", r.Name)
	case OpBreed:
		return fmt.Sprintf("breed(%d, %d, %s)", r.ParentA, r.ParentB, r.Name)
	case OpTransfer:
		return fmt.Sprintf("transfer(%s, %d)", r.Recipient, r.EntityID)
	default:
		return fmt.Sprintf("%s(%d)", r.Op, r.EntityID)
	}
}
