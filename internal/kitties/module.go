package kitties

import (
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/ledger"
	"github.com/roach88/menagerie/internal/state"
)

// Defaults for Config.
const (
	DefaultModuleID = "py/kitty"
	DefaultPrice    = ir.Balance(5_000)
)

// Config holds the module parameters.
type Config struct {
	// Price is charged for create and breed and is the sale price in buy.
	Price ir.Balance

	// ModuleID identifies the treasury account that receives creation fees.
	ModuleID string
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{Price: DefaultPrice, ModuleID: DefaultModuleID}
}

// Call is the context of one inbound call.
type Call struct {
	// Caller is the authenticated identity.
	Caller ir.AccountID

	// Seed is the block entropy and Index the call's position in the block.
	Seed  ir.Seed
	Index uint32

	// Registry and Ledger must be bound to the call's staged writes.
	Registry *state.Registry
	Ledger   ledger.Ledger

	// Events are buffered until the host commits.
	Events []ir.Event
}

func (c *Call) emit(e ir.Event) {
	c.Events = append(c.Events, e)
}

// Module implements the transition operations.
type Module struct {
	cfg      Config
	treasury ir.AccountID
}

// New returns a Module with the given parameters.
func New(cfg Config) *Module {
	return &Module{cfg: cfg, treasury: ledger.ModuleAccount(cfg.ModuleID)}
}

// Treasury returns the account creation fees are paid into.
func (m *Module) Treasury() ir.AccountID {
	return m.treasury
}

// Price returns the configured price.
func (m *Module) Price() ir.Balance {
	return m.cfg.Price
}

// Apply routes req to its handler.
func (m *Module) Apply(c *Call, req Request) error {
	switch req.Op {
	case OpCreate:
		_, err := m.Create(c, req.Name)
		return err
	case OpBreed:
		_, err := m.Breed(c, req.ParentA, req.ParentB, req.Name)
		return err
	case OpTransfer:
		return m.Transfer(c, req.Recipient, req.EntityID)
	case OpList:
		return m.List(c, req.EntityID)
	case OpUnlist:
		return m.Unlist(c, req.EntityID)
	case OpBuy:
		return m.Buy(c, req.EntityID)
	default:
		return fmt.Errorf("unknown operation %q", req.Op)
	}
}

// Create mints a new entity owned by the caller and charges the price.
func (m *Module) Create(c *Call, name ir.Name) (ir.EntityID, error) {
	id, err := m.allocate(c, OpCreate)
	if err != nil {
		return 0, err
	}
	rec := ir.Record{DNA: ir.DeriveDNA(c.Seed, c.Caller, c.Index), Name: name}
	if err := m.charge(c, OpCreate, id); err != nil {
		return 0, err
	}
	if err := m.insert(c, id, rec); err != nil {
		return 0, err
	}
	c.emit(ir.Event{Kind: ir.EventCreated, Who: c.Caller, EntityID: id, Record: &rec})
	return id, nil
}

// Breed mints a child of two existing entities. The child's code takes each
// bit from parentA where the call's derived selector bit is set and from
// parentB elsewhere.
func (m *Module) Breed(c *Call, parentA, parentB ir.EntityID, name ir.Name) (ir.EntityID, error) {
	if parentA == parentB {
		return 0, reject(OpBreed, ErrCodeSameID, parentA, "parents must differ")
	}
	a, ok, err := c.Registry.Entities.Get(parentA)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, reject(OpBreed, ErrCodeInvalidID, parentA, "parent does not exist")
	}
	b, ok, err := c.Registry.Entities.Get(parentB)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, reject(OpBreed, ErrCodeInvalidID, parentB, "parent does not exist")
	}

	id, err := m.allocate(c, OpBreed)
	if err != nil {
		return 0, err
	}
	selector := ir.DeriveDNA(c.Seed, c.Caller, c.Index)
	rec := ir.Record{DNA: ir.MixDNA(selector, a.DNA, b.DNA), Name: name}
	if err := m.charge(c, OpBreed, id); err != nil {
		return 0, err
	}
	if err := m.insert(c, id, rec); err != nil {
		return 0, err
	}
	if err := c.Registry.Lineages.Insert(id, ir.Lineage{ParentA: parentA, ParentB: parentB}); err != nil {
		return 0, err
	}
	c.emit(ir.Event{Kind: ir.EventBred, Who: c.Caller, EntityID: id, Record: &rec})
	return id, nil
}

// Transfer hands an entity to recipient. Any active listing is cancelled,
// since it was made by the previous owner.
func (m *Module) Transfer(c *Call, recipient ir.AccountID, id ir.EntityID) error {
	if recipient == "" {
		return reject(OpTransfer, ErrCodeInvalidRecipient, id, "recipient is required")
	}
	owner, ok, err := c.Registry.Owners.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return reject(OpTransfer, ErrCodeInvalidID, id, "entity has no owner entry")
	}
	if owner != c.Caller {
		return reject(OpTransfer, ErrCodeNotOwner, id, "caller does not own entity")
	}
	if err := c.Registry.Owners.Insert(id, recipient); err != nil {
		return err
	}
	if err := c.Registry.Market.Remove(id); err != nil {
		return err
	}
	c.emit(ir.Event{Kind: ir.EventTransferred, Who: c.Caller, EntityID: id, Recipient: recipient})
	return nil
}

// List puts an entity owned by the caller up for sale.
func (m *Module) List(c *Call, id ir.EntityID) error {
	if err := m.checkOwned(c, OpList, id); err != nil {
		return err
	}
	on, err := c.Registry.Market.Contains(id)
	if err != nil {
		return err
	}
	if on {
		return reject(OpList, ErrCodeAlreadyOnSale, id, "entity is already listed")
	}
	if err := c.Registry.Market.Insert(id); err != nil {
		return err
	}
	c.emit(ir.Event{Kind: ir.EventOnSale, Who: c.Caller, EntityID: id})
	return nil
}

// Unlist withdraws a listing made by the caller.
func (m *Module) Unlist(c *Call, id ir.EntityID) error {
	if err := m.checkOwned(c, OpUnlist, id); err != nil {
		return err
	}
	on, err := c.Registry.Market.Contains(id)
	if err != nil {
		return err
	}
	if !on {
		return reject(OpUnlist, ErrCodeNotOnSale, id, "entity is not listed")
	}
	if err := c.Registry.Market.Remove(id); err != nil {
		return err
	}
	c.emit(ir.Event{Kind: ir.EventSaleCancelled, Who: c.Caller, EntityID: id})
	return nil
}

// Buy purchases a listed entity at the configured price, paid to the
// previous owner.
func (m *Module) Buy(c *Call, id ir.EntityID) error {
	exists, err := c.Registry.Entities.Contains(id)
	if err != nil {
		return err
	}
	if !exists {
		return reject(OpBuy, ErrCodeInvalidID, id, "entity does not exist")
	}
	seller, ok, err := c.Registry.Owners.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return reject(OpBuy, ErrCodeNoOwner, id, "entity has no owner entry")
	}
	if seller == c.Caller {
		return reject(OpBuy, ErrCodeAlreadyOwned, id, "caller already owns entity")
	}
	on, err := c.Registry.Market.Contains(id)
	if err != nil {
		return err
	}
	if !on {
		return reject(OpBuy, ErrCodeNotOnSale, id, "entity is not listed")
	}

	if err := c.Registry.Owners.Insert(id, c.Caller); err != nil {
		return err
	}
	if err := c.Registry.Market.Remove(id); err != nil {
		return err
	}
	if err := c.Ledger.Transfer(c.Caller, seller, m.cfg.Price, ledger.KeepAlive); err != nil {
		return &DispatchError{Code: ErrCodeLedger, Op: OpBuy, EntityID: id, Message: "payment to seller refused", Err: err}
	}
	c.emit(ir.Event{Kind: ir.EventBought, Who: c.Caller, EntityID: id, Seller: seller})
	return nil
}

func (m *Module) allocate(c *Call, op Op) (ir.EntityID, error) {
	id, err := c.Registry.Allocator.Allocate()
	if errors.Is(err, state.ErrCounterOverflow) {
		return 0, &DispatchError{Code: ErrCodeInvalidID, Op: op, EntityID: id, Message: "no entity ids left", Err: err}
	}
	return id, err
}

func (m *Module) charge(c *Call, op Op, id ir.EntityID) error {
	if c.Caller == m.treasury {
		return &DispatchError{Code: ErrCodeLedger, Op: op, EntityID: id, Message: "creation fee refused", Err: ErrTreasuryCaller}
	}
	if err := c.Ledger.Transfer(c.Caller, m.treasury, m.cfg.Price, ledger.KeepAlive); err != nil {
		return &DispatchError{Code: ErrCodeLedger, Op: op, EntityID: id, Message: "creation fee refused", Err: err}
	}
	return nil
}

func (m *Module) insert(c *Call, id ir.EntityID, rec ir.Record) error {
	if err := c.Registry.Entities.Insert(id, rec); err != nil {
		return err
	}
	return c.Registry.Owners.Insert(id, c.Caller)
}

// checkOwned fails with InvalidID when the entity is absent and NotOwner
// when the caller does not own it.
func (m *Module) checkOwned(c *Call, op Op, id ir.EntityID) error {
	exists, err := c.Registry.Entities.Contains(id)
	if err != nil {
		return err
	}
	if !exists {
		return reject(op, ErrCodeInvalidID, id, "entity does not exist")
	}
	owner, _, err := c.Registry.Owners.Get(id)
	if err != nil {
		return err
	}
	if owner != c.Caller {
		return reject(op, ErrCodeNotOwner, id, "caller does not own entity")
	}
	return nil
}
