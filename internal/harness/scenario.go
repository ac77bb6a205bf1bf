package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/menagerie/internal/kitties"
)

// Scenario defines a registry test scenario.
// Scenarios drive a real engine through a flow of blocks, calls and
// upgrade signals and assert on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides module and migration parameters.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Accounts maps account names to their genesis endowment.
	Accounts map[string]uint64 `yaml:"accounts,omitempty"`

	// LegacyOwners seeds one record per entry in the original nameless
	// layout, owned by the named account, with no storage version set.
	LegacyOwners []string `yaml:"legacy_owners,omitempty"`

	// Flow contains the steps to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, registry_state
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// CallIDPrefix prefixes the deterministic call IDs. Default: "call".
	CallIDPrefix string `yaml:"call_id_prefix,omitempty"`
}

// ScenarioConfig holds optional parameter overrides. Zero values keep the
// engine defaults.
type ScenarioConfig struct {
	Price              uint64  `yaml:"price,omitempty"`
	ExistentialDeposit *uint64 `yaml:"existential_deposit,omitempty"`
	TargetVersion      uint32  `yaml:"target_version,omitempty"`
	MaxRecords         int     `yaml:"max_records,omitempty"`
}

// FlowStep is one step of the flow. Exactly one of Block, Call or Upgrade
// is set.
type FlowStep struct {
	// Block starts a new block whose entropy is derived from this label.
	Block string `yaml:"block,omitempty"`

	// Call names the operation to dispatch on behalf of Caller.
	Call   string         `yaml:"call,omitempty"`
	Caller string         `yaml:"caller,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Upgrade delivers the upgrade signal.
	Upgrade bool `yaml:"upgrade,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step is expected to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected rejection code (e.g. "NOT_OWNER"). Empty means
	// the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Events lists the expected event kinds in order. Nil skips the check.
	Events []string `yaml:"events,omitempty"`

	// Version is the expected stored version after an upgrade step.
	Version *uint32 `yaml:"version,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of kind Event with matching Fields exists
	// - "trace_order": event kinds appear in order
	// - "trace_count": event kind Event appears exactly Count times
	// - "final_state": query a journal table and verify expected values
	// - "registry_state": query the registry and verify expected values
	Type string `yaml:"type"`

	// Event is the event kind (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Fields are the expected event fields (used by trace_contains).
	// Subset match - only specified fields are validated.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Table is the journal table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Entity or Account selects what registry_state inspects. With
	// neither, registry-wide values (next_id, schema_version) are checked.
	Entity  *uint32 `yaml:"entity,omitempty"`
	Account string  `yaml:"account,omitempty"`

	// Expect contains expected values (used by final_state, registry_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRegistryState = "registry_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML and validates it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow must have at least one step")
	}

	for i, step := range s.Flow {
		if err := validateFlowStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateFlowStep(index int, step FlowStep) error {
	set := 0
	if step.Block != "" {
		set++
	}
	if step.Call != "" {
		set++
	}
	if step.Upgrade {
		set++
	}
	if set != 1 {
		return fmt.Errorf("flow[%d]: exactly one of block, call or upgrade is required", index)
	}

	if step.Call != "" {
		if !kitties.Op(step.Call).Valid() {
			return fmt.Errorf("flow[%d]: unknown operation %q", index, step.Call)
		}
		if step.Caller == "" {
			return fmt.Errorf("flow[%d]: caller is required", index)
		}
	}
	if step.Expect != nil && step.Expect.Version != nil && !step.Upgrade {
		return fmt.Errorf("flow[%d]: expect.version only applies to upgrade steps", index)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRegistryState:
		if a.Entity != nil && a.Account != "" {
			return fmt.Errorf("assertions[%d]: entity and account are mutually exclusive", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for registry_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
