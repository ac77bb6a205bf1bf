package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
accounts:
  alice: 100000
flow:
  - block: block-1
  - call: create
    caller: alice
    args:
      name: "tom1"
assertions:
  - type: trace_contains
    event: created
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, map[string]uint64{"alice": 100000}, scenario.Accounts)
	assert.Len(t, scenario.Flow, 2)
	assert.Len(t, scenario.Assertions, 1)
	assert.Equal(t, "block-1", scenario.Flow[0].Block)
	assert.Equal(t, "create", scenario.Flow[1].Call)
	assert.Equal(t, "tom1", scenario.Flow[1].Args["name"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Config(t *testing.T) {
	content := `
name: configured
config:
  price: 100
  existential_deposit: 0
  target_version: 2
  max_records: 5
legacy_owners: [alice, bob]
flow:
  - upgrade: true
    expect:
      version: 2
`
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, uint64(100), scenario.Config.Price)
	require.NotNil(t, scenario.Config.ExistentialDeposit)
	assert.Equal(t, uint64(0), *scenario.Config.ExistentialDeposit)
	assert.Equal(t, uint32(2), scenario.Config.TargetVersion)
	assert.Equal(t, 5, scenario.Config.MaxRecords)
	assert.Equal(t, []string{"alice", "bob"}, scenario.LegacyOwners)
	require.NotNil(t, scenario.Flow[0].Expect.Version)
	assert.Equal(t, uint32(2), *scenario.Flow[0].Expect.Version)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
flow:
  - block: b
`,
			wantErr: "name is required",
		},
		{
			name: "empty flow",
			content: `
name: test
flow: []
`,
			wantErr: "flow must have at least one step",
		},
		{
			name: "unknown field",
			content: `
name: test
flow:
  - block: b
assertion:
  - type: trace_count
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "step with two actions",
			content: `
name: test
flow:
  - block: b
    upgrade: true
`,
			wantErr: "exactly one of block, call or upgrade",
		},
		{
			name: "empty step",
			content: `
name: test
flow:
  - expect:
      error: NOT_OWNER
`,
			wantErr: "exactly one of block, call or upgrade",
		},
		{
			name: "unknown operation",
			content: `
name: test
flow:
  - call: adopt
    caller: alice
`,
			wantErr: `unknown operation "adopt"`,
		},
		{
			name: "missing caller",
			content: `
name: test
flow:
  - call: create
    args: { name: tom1 }
`,
			wantErr: "caller is required",
		},
		{
			name: "version on a call",
			content: `
name: test
flow:
  - call: create
    caller: alice
    expect:
      version: 1
`,
			wantErr: "expect.version only applies to upgrade steps",
		},
		{
			name: "assertion without type",
			content: `
name: test
flow:
  - block: b
assertions:
  - event: created
`,
			wantErr: "type is required",
		},
		{
			name: "unknown assertion type",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: eventually
`,
			wantErr: `unknown assertion type "eventually"`,
		},
		{
			name: "trace_contains without event",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: trace_contains
`,
			wantErr: "event is required for trace_contains",
		},
		{
			name: "trace_order without events",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: trace_order
`,
			wantErr: "events list is required for trace_order",
		},
		{
			name: "negative count",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: trace_count
    event: created
    count: -1
`,
			wantErr: "count must be non-negative",
		},
		{
			name: "final_state without table",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: final_state
    expect: { op: create }
`,
			wantErr: "table is required for final_state",
		},
		{
			name: "final_state without expect",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: final_state
    table: calls
`,
			wantErr: "expect is required for final_state",
		},
		{
			name: "registry_state with entity and account",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: registry_state
    entity: 0
    account: alice
    expect: { owner: alice }
`,
			wantErr: "entity and account are mutually exclusive",
		},
		{
			name: "registry_state without expect",
			content: `
name: test
flow:
  - block: b
assertions:
  - type: registry_state
    account: alice
`,
			wantErr: "expect is required for registry_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoadExampleScenarios validates the scenario files in testdata/scenarios.
func TestLoadExampleScenarios(t *testing.T) {
	tests := []struct {
		file       string
		name       string
		steps      int
		assertions int
	}{
		{file: "kitty_market.yaml", name: "kitty_market", steps: 10, assertions: 10},
		{file: "failed_payment.yaml", name: "failed_payment", steps: 3, assertions: 5},
		{file: "legacy_upgrade.yaml", name: "legacy_upgrade", steps: 8, assertions: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.file))
			require.NoError(t, err)

			assert.Equal(t, tt.name, scenario.Name)
			assert.NotEmpty(t, scenario.Description)
			assert.Len(t, scenario.Flow, tt.steps)
			assert.Len(t, scenario.Assertions, tt.assertions)
		})
	}
}
