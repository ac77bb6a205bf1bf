// Package harness runs registry scenarios as executable contract tests.
//
// A scenario drives a real engine over a fresh in-memory SQLite store
// through blocks, calls and upgrade signals, then checks the resulting trace
// and final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config:
//	  price: 5000
//	  max_records: 2
//	accounts:
//	  alice: 100000
//	legacy_owners: [alice, bob]
//	flow:
//	  - block: block-1
//	  - call: create
//	    caller: alice
//	    args: { name: tom1 }
//	    expect:
//	      events: [created]
//	  - upgrade: true
//	    expect:
//	      version: 1
//	assertions:
//	  - type: trace_contains
//	    event: created
//	    fields: { who: alice }
//	  - type: registry_state
//	    entity: 0
//	    expect: { owner: alice }
//	  - type: final_state
//	    table: calls
//	    where: { seq: 1 }
//	    expect: { op: create }
//
// # Assertion Types
//
//   - trace_contains: an event of the given kind with matching fields exists
//   - trace_order: event kinds appear in the specified order
//   - trace_count: an event kind appears exactly N times
//   - final_state: queries a journal table and verifies expected values
//   - registry_state: reads an entity, an account or the registry counters
//
// # Deterministic Testing
//
// Call IDs come from testutil.SequentialIDGenerator and block entropy is
// derived from the block label, so the same scenario yields an identical
// trace on every run, genetic codes included.
// RunWithGolden compares the trace with testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/kitty_market.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
