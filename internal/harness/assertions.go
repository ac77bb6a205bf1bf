package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/menagerie/internal/engine"
	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, entry := range e.Trace {
			if entry.Type == EntryEvent {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, entry.Kind, entry.Fields)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains an event of the given
// kind whose fields include the expected ones (subset match).
func assertTraceContains(trace []TraceEntry, assertion Assertion) error {
	for _, entry := range trace {
		if entry.Type == EntryEvent && entry.Kind == assertion.Event && matchFields(entry.Fields, assertion.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with fields %v", assertion.Event, assertion.Fields),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that event kinds appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed), and
// each expected kind matches the first occurrence after the previous match.
func assertTraceOrder(trace []TraceEntry, assertion Assertion) error {
	next := 0
	for _, entry := range trace {
		if next == len(assertion.Events) {
			break
		}
		if entry.Type == EntryEvent && entry.Kind == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("matched %v, then no %s", assertion.Events[:next], assertion.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the event kind appears exactly the specified
// number of times.
func assertTraceCount(trace []TraceEntry, assertion Assertion) error {
	count := 0
	for _, entry := range trace {
		if entry.Type == EntryEvent && entry.Kind == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that a journal table contains exactly one row
// matching Where, with the expected values. Queries use parameterized SQL.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}
	return compareExpected(AssertFinalState, assertion.Expect, actualRow)
}

// assertRegistryState reads the registry through the engine's queries and
// compares the expected values.
//
// Keys by target:
//   - entity: exists, owner, on_sale, name, parent_a, parent_b
//   - account: balance
//   - neither: next_id, schema_version
func assertRegistryState(eng *engine.Engine, assertion Assertion) error {
	actual := map[string]any{}

	switch {
	case assertion.Entity != nil:
		id := ir.EntityID(*assertion.Entity)
		rec, exists, err := eng.Entity(id)
		if err != nil {
			return fmt.Errorf("registry_state: %w", err)
		}
		actual["exists"] = exists
		if exists {
			actual["name"] = rec.Name.String()
		}
		if owner, ok, err := eng.Owner(id); err != nil {
			return fmt.Errorf("registry_state: %w", err)
		} else if ok {
			actual["owner"] = string(owner)
		}
		onSale, err := eng.OnSale(id)
		if err != nil {
			return fmt.Errorf("registry_state: %w", err)
		}
		actual["on_sale"] = onSale
		if lin, ok, err := eng.Lineage(id); err != nil {
			return fmt.Errorf("registry_state: %w", err)
		} else if ok {
			actual["parent_a"] = int64(lin.ParentA)
			actual["parent_b"] = int64(lin.ParentB)
		}
	case assertion.Account != "":
		bal, err := eng.BalanceOf(ir.AccountID(assertion.Account))
		if err != nil {
			return fmt.Errorf("registry_state: %w", err)
		}
		actual["balance"] = int64(bal)
	default:
		next, err := eng.NextID()
		if err != nil {
			return fmt.Errorf("registry_state: %w", err)
		}
		v, err := eng.SchemaVersion()
		if err != nil {
			return fmt.Errorf("registry_state: %w", err)
		}
		actual["next_id"] = int64(next)
		actual["schema_version"] = int64(v)
	}

	return compareExpected(AssertRegistryState, assertion.Expect, actual)
}

// compareExpected checks each expected field against actual (subset
// semantics - only fields in expect are checked). Keys are checked in
// sorted order so the first failure reported is deterministic.
func compareExpected(kind string, expect, actual map[string]any) error {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := expect[key]
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %v", key, sortedKeys(actual)),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values.
// Handles type coercion for SQLite values, which come back as int64 or
// []byte, and for YAML integers, which decode as int.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	if exp, ok := toInt64(expected); ok {
		if act, ok := toInt64(actual); ok {
			return exp == act
		}
		return false
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case bool:
		if act, ok := actual.(bool); ok {
			return exp == act
		}
		// SQLite stores booleans as integers
		if act, ok := toInt64(actual); ok {
			return exp == (act != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !stateValuesEqual(expectedVal, actualVal) {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store  *store.Store
	Engine *engine.Engine
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store and engine access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a store", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertRegistryState:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: registry_state requires an engine", i)
			} else {
				err = assertRegistryState(actx.Engine, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
