package harness

// Trace entry kinds.
const (
	EntryBlock   = "block"
	EntryCall    = "call"
	EntryReject  = "reject"
	EntryEvent   = "event"
	EntryUpgrade = "upgrade"
)

// TraceEntry is one step of a scenario run as it appears in the trace.
// Only the fields relevant to Type are set.
type TraceEntry struct {
	Type string `json:"type"`

	// Seq is the journal sequence number for call, event and upgrade
	// entries, and zero otherwise.
	Seq int64 `json:"seq,omitempty"`

	// Block is the block number for block entries.
	Block uint64 `json:"block,omitempty"`

	// Op, Caller and Args describe call and reject entries.
	Op     string         `json:"op,omitempty"`
	Caller string         `json:"caller,omitempty"`
	Args   map[string]any `json:"args,omitempty"`

	// Code is the rejection code for reject entries.
	Code string `json:"code,omitempty"`

	// Kind and Fields describe event entries. Genetic codes are left out.
	Kind   string         `json:"kind,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`

	// From and To describe upgrade entries.
	From uint32 `json:"from,omitempty"`
	To   uint32 `json:"to,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains blocks, calls, rejections, events and upgrades in
	// the order they happened.
	Trace []TraceEntry `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEntry) {
	r.Trace = append(r.Trace, e)
}

// Events returns the event entries of the trace.
func (r *Result) Events() []TraceEntry {
	var out []TraceEntry
	for _, e := range r.Trace {
		if e.Type == EntryEvent {
			out = append(out, e)
		}
	}
	return out
}
