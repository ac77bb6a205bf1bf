package ir

import "fmt"

// EventKind names a notification emitted by a transition operation.
type EventKind string

// Notification kinds.
const (
	EventCreated       EventKind = "created"
	EventBred          EventKind = "bred"
	EventTransferred   EventKind = "transferred"
	EventOnSale        EventKind = "on_sale"
	EventSaleCancelled EventKind = "sale_cancelled"
	EventBought        EventKind = "bought"
)

// Event is a notification delivered to the host's sink after the enclosing
// call commits. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind `json:"kind"`
	Who      AccountID `json:"who"`
	EntityID EntityID  `json:"entity_id"`

	// Record is set for created and bred.
	Record *Record `json:"record,omitempty"`

	// Recipient is set for transferred.
	Recipient AccountID `json:"recipient,omitempty"`

	// Seller is the previous owner, set for bought.
	Seller AccountID `json:"seller,omitempty"`
}

// Fields returns the event as a plain map suitable for canonical JSON.
func (e Event) Fields() map[string]any {
	m := map[string]any{
		"kind":      string(e.Kind),
		"who":       string(e.Who),
		"entity_id": int64(e.EntityID),
	}
	if e.Record != nil {
		m["dna"] = e.Record.DNA.String()
		m["name"] = e.Record.Name.String()
	}
	if e.Recipient != "" {
		m["recipient"] = string(e.Recipient)
	}
	if e.Seller != "" {
		m["seller"] = string(e.Seller)
	}
	return m
}

// String renders a compact, human-readable form used in logs and traces.
// Genetic codes are omitted so the output does not depend on block entropy.
func (e Event) String() string {
	switch e.Kind {
	case EventTransferred:
		return fmt.Sprintf("%s who=%s id=%d recipient=%s", e.Kind, e.Who, e.EntityID, e.Recipient)
	case EventBought:
		return fmt.Sprintf("%s who=%s id=%d seller=%s", e.Kind, e.Who, e.EntityID, e.Seller)
	case EventCreated, EventBred:
		if e.Record != nil {
			return fmt.Sprintf("%s who=%s id=%d name=%s", e.Kind, e.Who, e.EntityID, e.Record.Name)
		}
	}
	return fmt.Sprintf("%s who=%s id=%d", e.Kind, e.Who, e.EntityID)
}
