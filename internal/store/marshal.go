package store

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// marshalArgs converts call arguments to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalArgs(args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT to call arguments.
// Numbers are decoded via json.Number so integers come back as int64
// instead of float64.
func unmarshalArgs(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("unmarshal args: %q is not an integer: %w", k, err)
		}
		raw[k] = i
	}
	return raw, nil
}

// eventColumns flattens an event into its table columns.
func eventColumns(e ir.Event) (dna, name string) {
	if e.Record != nil {
		dna = e.Record.DNA.String()
		name = e.Record.Name.String()
	}
	return dna, name
}

// eventFromColumns rebuilds an event read from the events table.
func eventFromColumns(kind, who string, id int64, recipient, seller, dna, name string) (ir.Event, error) {
	e := ir.Event{
		Kind:      ir.EventKind(kind),
		Who:       ir.AccountID(who),
		EntityID:  ir.EntityID(id),
		Recipient: ir.AccountID(recipient),
		Seller:    ir.AccountID(seller),
	}
	if dna == "" {
		return e, nil
	}
	raw, err := hex.DecodeString(dna)
	if err != nil || len(raw) != ir.DNASize {
		return ir.Event{}, fmt.Errorf("event dna %q: invalid", dna)
	}
	n, err := ir.ParseName(name)
	if err != nil {
		return ir.Event{}, fmt.Errorf("event name: %w", err)
	}
	rec := ir.Record{Name: n}
	copy(rec.DNA[:], raw)
	e.Record = &rec
	return e, nil
}
