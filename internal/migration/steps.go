package migration

import "fmt"

// CurrentVersion is the layout version the registry reads and writes.
const CurrentVersion uint32 = 1

// DefaultName fills the name of records written before names existed.
var DefaultName = [4]byte{'a', 'b', 'c', 'd'}

// Step upgrades every record from one layout to the next.
type Step struct {
	Name      string
	From      uint32
	To        uint32
	Source    Layout
	Target    Layout
	Transform func(Entry) Entry
}

// DefaultSteps is the shipped upgrade table.
var DefaultSteps = []Step{
	{
		Name:      "add_name",
		From:      0,
		To:        1,
		Source:    LayoutV0,
		Target:    LayoutV1,
		Transform: addDefaultName,
	},
	{
		Name:      "widen_name",
		From:      1,
		To:        2,
		Source:    LayoutV1,
		Target:    LayoutV2,
		Transform: widenName,
	},
}

func addDefaultName(e Entry) Entry {
	name := DefaultName
	return Entry{DNA: e.DNA, Name: name[:]}
}

// widenName doubles the name width, each byte taken from the old name
// cyclically and incremented (wrapping).
func widenName(e Entry) Entry {
	name := make([]byte, LayoutV2.NameWidth())
	for i := range name {
		name[i] = e.Name[i%len(e.Name)] + 1
	}
	return Entry{DNA: e.DNA, Name: name}
}

// LayoutFor returns the layout records have at the given version.
func LayoutFor(steps []Step, version uint32) (Layout, bool) {
	for _, s := range steps {
		if s.From == version {
			return s.Source, true
		}
		if s.To == version {
			return s.Target, true
		}
	}
	return 0, false
}

// validateSteps checks that the table forms one chain of consecutive versions
// with matching layouts.
func validateSteps(steps []Step) error {
	for i, s := range steps {
		if s.To != s.From+1 {
			return fmt.Errorf("step %q: must upgrade by exactly one version, got %d -> %d", s.Name, s.From, s.To)
		}
		if s.Transform == nil {
			return fmt.Errorf("step %q: missing transform", s.Name)
		}
		if i > 0 {
			prev := steps[i-1]
			if s.From != prev.To {
				return fmt.Errorf("step %q: starts at %d, previous step ends at %d", s.Name, s.From, prev.To)
			}
			if s.Source != prev.Target {
				return fmt.Errorf("step %q: source layout %s, previous step writes %s", s.Name, s.Source, prev.Target)
			}
		}
	}
	return nil
}
