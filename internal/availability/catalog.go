package availability

import "strings"

// DefaultSlots is the clinic's standard bookable day: three morning and three
// afternoon consultation slots, the same for every doctor and every date.
var DefaultSlots = []string{
	"9:00 AM",
	"10:00 AM",
	"11:00 AM",
	"2:00 PM",
	"3:00 PM",
	"4:00 PM",
}

// Catalog is the ordered set of time-of-day labels offerable on a calendar
// day. It is built once at process start and never mutated.
type Catalog struct {
	slots []string
	index map[string]struct{}
}

func NewCatalog(slots []string) *Catalog {
	c := &Catalog{
		slots: make([]string, 0, len(slots)),
		index: make(map[string]struct{}, len(slots)),
	}
	for _, s := range slots {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := c.index[s]; dup {
			continue
		}
		c.slots = append(c.slots, s)
		c.index[s] = struct{}{}
	}
	if len(c.slots) == 0 {
		return NewCatalog(DefaultSlots)
	}
	return c
}

// ParseCatalog builds a catalog from a comma-separated label list, falling
// back to DefaultSlots when raw is blank.
func ParseCatalog(raw string) *Catalog {
	if strings.TrimSpace(raw) == "" {
		return NewCatalog(DefaultSlots)
	}
	return NewCatalog(strings.Split(raw, ","))
}

// Slots returns the labels in canonical booking order.
func (c *Catalog) Slots() []string {
	out := make([]string, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.slots)
}
