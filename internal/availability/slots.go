package availability

// FreeSlots returns the catalog labels not present in booked, preserving the
// catalog's canonical order. Booked labels outside the catalog are ignored.
//
// An empty result is a fully booked day, not an error.
func FreeSlots(catalog *Catalog, booked []string) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	free := make([]string, 0, catalog.Len())
	for _, slot := range catalog.slots {
		if _, ok := taken[slot]; ok {
			continue
		}
		free = append(free, slot)
	}
	return free
}
