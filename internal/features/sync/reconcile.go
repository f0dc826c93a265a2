package sync

// ReconcileLinks computes the new ordered link list after one child event.
// include means the child belongs in the list (created/updated and still
// active); otherwise every occurrence of the id is removed. An included
// child that is already present keeps its position - an update is not a
// reorder. The result never contains duplicates.
func ReconcileLinks(current []string, childID string, include bool) []string {
	out := make([]string, 0, len(current)+1)
	seen := make(map[string]struct{}, len(current)+1)

	for _, id := range current {
		if _, dup := seen[id]; dup {
			continue
		}
		if id == childID && !include {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if include {
		if _, present := seen[childID]; !present {
			out = append(out, childID)
		}
	}

	return out
}

// ReconcileFull rebuilds the link list from the full set of currently active
// children. Entries already linked keep their positions; newly active
// children are appended in the order the store listed them. Links whose
// children are no longer active (or no longer exist) drop out.
func ReconcileFull(current []string, active []string) []string {
	activeSet := make(map[string]struct{}, len(active))
	for _, id := range active {
		activeSet[id] = struct{}{}
	}

	out := make([]string, 0, len(active))
	seen := make(map[string]struct{}, len(active))

	for _, id := range current {
		if _, ok := activeSet[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range active {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

// AlignDates builds the date list positionally matched to links: dates[i]
// belongs to links[i]. A child without a date gets the empty-string
// placeholder so positions never shift. The result always has exactly
// len(links) entries.
func AlignDates(links []string, dates map[string]string) []string {
	out := make([]string, len(links))
	for i, id := range links {
		out[i] = dates[id]
	}
	return out
}

// OrderedEqual compares two lists as ordered sequences. A pure reordering
// of the same members is NOT equal: date alignment depends on order, so a
// reorder must still be written back.
func OrderedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
