package actions

// Filter returns the records with NestingLevel <= maxNesting whose status is
// in statuses, in their original order. An empty status set matches nothing.
// The input slice is not modified.
func Filter(records []ActionReport, maxNesting int, statuses ...Status) []ActionReport {
	want := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}

	out := make([]ActionReport, 0, len(records))
	for _, r := range records {
		if r.NestingLevel > maxNesting {
			continue
		}
		if _, ok := want[r.Status]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CountByStatus tallies records per status.
func CountByStatus(records []ActionReport) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range records {
		counts[r.Status]++
	}
	return counts
}
