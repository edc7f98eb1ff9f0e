package reconcile

type Result struct {
	Added   []string
	Removed []string
	Common  []string
}

// Reconcile merges two lexicographically sorted path lists in a single pass. Paths only in
// candidate are added, paths only in baseline are removed. Unsorted input gives undefined results.
func Reconcile(baseline []string, candidate []string) *Result {
	result := &Result{
		Added:   []string{},
		Removed: []string{},
		Common:  []string{},
	}

	bi, ci := 0, 0
	for bi < len(baseline) || ci < len(candidate) {
		switch {
		case bi == len(baseline):
			result.Added = append(result.Added, candidate[ci])
			ci++
		case ci == len(candidate):
			result.Removed = append(result.Removed, baseline[bi])
			bi++
		case baseline[bi] < candidate[ci]:
			result.Removed = append(result.Removed, baseline[bi])
			bi++
		case candidate[ci] < baseline[bi]:
			result.Added = append(result.Added, candidate[ci])
			ci++
		default:
			result.Common = append(result.Common, baseline[bi])
			bi++
			ci++
		}
	}

	return result
}
