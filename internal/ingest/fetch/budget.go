package fetch

import "time"

const (
	firstCandidateShareNum = 3
	firstCandidateShareDen = 4
	minAttemptBudget       = 500 * time.Millisecond
)

// splitBudget divides total across n RSS candidates: the direct candidate
// gets three quarters, the rest share the remainder evenly. No slot is
// shorter than minAttemptBudget.
func splitBudget(total time.Duration, n int) []time.Duration {
	if n <= 0 {
		return nil
	}

	budgets := make([]time.Duration, n)

	if n == 1 {
		budgets[0] = total
		return budgets
	}

	first := total * firstCandidateShareNum / firstCandidateShareDen
	rest := (total - first) / time.Duration(n-1)

	budgets[0] = max(first, minAttemptBudget)
	for i := 1; i < n; i++ {
		budgets[i] = max(rest, minAttemptBudget)
	}

	return budgets
}

// fullBudget gives every candidate the whole per-feed timeout.
func fullBudget(total time.Duration, n int) []time.Duration {
	budgets := make([]time.Duration, n)
	for i := range budgets {
		budgets[i] = total
	}

	return budgets
}
