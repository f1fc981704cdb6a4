package engine

// DefaultMaxAttempts bounds the generator calls made for one merge. It is
// also the ceiling: no configuration raises it.
const DefaultMaxAttempts = 5

// attemptBudget counts generator calls for one merge and stops the retry
// loop when the limit is reached. A fresh budget is used for every merge.
type attemptBudget struct {
	max     int
	current int
}

func newAttemptBudget(limit int) *attemptBudget {
	limit = min(max(limit, 1), DefaultMaxAttempts)
	return &attemptBudget{max: limit}
}

// Next consumes one attempt. It returns false once the budget is spent.
func (b *attemptBudget) Next() bool {
	if b.current >= b.max {
		return false
	}
	b.current++
	return true
}

// Current returns the number of the attempt in progress (1-based).
func (b *attemptBudget) Current() int {
	return b.current
}

// Max returns the limit.
func (b *attemptBudget) Max() int {
	return b.max
}
