package domain

// TaskSums is the rollup of a subtree. It is computed, never stored.
type TaskSums struct {
	BudgetSum            int64 `json:"budget_sum"`
	InitiallyConsumedSum int64 `json:"initially_consumed_sum"`
	TodoSum              int64 `json:"todo_sum"`
	ConsumedSum          int64 `json:"consumed_sum"`
	ContributionsNb      int64 `json:"contributions_nb"`
}

// ContributionTotals is the result of a sum/count aggregate over contributions.
type ContributionTotals struct {
	Sum   int64
	Count int64
}
