package contracts

// RunSummary aggregates the outcome of one batch forecasting run. Every
// skipped item is attributable to exactly one counter.
type RunSummary struct {
	Dates          int `json:"dates"`
	DatesCompleted int `json:"dates_completed"`
	DatesFailed    int `json:"dates_failed"`

	ItemsAttempted             int `json:"items_attempted"`
	ItemsSucceeded             int `json:"items_succeeded"`
	ItemsFailed                int `json:"items_failed"`
	SkippedInsufficientHistory int `json:"skipped_insufficient_history"`
	SkippedMissingModel        int `json:"skipped_missing_model"`

	RowsWritten int `json:"rows_written"`
}

// Add folds another summary into this one.
func (s *RunSummary) Add(other RunSummary) {
	s.Dates += other.Dates
	s.DatesCompleted += other.DatesCompleted
	s.DatesFailed += other.DatesFailed
	s.ItemsAttempted += other.ItemsAttempted
	s.ItemsSucceeded += other.ItemsSucceeded
	s.ItemsFailed += other.ItemsFailed
	s.SkippedInsufficientHistory += other.SkippedInsufficientHistory
	s.SkippedMissingModel += other.SkippedMissingModel
	s.RowsWritten += other.RowsWritten
}
