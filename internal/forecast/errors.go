package forecast

import (
	"errors"
	"fmt"
)

// Skip conditions. These are expected per-item outcomes, counted in the
// run summary rather than propagated as failures.
var (
	// ErrInsufficientHistory marks an item with fewer valid historical
	// price records than the eligibility threshold.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrMissingModel marks an item with no trained model artifact for
	// its volatility class.
	ErrMissingModel = errors.New("missing model artifact")
)

// StoreError wraps a failure talking to the external observation or
// prediction store. It is fatal for the affected date's worker but
// isolated from the rest of the batch.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
