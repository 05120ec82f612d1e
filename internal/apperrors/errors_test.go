package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := Validation("Table 'orders', column 'total'", "min_value 5 is greater than max_value 1", "make min_value less than or equal to max_value.")
	assert.Equal(t, "Table 'orders', column 'total': min_value 5 is greater than max_value 1. Fix: make min_value less than or equal to max_value.", err.Error())

	noLoc := &Error{Kind: KindGeneration, Issue: "boom"}
	assert.Equal(t, "boom.", noLoc.Error())
}

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"validation", Validationf("Project", "fix it", "bad %s", "name"), KindValidation},
		{"generation", Generationf("Table 't'", "fix it", "bad row %d", 3), KindGeneration},
		{"execution", Execution("Execution / worker_count", "too many", "lower it", nil), KindExecution},
		{"cancelled", Cancelled("Execution engine"), KindCancelled},
		{"cycle", &CycleError{Scope: "tables", Unresolved: []string{"b", "a"}}, KindValidation},
		{"bounds", &BoundsError{Table: "t", FK: "t.a -> p.id", Min: 2, Max: 4, Actual: 9}, KindGeneration},
		{"plain", errors.New("plain"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestCancelledMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("run: %w", Cancelled("Execution engine"))
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, IsCancelled(err))
	assert.False(t, IsCancelled(Validation("x", "y", "z")))

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Execution engine", appErr.Location)
}

func TestExecutionUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Execution("Run ledger", "write failed", "free some space", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsExecution(err))
}

func TestCycleErrorSortsNames(t *testing.T) {
	err := &CycleError{Scope: "tables", Unresolved: []string{"orders", "customers"}}
	assert.Contains(t, err.Error(), "[customers, orders]")
	assert.Equal(t, []string{"orders", "customers"}, err.Unresolved)
}

func TestBoundsErrorMessage(t *testing.T) {
	err := &BoundsError{Table: "items", FK: "items.order_id -> orders.order_id", Min: 10, Max: 30, Actual: 5}
	msg := err.Error()
	assert.Contains(t, msg, "row count 5")
	assert.Contains(t, msg, "[10, 30]")
	assert.Contains(t, msg, "items.order_id -> orders.order_id")
}
