package model

import "testing"

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "run 'run_123' not found"}
	want := "NOT_FOUND: run 'run_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_ErrorWithDetails(t *testing.T) {
	err := NewValidationError("invalid scenario",
		FieldError{Field: "threads[0].priority", Message: "out of range"},
		FieldError{Message: "no events"},
	)
	want := "VALIDATION_ERROR: invalid scenario (threads[0].priority: out of range; no events)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("run", "run_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "run 'run_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "run 'run_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "cpus", Message: "must be between 1 and 32"},
		FieldError{Field: "events[2].op", Message: "unknown op"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}
