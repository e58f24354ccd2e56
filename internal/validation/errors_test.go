package validation

import (
	"fmt"
	"testing"
)

func TestValidationErrorRowPrefix(t *testing.T) {
	err := &ValidationError{Row: 3, Msg: "Conversion Factor is mandatory"}
	if err.Error() != "row #3: Conversion Factor is mandatory" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	plain := &ValidationError{Msg: "Standard Selling Rate should be greater than zero"}
	if plain.Error() != "Standard Selling Rate should be greater than zero" {
		t.Errorf("unexpected message: %s", plain.Error())
	}
}

func TestMatchersSeeThroughWrapping(t *testing.T) {
	conflict := fmt.Errorf("reconcile: %w", &ConflictError{Resource: "Lab Test", ID: "abc", Msg: "already invoiced"})
	if !IsConflict(conflict) {
		t.Error("expected IsConflict to match wrapped error")
	}
	if IsValidation(conflict) || IsGuard(conflict) {
		t.Error("conflict matched the wrong category")
	}

	guard := fmt.Errorf("save: %w", &IntegrityGuardError{Resource: "Lab Test", ID: "abc", Msg: "has results"})
	if !IsGuard(guard) {
		t.Error("expected IsGuard to match wrapped error")
	}
}
