package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"hemocore/pkg/domain"
)

func TestTypedValidationErrorsMatchSentinels(t *testing.T) {
	btErr := domain.InvalidBloodTypeError{Input: "X+"}
	if !errors.Is(btErr, domain.ErrInvalidBloodType) {
		t.Fatal("InvalidBloodTypeError must match ErrInvalidBloodType")
	}
	if !strings.Contains(btErr.Error(), "X+") {
		t.Fatalf("error should carry the rejected input: %q", btErr.Error())
	}

	urgErr := domain.InvalidUrgencyError{Input: "asap"}
	if !errors.Is(urgErr, domain.ErrInvalidUrgency) {
		t.Fatal("InvalidUrgencyError must match ErrInvalidUrgency")
	}
	if errors.Is(urgErr, domain.ErrInvalidBloodType) {
		t.Fatal("urgency error must not match the blood type sentinel")
	}
}

func TestTransientErrorDetection(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("run transaction: %w", domain.TransientError{Op: "snapshot", Err: cause})

	if !domain.IsTransient(err) {
		t.Fatal("wrapped TransientError must be detected")
	}
	if !errors.Is(err, cause) {
		t.Fatal("TransientError must unwrap to its cause")
	}
	if domain.IsTransient(domain.ErrInsufficientInventory) {
		t.Fatal("business conflicts are not transient")
	}
}
