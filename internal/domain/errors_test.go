package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorListsEveryMissingField(t *testing.T) {
	t.Parallel()

	err := ValidationError{Missing: []string{"start_time", "venue_city"}}
	if got, want := err.Error(), "Missing fields: start_time, venue_city"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestInvalidTransitionErrorNamesBothStates(t *testing.T) {
	t.Parallel()

	err := InvalidTransitionError{From: "PUBLISHED", To: "MANUAL_DRAFT"}
	if got, want := err.Error(), "invalid transition from PUBLISHED to MANUAL_DRAFT"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestExternalServiceErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := ExternalServiceError{Service: "geocoder", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause not reachable through Unwrap")
	}
}
