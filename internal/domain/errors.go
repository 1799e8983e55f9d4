package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports every required field missing from a publish-gated
// transition, not just the first one.
type ValidationError struct {
	Missing []string
}

func (e ValidationError) Error() string {
	return "Missing fields: " + strings.Join(e.Missing, ", ")
}

// InvalidTransitionError names both ends of a disallowed status transition.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// NotFoundError reports an absent canonical or scraped record.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Ref)
}

// ExternalServiceError wraps a source or geocoder failure. Always treated as
// recoverable: it lands in a batch error list, never aborts the batch.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s failed: %v", e.Service, e.Err)
}

func (e ExternalServiceError) Unwrap() error {
	return e.Err
}
