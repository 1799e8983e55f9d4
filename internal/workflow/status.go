// Package workflow drives the publish lifecycle of events: which status
// transitions are legal, the required-field gate before public visibility,
// and the audit trail written alongside every state change.
package workflow

import "nightfeed.app/nightfeed/internal/domain"

// Status is the publish lifecycle state of an event entity.
type Status string

const (
	StatusScrapedDraft           Status = "SCRAPED_DRAFT"
	StatusManualDraft            Status = "MANUAL_DRAFT"
	StatusApprovedPendingDetails Status = "APPROVED_PENDING_DETAILS"
	StatusReadyToPublish         Status = "READY_TO_PUBLISH"
	StatusPublished              Status = "PUBLISHED"
	StatusRejected               Status = "REJECTED"
	StatusArchived               Status = "ARCHIVED"
	StatusCanceled               Status = "CANCELED"
)

// AllStatuses lists every lifecycle state.
var AllStatuses = []Status{
	StatusScrapedDraft,
	StatusManualDraft,
	StatusApprovedPendingDetails,
	StatusReadyToPublish,
	StatusPublished,
	StatusRejected,
	StatusArchived,
	StatusCanceled,
}

// transitions maps each status to the statuses it may move to. Statuses
// absent from the map accept no outbound transitions.
var transitions = map[Status][]Status{
	StatusScrapedDraft:           {StatusApprovedPendingDetails, StatusReadyToPublish, StatusRejected},
	StatusManualDraft:            {StatusApprovedPendingDetails, StatusReadyToPublish, StatusRejected},
	StatusApprovedPendingDetails: {StatusReadyToPublish, StatusCanceled, StatusRejected},
	StatusReadyToPublish:         {StatusPublished, StatusCanceled, StatusApprovedPendingDetails},
	StatusPublished:              {StatusCanceled},
	StatusCanceled:               {StatusApprovedPendingDetails},
	StatusRejected:               {StatusApprovedPendingDetails},
}

// ParseStatus validates s against the known lifecycle states.
func ParseStatus(s string) (Status, bool) {
	for _, status := range AllStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// CanTransition reports whether from may move to to. A status may always
// transition to itself (a no-op success).
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// gatedStatuses are the publicly visible states guarded by the required
// field check.
func isGated(to Status) bool {
	return to == StatusReadyToPublish || to == StatusPublished
}

// missingPublishFields returns, in declaration order, each required field
// that is empty in the given merged field view.
func missingPublishFields(fields map[string]any) []string {
	var missing []string
	for _, field := range domain.RequiredPublishFields {
		if isEmptyValue(fields[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}
