package workflow

import (
	"reflect"
	"testing"
)

func TestCanTransitionMatchesTable(t *testing.T) {
	t.Parallel()

	allowed := map[Status]map[Status]bool{
		StatusScrapedDraft: {
			StatusApprovedPendingDetails: true,
			StatusReadyToPublish:         true,
			StatusRejected:               true,
		},
		StatusManualDraft: {
			StatusApprovedPendingDetails: true,
			StatusReadyToPublish:         true,
			StatusRejected:               true,
		},
		StatusApprovedPendingDetails: {
			StatusReadyToPublish: true,
			StatusCanceled:       true,
			StatusRejected:       true,
		},
		StatusReadyToPublish: {
			StatusPublished:              true,
			StatusCanceled:               true,
			StatusApprovedPendingDetails: true,
		},
		StatusPublished: {
			StatusCanceled: true,
		},
		StatusCanceled: {
			StatusApprovedPendingDetails: true,
		},
		StatusRejected: {
			StatusApprovedPendingDetails: true,
		},
		StatusArchived: {},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := from == to || allowed[from][to]
			got := CanTransition(from, to)
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %t, want %t", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionSelfAlwaysAllowed(t *testing.T) {
	t.Parallel()

	for _, status := range AllStatuses {
		if !CanTransition(status, status) {
			t.Errorf("CanTransition(%s, %s) = false, want true", status, status)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	got, ok := ParseStatus("READY_TO_PUBLISH")
	if !ok || got != StatusReadyToPublish {
		t.Fatalf("ParseStatus(READY_TO_PUBLISH) = (%q, %t), want (%q, true)", got, ok, StatusReadyToPublish)
	}
	if _, ok := ParseStatus("LIVE"); ok {
		t.Fatalf("ParseStatus(LIVE) accepted an unknown status")
	}
}

func TestMissingPublishFields(t *testing.T) {
	t.Parallel()

	fields := map[string]any{
		"title":      "Warehouse Night",
		"date":       "2026-09-12",
		"venue_name": "Funkhaus",
	}
	got := missingPublishFields(fields)
	want := []string{"start_time", "venue_city"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("missingPublishFields = %v, want %v", got, want)
	}
}

func TestMissingPublishFieldsEmptyStringCountsAsMissing(t *testing.T) {
	t.Parallel()

	fields := map[string]any{
		"title":      "Warehouse Night",
		"date":       "2026-09-12",
		"start_time": "",
		"venue_name": "Funkhaus",
		"venue_city": "Berlin",
	}
	got := missingPublishFields(fields)
	want := []string{"start_time"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("missingPublishFields = %v, want %v", got, want)
	}
}

func TestMissingPublishFieldsComplete(t *testing.T) {
	t.Parallel()

	fields := map[string]any{
		"title":      "Warehouse Night",
		"date":       "2026-09-12",
		"start_time": "23:00:00",
		"venue_name": "Funkhaus",
		"venue_city": "Berlin",
	}
	if got := missingPublishFields(fields); len(got) != 0 {
		t.Fatalf("missingPublishFields = %v, want none", got)
	}
}
