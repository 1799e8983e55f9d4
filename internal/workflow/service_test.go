package workflow

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPublishStatusPartitionsPerID(t *testing.T) {
	t.Parallel()

	// An unconfigured service fails every id; the point is that each id gets
	// its own failure entry instead of the first error aborting the batch.
	svc := &Service{}
	result := svc.PublishStatus(context.Background(), []string{"id-1", "id-2"}, StatusReadyToPublish, "operator")

	if len(result.Success) != 0 {
		t.Fatalf("success = %v, want empty", result.Success)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %v, want 2 entries", result.Failed)
	}
	if result.Failed[0].EntityUUID != "id-1" || result.Failed[1].EntityUUID != "id-2" {
		t.Fatalf("failure ids = %+v, want id-1 then id-2", result.Failed)
	}
	for _, failure := range result.Failed {
		if failure.Error == "" {
			t.Fatalf("failure %s carries no error text", failure.EntityUUID)
		}
	}
}

func TestBulkResultWireShape(t *testing.T) {
	t.Parallel()

	result := BulkResult{
		Success: []string{"id-1"},
		Failed: []BulkFailure{
			{EntityUUID: "id-2", Error: "Missing fields: start_time, venue_city"},
		},
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"success":["id-1"],"failed":[{"id":"id-2","error":"Missing fields: start_time, venue_city"}]}`
	if string(encoded) != want {
		t.Fatalf("wire shape = %s, want %s", encoded, want)
	}
}
