package entity

import (
	"testing"

	"nightfeed.app/nightfeed/internal/domain"
)

func TestFoldChangesSkipsOperatorOverrides(t *testing.T) {
	t.Parallel()

	changes := domain.ChangeSet{
		"title":      {Old: "Old Title", New: "Scraped Title"},
		"start_time": {Old: "22:00:00", New: "23:00:00"},
	}
	fields := map[string]any{
		"title":      "Operator Title",
		"start_time": "22:00:00",
	}
	fieldSources := map[string]string{
		"title":      domain.SourceManual,
		"start_time": "ra",
	}

	folded := foldChanges(domain.EntityEvent, changes, fields, fieldSources, "ra")

	if _, ok := folded["title"]; ok {
		t.Fatalf("folded = %v, operator-overridden title must not fold", folded)
	}
	if fields["title"] != "Operator Title" || fieldSources["title"] != domain.SourceManual {
		t.Fatalf("title override disturbed: %v / %v", fields["title"], fieldSources["title"])
	}

	change, ok := folded["start_time"]
	if !ok {
		t.Fatalf("folded = %v, want start_time folded", folded)
	}
	if change.Old != "22:00:00" || change.New != "23:00:00" {
		t.Fatalf("start_time change = %+v", change)
	}
	if fields["start_time"] != "23:00:00" || fieldSources["start_time"] != "ra" {
		t.Fatalf("start_time not folded into entity: %v / %v", fields["start_time"], fieldSources["start_time"])
	}
}

func TestFoldChangesAllFieldsOverridden(t *testing.T) {
	t.Parallel()

	changes := domain.ChangeSet{
		"title": {Old: "a", New: "b"},
		"date":  {Old: "2026-09-01", New: "2026-09-02"},
	}
	fields := map[string]any{"title": "Kept", "date": "2026-08-30"}
	fieldSources := map[string]string{
		"title": domain.SourceManual,
		"date":  domain.SourceManual,
	}

	folded := foldChanges(domain.EntityEvent, changes, fields, fieldSources, "tm")
	if len(folded) != 0 {
		t.Fatalf("folded = %v, want nothing when every field is overridden", folded)
	}
	if fields["title"] != "Kept" || fields["date"] != "2026-08-30" {
		t.Fatalf("overridden fields disturbed: %v", fields)
	}
}

func TestFoldChangesSkipsEqualAndUnknownFields(t *testing.T) {
	t.Parallel()

	changes := domain.ChangeSet{
		"title":        {Old: "x", New: "Same Title"},
		"scrape_debug": {Old: "a", New: "b"},
	}
	fields := map[string]any{"title": "Same Title"}
	fieldSources := map[string]string{"title": "ra"}

	folded := foldChanges(domain.EntityEvent, changes, fields, fieldSources, "ra")
	if len(folded) != 0 {
		t.Fatalf("folded = %v, want nothing for equal values and unknown fields", folded)
	}
	if _, ok := fields["scrape_debug"]; ok {
		t.Fatal("field outside the catalog folded into entity")
	}
}
