package domain

import (
	"sort"
	"testing"
)

func TestParseEntityType(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"event", "venue", "artist", "organizer"} {
		entityType, err := ParseEntityType(raw)
		if err != nil {
			t.Fatalf("ParseEntityType(%q): %v", raw, err)
		}
		if string(entityType) != raw {
			t.Fatalf("ParseEntityType(%q) = %q", raw, entityType)
		}
	}
	if _, err := ParseEntityType("festival"); err == nil {
		t.Fatalf("ParseEntityType accepted an unknown type")
	}
}

func TestComparableFieldsSortedAndKnown(t *testing.T) {
	t.Parallel()

	for _, entityType := range []EntityType{EntityEvent, EntityVenue, EntityArtist, EntityOrganizer} {
		fields := ComparableFields(entityType)
		if len(fields) == 0 {
			t.Fatalf("no comparable fields for %s", entityType)
		}
		if !sort.StringsAreSorted(fields) {
			t.Errorf("fields for %s are not sorted: %v", entityType, fields)
		}
		for _, field := range fields {
			if !IsComparableField(entityType, field) {
				t.Errorf("field %s of %s not recognized by IsComparableField", field, entityType)
			}
		}
	}
}

func TestNameField(t *testing.T) {
	t.Parallel()

	if got := NameField(EntityEvent); got != "title" {
		t.Fatalf("NameField(event) = %q, want title", got)
	}
	if got := NameField(EntityVenue); got != "name" {
		t.Fatalf("NameField(venue) = %q, want name", got)
	}
}

func TestKnownSource(t *testing.T) {
	t.Parallel()

	for _, code := range SourcePriority {
		if !KnownSource(code) {
			t.Errorf("priority source %q not known", code)
		}
	}
	if KnownSource("xx") {
		t.Errorf("KnownSource accepted an unknown code")
	}
}

func TestNaturalKeyString(t *testing.T) {
	t.Parallel()

	key := NaturalKey{EntityType: EntityEvent, SourceCode: "ra", SourceExternalID: "123"}
	if got, want := key.String(), "event/ra/123"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
