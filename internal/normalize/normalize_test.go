package normalize

import (
	"testing"

	"nightfeed.app/nightfeed/internal/domain"
)

func TestDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"2026-09-12", "2026-09-12"},
		{"2026-09-12T23:00:00Z", "2026-09-12"},
		{"2026-09-12T23:00:00", "2026-09-12"},
		{"2026-09-12 23:00:00", "2026-09-12"},
		{"12.09.2026", "2026-09-12"},
		{"12/09/2026", "2026-09-12"},
		{"  2026-09-12  ", "2026-09-12"},
		{"next friday", "next friday"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Date(tc.in); got != tc.want {
			t.Errorf("Date(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"23:00:00", "23:00:00"},
		{"23:00", "23:00:00"},
		{"11:00 PM", "23:00:00"},
		{"11:00PM", "23:00:00"},
		{"doors at midnight", "doors at midnight"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Time(tc.in); got != tc.want {
			t.Errorf("Time(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCoord(t *testing.T) {
	t.Parallel()

	got, ok := Coord(52.52000066789)
	if !ok || got != 52.520001 {
		t.Fatalf("Coord(52.52000066789) = (%v, %t), want (52.520001, true)", got, ok)
	}

	got, ok = Coord("13.404954")
	if !ok || got != 13.404954 {
		t.Fatalf("Coord(string) = (%v, %t), want (13.404954, true)", got, ok)
	}

	if _, ok := Coord("north of the river"); ok {
		t.Fatalf("Coord accepted non-numeric input")
	}
}

func TestCoordPrecisionNoiseCancels(t *testing.T) {
	t.Parallel()

	a, _ := Coord(52.5200001)
	b, _ := Coord(52.5200004)
	if a != b {
		t.Fatalf("sub-precision noise survived rounding: %v != %v", a, b)
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  Warehouse   Night  ", "Warehouse Night"},
		{"Line\nbreaks\tcollapse", "Line breaks collapse"},
		{"Keeps CASE", "Keeps CASE"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalJSONStableKeyOrder(t *testing.T) {
	t.Parallel()

	a, err := CanonicalJSON(`{"b":1,"a":2}`)
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	b, err := CanonicalJSON(`{"a":2,"b":1}`)
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if a != b {
		t.Fatalf("key order leaked into canonical form: %q != %q", a, b)
	}
	if a != `{"a":2,"b":1}` {
		t.Fatalf("canonical form = %q, want sorted keys", a)
	}
}

func TestCanonicalJSONArray(t *testing.T) {
	t.Parallel()

	got, err := CanonicalJSON(` ["Techno", "House"] `)
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if got != `["Techno","House"]` {
		t.Fatalf("CanonicalJSON = %q", got)
	}

	// Native values canonicalize to the same form as their serialization.
	native, err := CanonicalJSON([]any{"Techno", "House"})
	if err != nil {
		t.Fatalf("CanonicalJSON native: %v", err)
	}
	if native != got {
		t.Fatalf("native and stringified forms diverge: %q != %q", native, got)
	}
}

func TestFieldsNormalizesEventPayload(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"title":      "  Warehouse   Night ",
		"date":       "2026-09-12T23:00:00Z",
		"start_time": "11:00 PM",
		"latitude":   "52.52000066789",
		"genres":     `["Techno","House"]`,
		"venue_city": "Berlin",
		"bogus":      "dropped",
	}
	got := Fields(domain.EntityEvent, raw)

	if got["title"] != "Warehouse Night" {
		t.Errorf("title = %v", got["title"])
	}
	if got["date"] != "2026-09-12" {
		t.Errorf("date = %v", got["date"])
	}
	if got["start_time"] != "23:00:00" {
		t.Errorf("start_time = %v", got["start_time"])
	}
	if got["latitude"] != 52.520001 {
		t.Errorf("latitude = %v", got["latitude"])
	}
	if got["genres"] != `["Techno","House"]` {
		t.Errorf("genres = %v", got["genres"])
	}
	if _, ok := got["bogus"]; ok {
		t.Errorf("unknown field survived normalization")
	}
}

func TestFieldsIdempotent(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"title":      "Warehouse  Night",
		"date":       "12.09.2026",
		"start_time": "23:00",
		"venue_city": "Berlin",
	}
	once := Fields(domain.EntityEvent, raw)
	twice := Fields(domain.EntityEvent, once)

	for field, value := range once {
		if twice[field] != value {
			t.Errorf("field %s changed on second pass: %v -> %v", field, value, twice[field])
		}
	}
	if len(once) != len(twice) {
		t.Fatalf("field count changed on second pass: %d -> %d", len(once), len(twice))
	}
}

func TestFieldsVenueAddressBackfillsPostalCode(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"name":    "Tresor",
		"address": "Köpenicker Str. 70, 10179 Berlin",
		"city":    "Berlin",
		"country": "Germany",
	}
	got := Fields(domain.EntityVenue, raw)

	if got["postal_code"] != "10179" {
		t.Errorf("postal_code = %v, want 10179", got["postal_code"])
	}
	if got["address"] != "Köpenicker Str. 70" {
		t.Errorf("address = %v, want city and postal code stripped", got["address"])
	}
}
