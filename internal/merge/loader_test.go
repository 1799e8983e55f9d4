package merge

import (
	"context"
	"testing"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
)

// linkedRows feeds canned (source_code, fields JSON) pairs through db.Rows.
type linkedRows struct {
	rows [][2]string
	pos  int
}

func (r *linkedRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *linkedRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	*(dest[0].(*string)) = row[0]
	*(dest[1].(*[]byte)) = []byte(row[1])
	return nil
}

func (r *linkedRows) Err() error   { return nil }
func (r *linkedRows) Close() error { return nil }

type fakeQuerier struct {
	rows [][2]string
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (*db.Rows, error) {
	return db.NewRows(&linkedRows{rows: q.rows}), nil
}

func TestLoadValuesFallsBackToStoredFields(t *testing.T) {
	t.Parallel()

	// Coordinates written by the geocoding backfill carry no field_sources
	// entry and no linked record holds them.
	entityFields := map[string]any{
		"name":      "Kater Blau",
		"latitude":  52.5120,
		"longitude": 13.4270,
	}
	fieldSources := map[string]string{"name": "ra"}
	q := &fakeQuerier{rows: [][2]string{
		{"ra", `{"name":"Kater Blau","city":"Berlin"}`},
	}}

	values, err := LoadValues(context.Background(), q, domain.EntityVenue, 1, entityFields, fieldSources)
	if err != nil {
		t.Fatalf("LoadValues: %v", err)
	}

	lat, ok := values["latitude"]
	if !ok || len(lat) != 1 {
		t.Fatalf("latitude values = %v, want one fallback entry", lat)
	}
	if lat[0].Source != "" || lat[0].Value != 52.5120 {
		t.Fatalf("latitude fallback = %+v, want unattributed stored value", lat[0])
	}

	// A field a linked record covers must not pick up the fallback.
	name := values["name"]
	if len(name) != 1 || name[0].Source != "ra" {
		t.Fatalf("name values = %+v, want single ra entry", name)
	}

	resolved, provenance := ResolveAll(domain.EntityVenue, values)
	if resolved["latitude"] != 52.5120 {
		t.Fatalf("resolved latitude = %v, want stored coordinate surfaced", resolved["latitude"])
	}
	if source, ok := provenance["latitude"]; ok {
		t.Fatalf("latitude provenance = %q, want none for an unattributed value", source)
	}
	if provenance["name"] != "ra" {
		t.Fatalf("name provenance = %q, want ra", provenance["name"])
	}
}

func TestLoadValuesStoredValueLosesToLinkedSource(t *testing.T) {
	t.Parallel()

	// Once a linked record carries the field, the stored value steps aside
	// entirely; it is a fallback, not a competitor.
	entityFields := map[string]any{"latitude": 52.0}
	q := &fakeQuerier{rows: [][2]string{
		{"ra", `{"latitude":52.5120}`},
	}}

	values, err := LoadValues(context.Background(), q, domain.EntityVenue, 1, entityFields, nil)
	if err != nil {
		t.Fatalf("LoadValues: %v", err)
	}
	lat := values["latitude"]
	if len(lat) != 1 || lat[0].Source != "ra" || lat[0].Value != 52.5120 {
		t.Fatalf("latitude values = %+v, want only the linked ra value", lat)
	}
}

func TestLoadValuesManualOverrideContributes(t *testing.T) {
	t.Parallel()

	entityFields := map[string]any{"name": "Corrected Name"}
	fieldSources := map[string]string{"name": domain.SourceManual}
	q := &fakeQuerier{rows: [][2]string{
		{"tm", `{"name":"Scraped Name"}`},
	}}

	values, err := LoadValues(context.Background(), q, domain.EntityVenue, 1, entityFields, fieldSources)
	if err != nil {
		t.Fatalf("LoadValues: %v", err)
	}

	resolved, provenance := ResolveAll(domain.EntityVenue, values)
	if resolved["name"] != "Corrected Name" {
		t.Fatalf("resolved name = %v, want operator override", resolved["name"])
	}
	if provenance["name"] != domain.SourceManual {
		t.Fatalf("name provenance = %q, want og", provenance["name"])
	}
}
