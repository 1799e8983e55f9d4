// Package domain holds the shared vocabulary of the aggregation core:
// entity types, source codes, the per-type field catalogs, and the typed
// error taxonomy.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// EntityType discriminates the four aggregated record kinds.
type EntityType string

const (
	EntityEvent     EntityType = "event"
	EntityVenue     EntityType = "venue"
	EntityArtist    EntityType = "artist"
	EntityOrganizer EntityType = "organizer"
)

// EntityTypes lists all valid entity types in a stable order.
var EntityTypes = []EntityType{EntityEvent, EntityVenue, EntityArtist, EntityOrganizer}

func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range EntityTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", raw)
}

func (t EntityType) Valid() bool {
	_, err := ParseEntityType(string(t))
	return err == nil
}

// SourceManual marks values entered by an operator rather than a scraper.
const SourceManual = "og"

// SourcePriority is the default merge order: the first source in this list
// holding a value for a field backs the displayed value.
var SourcePriority = []string{SourceManual, "ra", "tm", "eb", "di", "mb", "fb"}

func KnownSource(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, s := range SourcePriority {
		if s == code {
			return true
		}
	}
	return false
}

// FieldKind assigns each catalog field a normalization semantic.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindDate    FieldKind = "date"
	KindTime    FieldKind = "time"
	KindCoord   FieldKind = "coord"
	KindList    FieldKind = "list"
	KindJSON    FieldKind = "json"
	KindAddress FieldKind = "address"
)

// fieldCatalog declares the comparable field set per entity type. Volatile
// bookkeeping (scrape timestamps, raw payloads) deliberately has no entry:
// what is not in the catalog never participates in change detection.
var fieldCatalog = map[EntityType]map[string]FieldKind{
	EntityEvent: {
		"title":          KindText,
		"date":           KindDate,
		"start_time":     KindTime,
		"end_time":       KindTime,
		"venue_name":     KindText,
		"venue_city":     KindText,
		"address":        KindAddress,
		"postal_code":    KindText,
		"country":        KindText,
		"latitude":       KindCoord,
		"longitude":      KindCoord,
		"genres":         KindList,
		"description":    KindText,
		"price":          KindJSON,
		"artists":        KindList,
		"organizer_name": KindText,
		"ticket_url":     KindText,
	},
	EntityVenue: {
		"name":        KindText,
		"address":     KindAddress,
		"postal_code": KindText,
		"city":        KindText,
		"country":     KindText,
		"latitude":    KindCoord,
		"longitude":   KindCoord,
		"capacity":    KindJSON,
		"description": KindText,
	},
	EntityArtist: {
		"name":      KindText,
		"genres":    KindList,
		"bio":       KindText,
		"country":   KindText,
		"image_url": KindText,
	},
	EntityOrganizer: {
		"name":        KindText,
		"description": KindText,
		"website":     KindText,
	},
}

// ComparableFields returns the sorted comparable field names for a type.
func ComparableFields(t EntityType) []string {
	catalog := fieldCatalog[t]
	fields := make([]string, 0, len(catalog))
	for name := range catalog {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// FieldKindOf reports the normalization kind of a field, defaulting to text
// for fields outside the catalog.
func FieldKindOf(t EntityType, field string) FieldKind {
	if kind, ok := fieldCatalog[t][field]; ok {
		return kind
	}
	return KindText
}

func IsComparableField(t EntityType, field string) bool {
	_, ok := fieldCatalog[t][field]
	return ok
}

// NameField returns the display-name field of a type; events title, the rest name.
func NameField(t EntityType) string {
	if t == EntityEvent {
		return "title"
	}
	return "name"
}

// RequiredPublishFields gate entry into READY_TO_PUBLISH and PUBLISHED.
var RequiredPublishFields = []string{"title", "date", "start_time", "venue_name", "venue_city"}

// FieldChange captures one field's old and new value inside a diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeSet maps changed field names to their old/new pair.
type ChangeSet map[string]FieldChange

// NaturalKey identifies one scraped record across re-ingestions.
type NaturalKey struct {
	EntityType       EntityType
	SourceCode       string
	SourceExternalID string
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EntityType, k.SourceCode, k.SourceExternalID)
}
