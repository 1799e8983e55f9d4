// Package normalize canonicalizes scraped field values so that change
// detection compares meaning, not formatting. The same functions run on both
// the incoming and the stored side of every diff; comparing a raw value
// against a normalized one is the bug this package exists to prevent.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"nightfeed.app/nightfeed/internal/domain"
)

// CoordPrecision is the decimal precision coordinates are rounded to before
// comparison. Scrapers disagree beyond six places without meaning it.
const CoordPrecision = 6

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02/01/2006",
}

// Date canonicalizes a date value to YYYY-MM-DD, truncating any time
// component. Unparseable input is returned trimmed, so it still compares
// stably against itself.
func Date(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return trimmed
}

// Time canonicalizes a clock value to HH:MM:SS, 24h. Timezone suffixes are
// not interpreted; times are compared exactly as supplied.
func Time(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"} {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.Format("15:04:05")
		}
	}
	return trimmed
}

// Coord rounds a coordinate to CoordPrecision decimal places. Full precision
// stays in the raw payload; the rounded value is what equality sees.
func Coord(value any) (float64, bool) {
	f, ok := toFloat(value)
	if !ok {
		return 0, false
	}
	shift := math.Pow10(CoordPrecision)
	return math.Round(f*shift) / shift, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Text trims and collapses internal whitespace, preserving case.
func Text(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// CanonicalJSON deterministically re-serializes a JSON value with stable key
// order, so differing insertion order never registers as a change. String
// input that itself holds serialized JSON is parsed first.
func CanonicalJSON(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", nil
		}
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			canonical, err := canonicalJSONBytes([]byte(trimmed))
			if err == nil {
				return string(canonical), nil
			}
		}
		encoded, err := json.Marshal(trimmed)
		if err != nil {
			return "", fmt.Errorf("marshal scalar: %w", err)
		}
		return string(encoded), nil
	case json.RawMessage:
		canonical, err := canonicalJSONBytes(v)
		if err != nil {
			return "", err
		}
		return string(canonical), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal value: %w", err)
		}
		canonical, err := canonicalJSONBytes(encoded)
		if err != nil {
			return "", err
		}
		return string(canonical), nil
	}
}

func canonicalJSONBytes(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("JSON payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("JSON contains trailing content")
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical JSON: %w", err)
	}
	return canonical, nil
}

// Field canonicalizes one value according to its catalog kind. Address fields
// need locality context and go through Fields instead.
func Field(kind domain.FieldKind, value any) any {
	if value == nil {
		return nil
	}
	switch kind {
	case domain.KindDate:
		return Date(asString(value))
	case domain.KindTime:
		return Time(asString(value))
	case domain.KindCoord:
		if f, ok := Coord(value); ok {
			return f
		}
		return nil
	case domain.KindList, domain.KindJSON:
		canonical, err := CanonicalJSON(value)
		if err != nil || canonical == "" {
			return nil
		}
		return canonical
	default:
		t := Text(asString(value))
		if t == "" {
			return nil
		}
		return t
	}
}

// Fields canonicalizes a whole scraped field map over the comparable catalog
// of the entity type. Unknown fields are dropped; address fields are cleaned
// against the record's own city/country and may backfill postal_code.
func Fields(t domain.EntityType, raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for _, name := range domain.ComparableFields(t) {
		value, ok := raw[name]
		if !ok {
			continue
		}
		kind := domain.FieldKindOf(t, name)
		if kind == domain.KindAddress {
			continue
		}
		if normalized := Field(kind, value); normalized != nil {
			out[name] = normalized
		}
	}

	for _, name := range domain.ComparableFields(t) {
		if domain.FieldKindOf(t, name) != domain.KindAddress {
			continue
		}
		value, ok := raw[name]
		if !ok {
			continue
		}
		city := asString(raw["city"])
		if city == "" {
			city = asString(raw["venue_city"])
		}
		cleaned, postal := Address(asString(value), city, asString(raw["country"]))
		if cleaned != "" {
			out[name] = cleaned
		}
		if postal != "" {
			if _, present := out["postal_code"]; !present {
				out["postal_code"] = postal
			}
		}
	}

	return out
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
