// Package merge picks the display value of a unified entity field from its
// linked sources. Pure functions, no storage access: callers hand in the
// per-source values, the resolver chooses.
package merge

import (
	"encoding/json"
	"strings"
)

// SourceValue is one source's value for one field. Source "og" carries the
// operator's manual value and always outranks scraped sources.
type SourceValue struct {
	Source string
	Value  any
}

// DefaultPriority is the source order the default resolver walks: the first
// source holding a value wins.
var DefaultPriority = []string{"og", "ra", "tm", "eb", "di", "mb", "fb"}

// descriptionMinLength is the length a Resident Advisor text must exceed to
// win the description/bio override outright.
const descriptionMinLength = 50

type resolverFunc func([]SourceValue) (SourceValue, bool)

// fieldResolvers is the per-field strategy table; fields without an entry use
// the priority-order default.
var fieldResolvers = map[string]resolverFunc{
	"genres":      resolveGenres,
	"description": resolveLongText,
	"bio":         resolveLongText,
}

// Resolve returns the winning value and the source backing it. ok is false
// when no source holds a non-empty value.
func Resolve(field string, values []SourceValue) (any, string, bool) {
	present := make([]SourceValue, 0, len(values))
	for _, sv := range values {
		if !isEmpty(sv.Value) {
			present = append(present, sv)
		}
	}
	if len(present) == 0 {
		return nil, "", false
	}

	if resolver, ok := fieldResolvers[field]; ok {
		if winner, found := resolver(present); found {
			return winner.Value, winner.Source, true
		}
	}

	winner := resolveByPriority(present)
	return winner.Value, winner.Source, true
}

func resolveByPriority(values []SourceValue) SourceValue {
	for _, source := range DefaultPriority {
		for _, sv := range values {
			if sv.Source == source {
				return sv
			}
		}
	}
	// A source outside the priority list still beats showing nothing.
	return values[0]
}

// resolveGenres prefers MusicBrainz outright; otherwise the source with the
// longest genre list wins.
func resolveGenres(values []SourceValue) (SourceValue, bool) {
	for _, sv := range values {
		if sv.Source == "mb" {
			return sv, true
		}
	}

	var best SourceValue
	bestCount := -1
	for _, sv := range values {
		count := len(parseList(sv.Value))
		if count > bestCount {
			best = sv
			bestCount = count
		}
	}
	if bestCount < 0 {
		return SourceValue{}, false
	}
	return best, true
}

// resolveLongText prefers Resident Advisor when its text is substantial,
// otherwise the longest text on offer.
func resolveLongText(values []SourceValue) (SourceValue, bool) {
	for _, sv := range values {
		if sv.Source == "ra" && len(asText(sv.Value)) > descriptionMinLength {
			return sv, true
		}
	}

	var best SourceValue
	bestLen := -1
	for _, sv := range values {
		if l := len(asText(sv.Value)); l > bestLen {
			best = sv
			bestLen = l
		}
	}
	if bestLen < 0 {
		return SourceValue{}, false
	}
	return best, true
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed == "" || trimmed == "[]" || trimmed == "{}" || trimmed == "null"
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

// parseList extracts string entries from a list value, including stringified
// JSON arrays as stored by the normalizer.
func parseList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, asText(item))
		}
		return out
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var decoded []any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				out := make([]string, 0, len(decoded))
				for _, item := range decoded {
					out = append(out, asText(item))
				}
				return out
			}
		}
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	default:
		return nil
	}
}

func asText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(encoded), `"`)
	}
}
