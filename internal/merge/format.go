package merge

import (
	"fmt"
	"strconv"
	"strings"
)

// EmptyDisplay is rendered for fields with no resolvable value.
const EmptyDisplay = "-"

// Format renders a resolved value for display. List values, including
// stringified JSON arrays, become comma-separated text.
func Format(value any) string {
	if isEmpty(value) {
		return EmptyDisplay
	}
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			if items := parseList(trimmed); len(items) > 0 {
				return strings.Join(items, ", ")
			}
			return EmptyDisplay
		}
		return trimmed
	case []string:
		return strings.Join(v, ", ")
	case []any:
		items := parseList(v)
		if len(items) == 0 {
			return EmptyDisplay
		}
		return strings.Join(items, ", ")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
