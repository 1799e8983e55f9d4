package normalize

import (
	"regexp"
	"strings"
)

var postalCodeRe = regexp.MustCompile(`\b\d{4,6}\b`)

// Address cleans a free-text address against locality already known from
// structured fields: the postal code is extracted into its own return value,
// city and country substrings are stripped, and whitespace and comma runs
// collapse. Sources love to repeat the city inside the street line.
func Address(raw, city, country string) (cleaned, postalCode string) {
	address := Text(raw)
	if address == "" {
		return "", ""
	}

	if match := postalCodeRe.FindString(address); match != "" {
		postalCode = match
		address = strings.Replace(address, match, "", 1)
	}

	for _, known := range []string{city, country} {
		known = Text(known)
		if known == "" {
			continue
		}
		address = removeFold(address, known)
	}

	parts := strings.Split(address, ",")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = Text(part)
		if part == "" {
			continue
		}
		kept = append(kept, part)
	}

	return strings.Join(kept, ", "), postalCode
}

// removeFold deletes every case-insensitive occurrence of needle.
func removeFold(haystack, needle string) string {
	if needle == "" {
		return haystack
	}
	lowerHay := strings.ToLower(haystack)
	lowerNeedle := strings.ToLower(needle)

	var b strings.Builder
	for {
		idx := strings.Index(lowerHay, lowerNeedle)
		if idx < 0 {
			b.WriteString(haystack)
			return b.String()
		}
		b.WriteString(haystack[:idx])
		haystack = haystack[idx+len(needle):]
		lowerHay = lowerHay[idx+len(lowerNeedle):]
	}
}
