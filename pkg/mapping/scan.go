package mapping

import (
	"fmt"
	"strings"
)

// placeholderName is used when sanitizing leaves nothing of a raw name.
const placeholderName = "field"

// Sanitize normalizes a raw column name for use in an identifier: any
// character outside [A-Za-z0-9_] becomes an underscore, runs of
// underscores collapse to one, and leading/trailing underscores are
// trimmed. An empty result falls back to a fixed placeholder.
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return placeholderName
	}
	return s
}

// ScanFields assigns every raw name occurrence a stable ID and display
// name. The ID is sanitize(raw) + "__" + ordinal, where the ordinal is the
// 0-based position of the occurrence among occurrences sharing the same
// sanitized token, counted in the order given. Counting per token rather
// than per raw name keeps IDs unique when distinct raw names ("a b",
// "a_b") sanitize to the same token. Display names append a 1-based
// " (n)" only when the raw name is duplicated.
//
// Callers own the ordering contract: IDs are reproducible only if the same
// raw names arrive in the same order on every scan, so callers must derive
// the slice from a stable sort of the underlying source (the wizard sorts
// by column position, then name).
func ScanFields(rawNames []string) []SourceField {
	total := make(map[string]int, len(rawNames))
	for _, raw := range rawNames {
		total[raw]++
	}

	seen := make(map[string]int, len(rawNames))
	rawSeen := make(map[string]int, len(rawNames))
	fields := make([]SourceField, 0, len(rawNames))
	for _, raw := range rawNames {
		token := Sanitize(raw)
		ordinal := seen[token]
		seen[token]++
		rawOrdinal := rawSeen[raw]
		rawSeen[raw]++

		display := raw
		if total[raw] > 1 {
			display = fmt.Sprintf("%s (%d)", raw, rawOrdinal+1)
		}

		fields = append(fields, SourceField{
			ID:          fmt.Sprintf("%s__%d", token, ordinal),
			RawName:     raw,
			DisplayName: display,
		})
	}
	return fields
}
