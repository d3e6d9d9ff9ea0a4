// Package cypher is the single place where untrusted strings become
// query text. Labels and relationship types cannot be bound as query
// parameters, so everything that reaches a query fragment goes through
// ValidIdentifier or SanitizeIdentifier first.
package cypher

import (
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultNodeLabel is the fallback for a label that sanitizes to nothing.
const DefaultNodeLabel = "Node"

// DefaultRelationshipType is the fallback for an unusable relationship type.
const DefaultRelationshipType = "RELATED_TO"

// ValidIdentifier reports whether s can be spliced into Cypher as-is:
// first character a letter or underscore, the rest letters, digits, or
// underscore. Empty strings are rejected.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// SanitizeIdentifier rewrites s into a valid identifier: every character
// outside [A-Za-z0-9_] becomes an underscore, a leading digit gets an
// underscore prefix, and fallback is returned if nothing usable remains.
// Sanitizing an already-sanitized string is a no-op.
func SanitizeIdentifier(s, fallback string) string {
	if s == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if i == 0 && r >= '0' && r <= '9' {
			b.WriteByte('_')
		}
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" {
		return fallback
	}
	return out
}

// SanitizeLabels sanitizes every label in the set and returns them
// sorted, which also serves as the stable batch-grouping key.
func SanitizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, SanitizeIdentifier(l, DefaultNodeLabel))
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	// Insertion sort; label sets are tiny.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
