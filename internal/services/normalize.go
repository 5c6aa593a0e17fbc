package services

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeAnswer coerces a raw submitted answer into the canonical form
// answers are stored and compared in: a sorted, deduplicated list of
// trimmed, lowercased strings. Scalars wrap into a one-element list; nil
// and empty values normalize to an empty list.
func NormalizeAnswer(raw interface{}) []string {
	var items []string

	switch v := raw.(type) {
	case nil:
		return []string{}
	case string:
		items = []string{v}
	case []string:
		items = v
	case []interface{}:
		items = make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			} else {
				items = append(items, fmt.Sprintf("%v", item))
			}
		}
	default:
		items = []string{fmt.Sprintf("%v", v)}
	}

	seen := make(map[string]struct{}, len(items))
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		normalized = append(normalized, item)
	}

	sort.Strings(normalized)
	return normalized
}

// AnswerSetsEqual compares two answer lists as sets, normalizing both sides.
func AnswerSetsEqual(a, b []string) bool {
	na := NormalizeAnswer(a)
	nb := NormalizeAnswer(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
