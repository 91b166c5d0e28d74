package enums

import (
	"fmt"
	"slices"
	"strings"
)

// member reports whether v is one of set.
func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches raw exactly against set; kind names the enum in the error.
func parse[T ~string](kind, raw string, set []T) (T, error) {
	if v := T(raw); member(v, set) {
		return v, nil
	}
	names := make([]string, len(set))
	for i, v := range set {
		names[i] = string(v)
	}
	return "", fmt.Errorf("invalid %s %q: must be one of %s", kind, raw, strings.Join(names, ", "))
}
