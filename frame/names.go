package frame

import (
	"regexp"
	"strconv"
	"strings"
)

var illegalNameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// SanitizeName lowercases name and replaces every run of characters outside
// [a-z0-9_] with a single underscore. It returns "" when nothing is left.
func SanitizeName(name string) string {
	s := illegalNameChars.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// Sanitized returns f with field-safe, unique column names. Empty names become
// field_<position>, clashes get a _<n> suffix.
func (f *Frame) Sanitized() *Frame {
	names := make([]string, len(f.columns))
	seen := make(map[string]bool, len(f.columns))
	for i, c := range f.columns {
		name := SanitizeName(c)
		if name == "" {
			name = "field_" + strconv.Itoa(i+1)
		}
		base := name
		for n := 2; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}

	out, err := f.Renamed(names)
	if err != nil {
		// names are unique by construction
		panic(err)
	}
	return out
}
