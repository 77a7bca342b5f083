package ident

import (
	"sort"
	"strconv"
	"strings"

	"github.com/celesta-db/celesta"
)

// Outcome is the result of comparing two VersionStrings.
type Outcome int

const (
	Equals Outcome = iota
	Lower
	Greater
	Inconsistent
)

func (o Outcome) String() string {
	switch o {
	case Equals:
		return "EQUALS"
	case Lower:
		return "LOWER"
	case Greater:
		return "GREATER"
	default:
		return "INCONSISTENT"
	}
}

// VersionString holds the parsed form of "tag1 version1, tag2 version2, …",
// each version being a dotted sequence of non-negative integers.
type VersionString struct {
	raw  string
	tags map[string][]int
}

// Parse parses a VersionString, failing with a *celesta.ParseError on
// malformed input.
func Parse(s string) (*VersionString, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, celesta.NewParse(celesta.KindTypeMismatch, "empty version string")
	}

	tags := make(map[string][]int)
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, celesta.NewParse(celesta.KindTypeMismatch, "empty tag segment in version string %q", s)
		}
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, celesta.NewParse(celesta.KindTypeMismatch, "malformed version segment %q in %q", part, s)
		}
		tag, versionText := fields[0], fields[1]
		if err := Validate(tag); err != nil {
			return nil, celesta.NewParse(celesta.KindTypeMismatch, "invalid tag %q in version string %q: %s", tag, s, err)
		}
		if _, dup := tags[tag]; dup {
			return nil, celesta.NewParse(celesta.KindTypeMismatch, "duplicate tag %q in version string %q", tag, s)
		}
		components, err := parseComponents(versionText)
		if err != nil {
			return nil, celesta.NewParse(celesta.KindTypeMismatch, "malformed version %q for tag %q in %q: %s", versionText, tag, s, err)
		}
		tags[tag] = components
	}

	return &VersionString{raw: trimmed, tags: tags}, nil
}

func parseComponents(s string) ([]int, error) {
	parts := strings.Split(s, ".")
	components := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, celesta.New(celesta.KindTypeMismatch, "%q is not a non-negative integer", p)
		}
		components = append(components, n)
	}
	return components, nil
}

// String renders the VersionString back to its canonical textual form,
// satisfying Parse ∘ String == id.
func (v *VersionString) String() string {
	tagNames := make([]string, 0, len(v.tags))
	for tag := range v.tags {
		tagNames = append(tagNames, tag)
	}
	sort.Strings(tagNames)

	parts := make([]string, 0, len(tagNames))
	for _, tag := range tagNames {
		components := v.tags[tag]
		strs := make([]string, len(components))
		for i, c := range components {
			strs[i] = strconv.Itoa(c)
		}
		parts = append(parts, tag+" "+strings.Join(strs, "."))
	}
	return strings.Join(parts, ", ")
}

// compareComponents compares two dotted-integer sequences, treating a
// missing trailing component as 0 (so "1.2" == "1.2.0").
func compareComponents(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// Compare compares v against other, returning exactly one of
// Lower/Equals/Greater/Inconsistent per §4.A's tag-by-tag rules.
func (v *VersionString) Compare(other *VersionString) Outcome {
	sawLower := false
	sawGreater := false

	for tag, components := range v.tags {
		otherComponents, ok := other.tags[tag]
		if !ok {
			continue // tags present on only one side are ignored
		}
		switch c := compareComponents(components, otherComponents); {
		case c < 0:
			sawLower = true
		case c > 0:
			sawGreater = true
		}
	}

	switch {
	case sawLower && sawGreater:
		return Inconsistent
	case sawLower:
		return Lower
	case sawGreater:
		return Greater
	default:
		return Equals
	}
}
