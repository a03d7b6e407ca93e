// Package memory implements the two-tier tagged memory engine: a bounded
// working set and unbounded persistent storage, both keyed by canonical
// tag sets.
package memory

import (
	"fmt"
	"sort"
	"strings"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// TagSet is an ordered set of normalized tags: sorted ascending,
// deduplicated, lowercase. The canonical comma-joined form is the sole
// key used for lookup and equality.
type TagSet []string

// NormalizeTags parses a raw comma-separated tag string into a canonical
// TagSet. Each segment is trimmed, lowercased, and internal spaces become
// underscores. A segment that is empty after trimming, or that contains a
// character outside [a-z0-9_-], is rejected. An input that yields no tags
// at all is rejected.
func NormalizeTags(raw string) (TagSet, error) {
	segments := strings.Split(raw, ",")
	seen := make(map[string]bool, len(segments))
	tags := make([]string, 0, len(segments))

	for _, seg := range segments {
		tag := strings.TrimSpace(seg)
		if tag == "" {
			continue
		}
		tag = strings.ToLower(tag)
		tag = strings.ReplaceAll(tag, " ", "_")
		if !validTag(tag) {
			return nil, mnemoErrors.New(mnemoErrors.CodeInvalidTag,
				fmt.Sprintf("invalid tag %q", tag)).
				WithSuggestion("Tags may only contain lowercase letters, digits, underscores and hyphens")
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	if len(tags) == 0 {
		return nil, mnemoErrors.New(mnemoErrors.CodeInvalidTag, "no tags after normalization")
	}

	sort.Strings(tags)
	return TagSet(tags), nil
}

func validTag(tag string) bool {
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '_' || c == '-' {
			continue
		}
		return false
	}
	return len(tag) > 0
}

// Key returns the canonical comma-joined serialization of the tag set.
func (t TagSet) Key() string {
	return strings.Join(t, ",")
}

// Contains reports whether the set includes the given tag.
func (t TagSet) Contains(tag string) bool {
	i := sort.SearchStrings(t, tag)
	return i < len(t) && t[i] == tag
}

// ContainsAll reports whether every tag in sub is present in the set.
// An empty sub matches any set.
func (t TagSet) ContainsAll(sub TagSet) bool {
	for _, tag := range sub {
		if !t.Contains(tag) {
			return false
		}
	}
	return true
}

// Equal reports whether two tag sets have identical canonical forms.
func (t TagSet) Equal(other TagSet) bool {
	return t.Key() == other.Key()
}

// Clone returns an independent copy of the tag set.
func (t TagSet) Clone() TagSet {
	out := make(TagSet, len(t))
	copy(out, t)
	return out
}

// ParseKey reconstructs a TagSet from a canonical key. The key must already
// be canonical; ParseKey re-normalizes to guarantee the invariant.
func ParseKey(key string) (TagSet, error) {
	return NormalizeTags(key)
}
