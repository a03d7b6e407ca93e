package memory

import (
	"sort"
	"strings"
)

// Layer identifies one of the two memory tiers.
type Layer string

const (
	LayerWorking    Layer = "working"
	LayerPersistent Layer = "persistent"
)

// Entry is a single memory record: a canonical tag set, an opaque UTF-8
// value, and the iteration at which it was written.
type Entry struct {
	Tags      TagSet `json:"-"`
	Value     string `json:"value"`
	Iteration uint64 `json:"iteration"`
}

// Key returns the entry's canonical storage key.
func (e Entry) Key() string {
	return e.Tags.Key()
}

// clone returns a deep copy of the entry.
func (e Entry) clone() Entry {
	return Entry{Tags: e.Tags.Clone(), Value: e.Value, Iteration: e.Iteration}
}

// Store is the two-tier memory engine. Working is the bounded in-context
// tier; persistent is the unbounded out-of-context tier. Both map
// canonical tag-set keys to entries. The store is not safe for concurrent
// use; the orchestrator drives it strictly sequentially.
type Store struct {
	working    map[string]Entry
	persistent map[string]Entry
	iteration  uint64
}

// NewStore creates an empty store at iteration zero.
func NewStore() *Store {
	return &Store{
		working:    make(map[string]Entry),
		persistent: make(map[string]Entry),
	}
}

// Iteration returns the current iteration counter.
func (s *Store) Iteration() uint64 {
	return s.iteration
}

// SetIteration sets the iteration counter. Used on restore and by the
// orchestrator after each committed iteration.
func (s *Store) SetIteration(n uint64) {
	s.iteration = n
}

// WorkingUpsert writes an entry into the working layer, overwriting any
// existing entry under the same canonical key.
func (s *Store) WorkingUpsert(tags TagSet, value string, iteration uint64) {
	s.working[tags.Key()] = Entry{Tags: tags.Clone(), Value: value, Iteration: iteration}
}

// WorkingRemove deletes the working entry whose canonical key equals the
// given tag set. It reports whether an entry was removed.
func (s *Store) WorkingRemove(tags TagSet) bool {
	return s.WorkingRemoveKey(tags.Key())
}

// WorkingRemoveKey deletes a working entry by canonical key.
func (s *Store) WorkingRemoveKey(key string) bool {
	if _, ok := s.working[key]; !ok {
		return false
	}
	delete(s.working, key)
	return true
}

// WorkingLookupKey returns the working entry under the given canonical key.
func (s *Store) WorkingLookupKey(key string) (Entry, bool) {
	e, ok := s.working[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// PersistentUpsert writes an entry into the persistent layer, overwriting
// any existing entry under the same canonical key.
func (s *Store) PersistentUpsert(tags TagSet, value string, iteration uint64) {
	s.persistent[tags.Key()] = Entry{Tags: tags.Clone(), Value: value, Iteration: iteration}
}

// PersistentLookupKey returns the persistent entry under the given key.
func (s *Store) PersistentLookupKey(key string) (Entry, bool) {
	e, ok := s.persistent[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// PersistentLookupSubset returns every persistent entry whose tag set is a
// superset of search. An empty search matches all entries. Results are
// ordered by ascending canonical key.
func (s *Store) PersistentLookupSubset(search TagSet) []Entry {
	var out []Entry
	for _, e := range s.persistent {
		if e.Tags.ContainsAll(search) {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// WorkingEntries returns all working entries in ascending canonical-key
// order.
func (s *Store) WorkingEntries() []Entry {
	return sortedEntries(s.working)
}

// PersistentEntries returns all persistent entries in ascending
// canonical-key order.
func (s *Store) PersistentEntries() []Entry {
	return sortedEntries(s.persistent)
}

// WorkingLen returns the number of working entries.
func (s *Store) WorkingLen() int { return len(s.working) }

// PersistentLen returns the number of persistent entries.
func (s *Store) PersistentLen() int { return len(s.persistent) }

func sortedEntries(m map[string]Entry) []Entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k].clone())
	}
	return out
}

// EstimateTokens returns a rough token estimate for a layer: total
// character count of keys and values divided by four. The estimate is
// monotone in content size.
func (s *Store) EstimateTokens(layer Layer) uint64 {
	var m map[string]Entry
	switch layer {
	case LayerPersistent:
		m = s.persistent
	default:
		m = s.working
	}

	var chars uint64
	for k, e := range m {
		chars += uint64(len(k)) + uint64(len(e.Value))
	}
	return chars / 4
}

// ValueContains reports whether the entry value contains the given
// substring, compared case-insensitively over ASCII letters. Non-ASCII
// bytes compare only equal to themselves.
func ValueContains(value, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(asciiLower(value), asciiLower(substr))
}

func asciiLower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
