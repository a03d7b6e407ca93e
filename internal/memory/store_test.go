package memory

import (
	"reflect"
	"testing"
)

func mustTags(t *testing.T, raw string) TagSet {
	t.Helper()
	tags, err := NormalizeTags(raw)
	if err != nil {
		t.Fatal(err)
	}
	return tags
}

func TestStore_WorkingUpsertRemove(t *testing.T) {
	s := NewStore()
	tags := mustTags(t, "alpha, beta")

	s.WorkingUpsert(tags, "one", 1)

	e, ok := s.WorkingLookupKey("alpha,beta")
	if !ok {
		t.Fatal("expected entry under alpha,beta")
	}
	if e.Value != "one" || e.Iteration != 1 {
		t.Errorf("unexpected entry %+v", e)
	}

	// Remove with a differently-ordered raw spelling of the same set.
	removeTags := mustTags(t, "Beta , Alpha")
	if !s.WorkingRemove(removeTags) {
		t.Fatal("expected removal to succeed")
	}
	if s.WorkingLen() != 0 {
		t.Errorf("expected empty working memory, got %d entries", s.WorkingLen())
	}

	// Removing again is a no-op.
	if s.WorkingRemove(removeTags) {
		t.Error("second removal should report not found")
	}
}

func TestStore_UpsertIdempotent(t *testing.T) {
	a := NewStore()
	b := NewStore()
	tags := mustTags(t, "k")

	a.WorkingUpsert(tags, "v", 3)

	b.WorkingUpsert(tags, "v", 3)
	b.WorkingUpsert(tags, "v", 3)

	if !reflect.DeepEqual(a.Export(""), b.Export("")) {
		t.Error("double upsert should leave memory identical to a single upsert")
	}
}

func TestStore_UpsertOverwrites(t *testing.T) {
	s := NewStore()
	tags := mustTags(t, "k")
	s.PersistentUpsert(tags, "old", 1)
	s.PersistentUpsert(tags, "new", 2)

	if s.PersistentLen() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.PersistentLen())
	}
	e, _ := s.PersistentLookupKey("k")
	if e.Value != "new" || e.Iteration != 2 {
		t.Errorf("expected overwrite, got %+v", e)
	}
}

func TestStore_LayerSeparation(t *testing.T) {
	s := NewStore()
	tags := mustTags(t, "shared")
	s.WorkingUpsert(tags, "in working", 5)
	s.PersistentUpsert(tags, "in storage", 3)

	w, _ := s.WorkingLookupKey("shared")
	p, _ := s.PersistentLookupKey("shared")
	if w.Value != "in working" || p.Value != "in storage" {
		t.Error("layers should hold independent values under the same key")
	}
}

func TestStore_PersistentLookupSubset(t *testing.T) {
	s := NewStore()
	s.PersistentUpsert(mustTags(t, "domain_math,topic_linear_algebra"), "rank-nullity", 1)
	s.PersistentUpsert(mustTags(t, "domain_math,topic_calculus"), "chain rule", 1)
	s.PersistentUpsert(mustTags(t, "domain_history"), "1066", 1)

	// Subset soundness: every result is a superset of the query.
	query := mustTags(t, "domain_math")
	results := s.PersistentLookupSubset(query)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	for _, e := range results {
		if !e.Tags.ContainsAll(query) {
			t.Errorf("result %q does not contain query tags", e.Key())
		}
	}

	// Deterministic ascending key order.
	if results[0].Key() != "domain_math,topic_calculus" || results[1].Key() != "domain_math,topic_linear_algebra" {
		t.Errorf("results not in canonical-key order: %q, %q", results[0].Key(), results[1].Key())
	}

	// Single-tag subset match against a multi-tag entry.
	byTopic := s.PersistentLookupSubset(mustTags(t, "topic_linear_algebra"))
	if len(byTopic) != 1 || byTopic[0].Value != "rank-nullity" {
		t.Errorf("unexpected subset result %+v", byTopic)
	}

	// Empty search matches all entries.
	all := s.PersistentLookupSubset(TagSet{})
	if len(all) != 3 {
		t.Errorf("empty search should match all, got %d", len(all))
	}

	// No match.
	none := s.PersistentLookupSubset(mustTags(t, "domain_physics"))
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestStore_EstimateTokens(t *testing.T) {
	s := NewStore()
	if s.EstimateTokens(LayerWorking) != 0 {
		t.Error("empty store should estimate 0")
	}

	s.WorkingUpsert(mustTags(t, "abcd"), "12345678", 1) // 4 key chars + 8 value chars = 3 tokens
	got := s.EstimateTokens(LayerWorking)
	if got != 3 {
		t.Errorf("expected 3 tokens, got %d", got)
	}

	// Monotone in content size.
	s.WorkingUpsert(mustTags(t, "more"), "content here", 2)
	if s.EstimateTokens(LayerWorking) <= got {
		t.Error("estimate should grow with content")
	}

	if s.EstimateTokens(LayerPersistent) != 0 {
		t.Error("persistent layer should be unaffected")
	}
}

func TestStore_EntriesSorted(t *testing.T) {
	s := NewStore()
	s.WorkingUpsert(mustTags(t, "zulu"), "z", 1)
	s.WorkingUpsert(mustTags(t, "alpha"), "a", 1)
	s.WorkingUpsert(mustTags(t, "mike"), "m", 1)

	entries := s.WorkingEntries()
	want := []string{"alpha", "mike", "zulu"}
	for i, e := range entries {
		if e.Key() != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, e.Key(), want[i])
		}
	}
}

func TestStore_LookupReturnsCopy(t *testing.T) {
	s := NewStore()
	s.WorkingUpsert(mustTags(t, "a,b"), "v", 1)

	e, _ := s.WorkingLookupKey("a,b")
	e.Tags[0] = "mutated"

	again, _ := s.WorkingLookupKey("a,b")
	if again.Tags[0] != "a" {
		t.Error("lookup should return an independent copy")
	}
}

func TestValueContains(t *testing.T) {
	tests := []struct {
		value, substr string
		want          bool
	}{
		{"The cat sat", "cat", true},
		{"Catastrophe", "cat", true},
		{"dog", "cat", false},
		{"anything", "", true},
		{"HELLO", "hello", true},
		{"café", "café", true},  // non-ASCII bytes compare as themselves
		{"café", "CAFÉ", false}, // no Unicode folding
	}
	for _, tt := range tests {
		if got := ValueContains(tt.value, tt.substr); got != tt.want {
			t.Errorf("ValueContains(%q, %q) = %v, want %v", tt.value, tt.substr, got, tt.want)
		}
	}
}
