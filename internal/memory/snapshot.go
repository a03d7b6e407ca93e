package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// PersistedEntry is the on-disk form of an entry: the canonical key plus
// value and write iteration.
type PersistedEntry struct {
	Tags      string `json:"tags"`
	Value     string `json:"value"`
	Iteration uint64 `json:"iteration"`
}

// Document is the persistence file format: the full memory state plus the
// agent state name, rewritten atomically after every iteration.
type Document struct {
	Iteration     uint64           `json:"iteration"`
	State         string           `json:"state"`
	WorkingMemory []PersistedEntry `json:"working_memory"`
	Storage       []PersistedEntry `json:"storage"`
}

// Export produces a Document from the store's current contents. Entries in
// each section are ordered by ascending canonical key.
func (s *Store) Export(state string) *Document {
	doc := &Document{
		Iteration:     s.iteration,
		State:         state,
		WorkingMemory: make([]PersistedEntry, 0, len(s.working)),
		Storage:       make([]PersistedEntry, 0, len(s.persistent)),
	}
	for _, e := range s.WorkingEntries() {
		doc.WorkingMemory = append(doc.WorkingMemory, PersistedEntry{Tags: e.Key(), Value: e.Value, Iteration: e.Iteration})
	}
	for _, e := range s.PersistentEntries() {
		doc.Storage = append(doc.Storage, PersistedEntry{Tags: e.Key(), Value: e.Value, Iteration: e.Iteration})
	}
	return doc
}

// Restore replaces the store's contents with the document's. Keys are
// re-normalized so a hand-edited file cannot break the canonical-key
// invariant.
func (s *Store) Restore(doc *Document) error {
	working := make(map[string]Entry, len(doc.WorkingMemory))
	persistent := make(map[string]Entry, len(doc.Storage))

	for _, pe := range doc.WorkingMemory {
		tags, err := NormalizeTags(pe.Tags)
		if err != nil {
			return fmt.Errorf("working entry %q: %w", pe.Tags, err)
		}
		working[tags.Key()] = Entry{Tags: tags, Value: pe.Value, Iteration: pe.Iteration}
	}
	for _, pe := range doc.Storage {
		tags, err := NormalizeTags(pe.Tags)
		if err != nil {
			return fmt.Errorf("storage entry %q: %w", pe.Tags, err)
		}
		persistent[tags.Key()] = Entry{Tags: tags, Value: pe.Value, Iteration: pe.Iteration}
	}

	s.working = working
	s.persistent = persistent
	s.iteration = doc.Iteration
	return nil
}

// SaveDocument writes the document to path via temp-file + atomic rename.
// The in-memory state is unaffected on failure; a reader of the file sees
// either the previous document or this one, never a torn write.
func SaveDocument(path string, doc *Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to create persistence directory", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to marshal memory state", err)
	}

	tmp, err := os.CreateTemp(dir, ".memory-*.tmp")
	if err != nil {
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to write memory state", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to sync memory state", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to close temp file", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to commit memory state", err)
	}
	return nil
}

// LoadDocument reads a persisted document. A missing file is not an
// error: it returns (nil, nil) so a fresh run starts empty.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to read persistence file", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to parse persistence file", err)
	}
	return &doc, nil
}
