package agent

import (
	"fmt"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/response"
)

// SearchSummaryKey is the canonical key of the entry summarizing the last
// storage_search.
const SearchSummaryKey = "search_results,summary"

// dispatch applies one parsed action to the memory store. Tag
// normalization failures and unknown types are returned to the caller,
// which records them as observable entries.
func (o *Orchestrator) dispatch(a *response.Action, iter uint64) error {
	switch a.Type {
	case response.ActionWorkingMemoryAdd:
		tags, err := memory.NormalizeTags(a.Tags)
		if err != nil {
			return err
		}
		o.mem.WorkingUpsert(tags, a.Value, iter)
		o.machine.Note(fmt.Sprintf("working_memory_add %s", tags.Key()), iter)
		return nil

	case response.ActionWorkingMemoryRemove:
		tags, err := memory.NormalizeTags(a.Tags)
		if err != nil {
			return err
		}
		if !o.mem.WorkingRemove(tags) {
			// Absent key is a no-op, but the agent should see it happened.
			o.machine.Note(fmt.Sprintf("working_memory_remove %s: no such entry", tags.Key()), iter)
			return nil
		}
		o.machine.Note(fmt.Sprintf("working_memory_remove %s", tags.Key()), iter)
		return nil

	case response.ActionStorageSave:
		tags, err := memory.NormalizeTags(a.Tags)
		if err != nil {
			return err
		}
		o.mem.PersistentUpsert(tags, a.Value, iter)
		o.machine.Note(fmt.Sprintf("storage_save %s", tags.Key()), iter)
		return nil

	case response.ActionStorageLoad:
		tags, err := memory.NormalizeTags(a.Tags)
		if err != nil {
			return err
		}
		matches := o.mem.PersistentLookupSubset(tags)
		loaded := o.loadIntoWorking(matches, iter)
		o.machine.Note(fmt.Sprintf("storage_load %s: %d of %d loaded", tags.Key(), loaded, len(matches)), iter)
		return nil

	case response.ActionStorageSearch:
		return o.dispatchSearch(a, iter)
	}

	return mnemoErrors.New(mnemoErrors.CodeMalformedAction,
		fmt.Sprintf("unknown action type %q", string(a.Type)))
}

// dispatchSearch looks up persistent entries by tag subset, filters by
// value substring, copies the matches into working memory and appends a
// one-line summary entry.
func (o *Orchestrator) dispatchSearch(a *response.Action, iter uint64) error {
	var tags memory.TagSet
	if a.Tags != "" {
		var err error
		tags, err = memory.NormalizeTags(a.Tags)
		if err != nil {
			return err
		}
	}

	var matches []memory.Entry
	for _, e := range o.mem.PersistentLookupSubset(tags) {
		if memory.ValueContains(e.Value, a.Value) {
			matches = append(matches, e)
		}
	}

	o.loadIntoWorking(matches, iter)

	summaryTags, err := memory.ParseKey(SearchSummaryKey)
	if err != nil {
		panic(err)
	}
	summary := fmt.Sprintf("found %d matches for tags:[%s] value:[%s]", len(matches), tags.Key(), a.Value)
	o.mem.WorkingUpsert(summaryTags, summary, iter)
	o.machine.Note(fmt.Sprintf("storage_search: %d matches", len(matches)), iter)
	return nil
}

// loadIntoWorking copies persistent entries into working memory in
// canonical-key order, stopping when another copy would push the working
// set past the hard limit. Dropped matches are logged, not errors.
func (o *Orchestrator) loadIntoWorking(matches []memory.Entry, iter uint64) int {
	hard := o.cfg.Agent.Limits.HardTokens
	loaded := 0
	for _, e := range matches {
		cost := uint64(len(e.Key())+len(e.Value)) / 4
		if o.mem.EstimateTokens(memory.LayerWorking)+cost > hard {
			o.logger.Warn("Working budget reached, dropping remaining matches",
				"loaded", loaded,
				"dropped", len(matches)-loaded,
			)
			break
		}
		o.mem.WorkingUpsert(e.Tags, e.Value, iter)
		loaded++
	}
	return loaded
}

// applyPaging executes the model's paging directives in order and reports
// how many were applied. Unknown keys are logged no-ops; the memory state
// reaches the persistence file only at the iteration's single commit
// point, so observers see all directives or none.
func (o *Orchestrator) applyPaging(directives []response.Directive, iter uint64) int {
	applied := 0
	for _, d := range directives {
		tags, err := memory.ParseKey(d.Key)
		if err != nil {
			o.logger.Warn("Paging directive has invalid key", "op", string(d.Kind), "key", d.Key, "error", err)
			continue
		}
		key := tags.Key()

		switch d.Kind {
		case response.DirectiveMoveToDisk, response.DirectiveArchive:
			e, ok := o.mem.WorkingLookupKey(key)
			if !ok {
				o.logger.Warn("Paging directive targets missing working entry", "op", string(d.Kind), "key", key)
				continue
			}
			o.mem.PersistentUpsert(e.Tags, e.Value, iter)
			o.mem.WorkingRemoveKey(key)
			applied++

		case response.DirectiveMoveToWorking:
			e, ok := o.mem.PersistentLookupKey(key)
			if !ok {
				o.logger.Warn("Paging directive targets missing persistent entry", "key", key)
				continue
			}
			o.mem.WorkingUpsert(e.Tags, e.Value, iter)
			applied++

		case response.DirectiveDelete:
			// Working only. Persistent entries are never deleted.
			if o.mem.WorkingRemoveKey(key) {
				applied++
			} else {
				o.logger.Warn("Paging delete targets missing working entry", "key", key)
			}

		case response.DirectiveImportance:
			// Parsed for forward compatibility; no consumer yet.
			o.logger.Debug("Ignoring importance directive", "key", key, "score", d.Score)
		}
	}

	if applied > 0 {
		o.machine.Note(fmt.Sprintf("paging applied %d directives", applied), iter)
	}
	return applied
}
