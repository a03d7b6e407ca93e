// Package prompt builds the deterministic user message sent to the LLM:
// role foundation, operating principles, memory layout primer, knowledge
// base excerpt, working context, state guidance, instruction suffix.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/state"
)

// Role is the agent's fixed identity, read from config.
type Role struct {
	Identity         string
	Purpose          string
	KnowledgeDomains []string
}

// Section budget ratios. The preamble (role + principles + primer) gets
// 4%, the knowledge base 50%, the working context 38%, and the state
// guidance 8% of the total token budget.
const (
	ratioPreamble  = 0.04
	ratioKnowledge = 0.50
	ratioWorking   = 0.38
	ratioGuidance  = 0.08
)

const principles = `Operating principles:
- Respond only with the XML schema described below.
- Address memory entries by their comma-separated tag sets.
- Keep working memory small; save durable knowledge to storage.
- Think in small steps; one action per iteration.`

const primer = `Memory layout: you have a bounded working memory (shown below in full) and an unbounded persistent storage (excerpted below). Actions: working_memory_add, working_memory_remove, storage_save, storage_load, storage_search.`

const suffix = `Respond using the specified XML schema.`

// Assembler builds prompts under a hard token budget. The same memory
// state always produces the same prompt byte-for-byte.
type Assembler struct {
	role         Role
	statePrompts map[state.State]string
	budget       uint64
}

// NewAssembler creates an assembler with the given role, per-state
// guidance text and total token budget.
func NewAssembler(role Role, statePrompts map[state.State]string, budget uint64) *Assembler {
	return &Assembler{
		role:         role,
		statePrompts: statePrompts,
		budget:       budget,
	}
}

// estimate mirrors the memory store's token estimate: characters / 4.
func estimate(s string) uint64 {
	return uint64(len(s)) / 4
}

// Build assembles the prompt for the current state from the memory store.
// Sections are filled in order; a section stops on an entry boundary once
// its share of the budget is reached. Truncation is silent and
// deterministic.
func (a *Assembler) Build(st state.State, mem *memory.Store) string {
	var b strings.Builder

	preamble := a.buildPreamble()
	b.WriteString(clipToBudget(preamble, uint64(float64(a.budget)*ratioPreamble)))

	b.WriteString("\n<knowledge_base>\n")
	b.WriteString(a.buildEntries(mem.PersistentEntries(), uint64(float64(a.budget)*ratioKnowledge)))
	b.WriteString("</knowledge_base>\n")

	b.WriteString("\n<working_memory>\n")
	b.WriteString(a.buildEntries(mem.WorkingEntries(), uint64(float64(a.budget)*ratioWorking)))
	b.WriteString("</working_memory>\n")

	guidance := a.statePrompts[st]
	if guidance != "" {
		b.WriteString("\n" + clipToBudget(guidance, uint64(float64(a.budget)*ratioGuidance)) + "\n")
	}

	b.WriteString("\n" + suffix)
	return b.String()
}

func (a *Assembler) buildPreamble() string {
	var b strings.Builder
	b.WriteString("You are " + a.role.Identity + ".\n")
	b.WriteString("Purpose: " + a.role.Purpose + "\n")
	if len(a.role.KnowledgeDomains) > 0 {
		b.WriteString("Expertise: " + strings.Join(a.role.KnowledgeDomains, ", ") + "\n")
	}
	b.WriteString("\n" + principles + "\n\n" + primer + "\n")
	return b.String()
}

// buildEntries serializes entries in ascending canonical-key order until
// the section budget is reached. Entries are never split: the first entry
// that would exceed the budget ends the section.
func (a *Assembler) buildEntries(entries []memory.Entry, sectionBudget uint64) string {
	var b strings.Builder
	var used uint64

	for _, e := range entries {
		line := fmt.Sprintf("<entry tags=%q iteration=\"%d\">%s</entry>\n",
			e.Key(), e.Iteration, escapeText(e.Value))
		cost := estimate(line)
		if used+cost > sectionBudget && used > 0 {
			break
		}
		if cost > sectionBudget {
			break
		}
		b.WriteString(line)
		used += cost
	}
	return b.String()
}

// clipToBudget truncates fixed text to its budget on a line boundary.
func clipToBudget(s string, budget uint64) string {
	if estimate(s) <= budget {
		return s
	}
	lines := strings.Split(s, "\n")
	var b strings.Builder
	var used uint64
	for _, line := range lines {
		cost := estimate(line + "\n")
		if used+cost > budget {
			break
		}
		b.WriteString(line + "\n")
		used += cost
	}
	return b.String()
}

// escapeText escapes the XML-sensitive characters in entry values so the
// prompt's entry markup stays parseable.
func escapeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

// Sampling are the request parameters chosen for one state.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
}

// SamplingFor adjusts the configured base parameters per state: thinking
// and evaluating sample at the configured temperature, executing and
// paging at half of it for more deterministic action output.
func SamplingFor(st state.State, temperature, topP float64, topK int) Sampling {
	s := Sampling{Temperature: temperature, TopP: topP, TopK: topK}
	switch st {
	case state.Executing, state.Paging:
		s.Temperature = temperature / 2
	}
	return s
}
