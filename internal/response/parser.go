// Package response parses the model's XML-ish reply into typed commands
// for the orchestrator. The grammar is a fixed small subset, so this is a
// hand parser rather than a general XML library: unknown elements are
// ignored, the handful of entity escapes are decoded, and everything else
// passes through verbatim.
package response

import (
	"fmt"
	"strings"

	"github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/state"
)

// ActionType identifies one of the five memory actions the model may
// request per iteration.
type ActionType string

const (
	ActionWorkingMemoryAdd    ActionType = "working_memory_add"
	ActionWorkingMemoryRemove ActionType = "working_memory_remove"
	ActionStorageSave         ActionType = "storage_save"
	ActionStorageLoad         ActionType = "storage_load"
	ActionStorageSearch       ActionType = "storage_search"
)

// Action is one parsed <action> block.
type Action struct {
	Type  ActionType
	Tags  string
	Value string
}

// DirectiveKind is the verb of one paging micro-command.
type DirectiveKind string

const (
	DirectiveMoveToDisk    DirectiveKind = "move_to_disk"
	DirectiveMoveToWorking DirectiveKind = "move_to_working"
	DirectiveArchive       DirectiveKind = "archive"
	DirectiveImportance    DirectiveKind = "importance"
	DirectiveDelete        DirectiveKind = "delete"
)

// Directive is one parsed paging <op>, e.g. "move_to_disk:notes,task".
type Directive struct {
	Kind  DirectiveKind
	Key   string
	Score string
}

// Reply is the fully parsed model output for one iteration.
type Reply struct {
	NextState     state.State
	ThinkingLog   string
	EvaluatingLog string
	Action        *Action
	Paging        []Directive
}

// Parse extracts the typed reply from the raw message content. A missing
// envelope or next_state is a malformed response; a present action with
// missing required fields is a malformed action.
func Parse(content string) (*Reply, error) {
	body, ok := element(content, "agent")
	if !ok {
		return nil, errors.New(errors.CodeMalformedResponse,
			"response has no <agent> envelope").
			WithSuggestion("the model must wrap its reply in <agent>...</agent>")
	}

	rawState, ok := element(body, "next_state")
	if !ok {
		return nil, errors.New(errors.CodeMalformedResponse,
			"response has no <next_state> element")
	}
	next, err := state.Parse(decode(rawState))
	if err != nil {
		return nil, err
	}

	r := &Reply{NextState: next}
	if log, ok := element(body, "thinking_log"); ok {
		r.ThinkingLog = decode(log)
	}
	if log, ok := element(body, "evaluating_log"); ok {
		r.EvaluatingLog = decode(log)
	}

	if actionBody, ok := element(body, "action"); ok {
		action, err := parseAction(actionBody)
		if err != nil {
			return nil, err
		}
		r.Action = action
	}

	r.Paging = parsePaging(body)
	return r, nil
}

func parseAction(body string) (*Action, error) {
	rawType, ok := element(body, "type")
	if !ok {
		return nil, errors.New(errors.CodeMalformedAction,
			"action has no <type> element")
	}
	a := &Action{Type: ActionType(decode(rawType))}

	if tags, ok := element(body, "tags"); ok {
		a.Tags = decode(tags)
	}
	if value, ok := element(body, "value"); ok {
		a.Value = decode(value)
	}

	switch a.Type {
	case ActionWorkingMemoryAdd, ActionStorageSave:
		if a.Tags == "" {
			return nil, errors.New(errors.CodeMalformedAction,
				fmt.Sprintf("%s requires <tags>", a.Type))
		}
		if a.Value == "" {
			return nil, errors.New(errors.CodeMalformedAction,
				fmt.Sprintf("%s requires <value>", a.Type))
		}
	case ActionWorkingMemoryRemove, ActionStorageLoad:
		if a.Tags == "" {
			return nil, errors.New(errors.CodeMalformedAction,
				fmt.Sprintf("%s requires <tags>", a.Type))
		}
	case ActionStorageSearch:
		// Both filters are optional; an empty search matches everything.
	default:
		return nil, errors.New(errors.CodeMalformedAction,
			fmt.Sprintf("unknown action type %q", string(a.Type)))
	}
	return a, nil
}

// parsePaging collects every <op> from every <paging> block, in document
// order. Unknown verbs are skipped, not errors: the model is allowed to
// emit directives the runtime does not implement yet.
func parsePaging(body string) []Directive {
	var out []Directive
	rest := body
	for {
		block, ok := element(rest, "paging")
		if !ok {
			break
		}
		ops := block
		for {
			op, found := element(ops, "op")
			if !found {
				break
			}
			if d, valid := parseDirective(decode(op)); valid {
				out = append(out, d)
			}
			ops = ops[strings.Index(ops, "</op>")+len("</op>"):]
		}
		rest = rest[strings.Index(rest, "</paging>")+len("</paging>"):]
	}
	return out
}

func parseDirective(raw string) (Directive, bool) {
	raw = strings.TrimSpace(raw)
	verb, arg, ok := strings.Cut(raw, ":")
	if !ok {
		return Directive{}, false
	}
	switch DirectiveKind(verb) {
	case DirectiveMoveToDisk, DirectiveMoveToWorking, DirectiveArchive, DirectiveDelete:
		if arg == "" {
			return Directive{}, false
		}
		return Directive{Kind: DirectiveKind(verb), Key: arg}, true
	case DirectiveImportance:
		key, score, hasScore := strings.Cut(arg, ":")
		if key == "" || !hasScore {
			return Directive{}, false
		}
		return Directive{Kind: DirectiveImportance, Key: key, Score: score}, true
	}
	return Directive{}, false
}

// element returns the trimmed text between the first <name> and the
// following </name>. Matching is case-sensitive and non-nesting, which is
// all the grammar needs.
func element(s, name string) (string, bool) {
	open := "<" + name + ">"
	closing := "</" + name + ">"
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(s[start:], closing)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(s[start : start+end]), true
}

// decode expands the supported entity escapes.
func decode(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	r := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return r.Replace(s)
}
