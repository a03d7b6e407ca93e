// Package agent owns the orchestrator loop: one iteration builds the
// prompt, calls the model, parses the reply, dispatches the requested
// action, applies paging, transitions state and persists memory.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemo-oss/mnemo/internal/config"
	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/event"
	"github.com/mnemo-oss/mnemo/internal/history"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/prompt"
	"github.com/mnemo-oss/mnemo/internal/provider"
	"github.com/mnemo-oss/mnemo/internal/provider/lmstudio"
	"github.com/mnemo-oss/mnemo/internal/response"
	"github.com/mnemo-oss/mnemo/internal/state"
	"github.com/mnemo-oss/mnemo/internal/telemetry"
)

// TaskCompleteKey is the working-memory key the agent writes to signal it
// considers the task finished. The run stops after the iteration that
// produced it.
const TaskCompleteKey = "task_complete"

// Orchestrator drives one agent through its cognitive cycle. It is
// single-threaded: one loop, one in-flight LLM call, no concurrent
// mutation of memory.
type Orchestrator struct {
	cfg       *config.Config
	mem       *memory.Store
	machine   *state.Machine
	assembler *prompt.Assembler
	provider  provider.Provider
	bus       *event.Bus
	journal   history.Journal
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics

	seedTask string

	// Set when New opened the journal itself; injected journals are
	// closed by their owner.
	ownsJournal bool
}

// New creates an orchestrator wired to the configured endpoint, journal
// and hooks.
func New(cfg *config.Config, logger *telemetry.Logger) (*Orchestrator, error) {
	metrics := telemetry.NewMetrics()

	client := lmstudio.NewClient(cfg.LLM.Endpoint, cfg.LLM.Model, cfg.LLM.Token)
	retryCfg := provider.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.LLM.MaxRetries
	retryCfg.OnRetry = metrics.IncLLMRetries
	p := provider.NewRetryProvider(client, retryCfg)

	journal, err := history.Open(cfg.History)
	if err != nil {
		return nil, err
	}

	bus := event.BusFromConfig(cfg.Hooks, logger)

	o := NewWithDeps(cfg, p, bus, journal, logger)
	o.metrics = metrics
	o.ownsJournal = true
	return o, nil
}

// NewWithDeps creates an orchestrator with injected dependencies. This
// enables testing with mock providers.
func NewWithDeps(cfg *config.Config, p provider.Provider, bus *event.Bus, journal history.Journal, logger *telemetry.Logger) *Orchestrator {
	if journal == nil {
		journal = history.NopJournal{}
	}

	mem := memory.NewStore()

	statePrompts := make(map[state.State]string, len(cfg.Agent.Prompts))
	for name, text := range cfg.Agent.Prompts {
		if st, err := state.Parse(name); err == nil {
			statePrompts[st] = text
		}
	}

	role := prompt.Role{
		Identity:         cfg.Agent.Role.Identity,
		Purpose:          cfg.Agent.Role.Purpose,
		KnowledgeDomains: cfg.Agent.Role.KnowledgeDomains,
	}

	return &Orchestrator{
		cfg:       cfg,
		mem:       mem,
		machine:   state.NewMachine(mem),
		assembler: prompt.NewAssembler(role, statePrompts, cfg.Agent.Limits.SoftTokens),
		provider:  p,
		bus:       bus,
		journal:   journal,
		logger:    logger,
		metrics:   telemetry.NewMetrics(),
	}
}

// Memory exposes the store for inspection in tests and the CLI.
func (o *Orchestrator) Memory() *memory.Store {
	return o.mem
}

// State returns the machine's current state.
func (o *Orchestrator) State() state.State {
	return o.machine.Current()
}

// Metrics returns the run's counters.
func (o *Orchestrator) Metrics() *telemetry.Metrics {
	return o.metrics
}

// SeedTask arranges for the task description to be written into working
// memory under the "current_task" tag once the run starts. Applied after
// any persistence file has been restored, so a resumed run picks up the
// new task text.
func (o *Orchestrator) SeedTask(task string) error {
	o.seedTask = task
	return nil
}

// Run executes iterations until the task completes, the iteration cap is
// reached, the context is cancelled, or a fatal error escapes. The
// persistence file is locked for the duration of the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	path := o.cfg.Agent.Memory.PersistencePath

	lock, err := memory.AcquireLock(path)
	if err != nil {
		return err
	}
	defer lock.Release()

	if o.ownsJournal {
		defer o.journal.Close()
	}

	if err := o.restore(path); err != nil {
		return err
	}

	if o.seedTask != "" {
		tags, terr := memory.NormalizeTags("current_task")
		if terr != nil {
			panic(terr)
		}
		o.mem.WorkingUpsert(tags, o.seedTask, o.mem.Iteration())
		// A new task supersedes a completion marker from a previous run.
		o.mem.WorkingRemoveKey(TaskCompleteKey)
	}

	if o.cfg.Logging.MetricsFile != "" {
		exp, xerr := telemetry.NewJSONFileExporter(o.cfg.Logging.MetricsFile)
		if xerr != nil {
			o.logger.Warn("Failed to open metrics file", "path", o.cfg.Logging.MetricsFile, "error", xerr)
		} else {
			o.metrics.SetExporter(exp)
			defer exp.Close()
		}
	}

	run := history.NewRun(o.cfg.Agent.Role.Identity)
	ctx = telemetry.ContextWithTrace(ctx, telemetry.NewTraceContext(run.ID))

	if err := o.journal.SaveRun(run); err != nil {
		o.logger.Warn("Failed to record run start", "error", err)
	}
	o.bus.Emit(event.NewEvent(event.RunStarted, map[string]interface{}{
		"run_id":    run.ID,
		"iteration": o.mem.Iteration(),
	}))
	o.logger.Info("Run started",
		"run_id", run.ID,
		"state", string(o.machine.Current()),
		"iteration", o.mem.Iteration(),
	)

	status := history.StatusCompleted
	var runErr error

	for {
		if err := ctx.Err(); err != nil {
			status, runErr = history.StatusFailed, err
			break
		}

		if _, done := o.mem.WorkingLookupKey(TaskCompleteKey); done {
			o.logger.Info("Task complete marker observed", "iteration", o.mem.Iteration())
			break
		}

		iter := o.mem.Iteration() + 1
		if iter > o.cfg.Agent.Limits.MaxIterations {
			o.logger.Info("Iteration cap reached", "cap", o.cfg.Agent.Limits.MaxIterations)
			o.machine.Note("iteration cap reached", o.mem.Iteration())
			break
		}

		if err := o.runIteration(ctx, run.ID, iter); err != nil {
			if mnemoErrors.AsCode(err) == mnemoErrors.CodeDeadlockGuard {
				status = history.StatusDeadlock
			} else {
				status = history.StatusFailed
			}
			runErr = err
			break
		}
	}

	run.Complete(status, o.mem.Iteration(), runErr)
	if err := o.journal.SaveRun(run); err != nil {
		o.logger.Warn("Failed to record run end", "error", err)
	}

	if runErr != nil {
		o.bus.Emit(event.NewEvent(event.RunFailed, map[string]interface{}{
			"run_id": run.ID,
			"status": status,
			"error":  runErr.Error(),
		}))
	} else {
		o.bus.Emit(event.NewEvent(event.RunCompleted, map[string]interface{}{
			"run_id":     run.ID,
			"iterations": o.mem.Iteration(),
		}))
	}
	o.logger.Progress("run %s: %s after %d iterations", run.ID, status, o.mem.Iteration())

	flushEvent := "run.completed"
	if runErr != nil {
		flushEvent = "run.failed"
	}
	o.metrics.Flush(flushEvent, map[string]string{
		"run_id": run.ID,
		"status": status,
	})

	return runErr
}

// restore loads the persistence file, if present, into memory and the
// state machine.
func (o *Orchestrator) restore(path string) error {
	doc, err := memory.LoadDocument(path)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	if err := o.mem.Restore(doc); err != nil {
		return err
	}
	st, err := state.Parse(doc.State)
	if err != nil {
		return mnemoErrors.Wrap(mnemoErrors.CodeIO,
			fmt.Sprintf("persistence file holds unknown state %q", doc.State), err)
	}
	o.machine.Restore(st)
	o.logger.Info("Resumed from persistence file",
		"path", path,
		"iteration", o.mem.Iteration(),
		"state", doc.State,
	)
	return nil
}

// runIteration performs one full loop. Recoverable failures (transport
// exhaustion, malformed replies, bad actions) become observable memory
// entries and force the next state to evaluating; only the deadlock guard
// escapes as an error.
func (o *Orchestrator) runIteration(ctx context.Context, runID string, iter uint64) error {
	start := time.Now()
	cur := o.machine.Current()
	o.metrics.IncIterations()

	if tc := telemetry.TraceFromContext(ctx); tc != nil {
		ctx = telemetry.ContextWithTrace(ctx, tc.IterationSpan(iter, string(cur)))
	}
	log := o.logger.WithTrace(ctx)

	o.bus.Emit(event.NewEvent(event.IterationStarted, map[string]interface{}{
		"run_id":    runID,
		"iteration": iter,
		"state":     string(cur),
	}))
	o.logger.Progress("iteration %d [%s]", iter, cur)

	text := o.assembler.Build(cur, o.mem)
	sampling := prompt.SamplingFor(cur, o.cfg.LLM.Temperature, o.cfg.LLM.TopP, o.cfg.LLM.TopK)
	req := &provider.CompletionRequest{
		Model:       o.cfg.LLM.Model,
		Messages:    []provider.Message{{Role: "user", Content: text}},
		Temperature: sampling.Temperature,
		TopP:        sampling.TopP,
		TopK:        sampling.TopK,
		MaxTokens:   o.cfg.LLM.MaxTokens,
	}

	o.metrics.IncLLMRequests()
	llmStart := time.Now()
	resp, err := o.provider.Complete(ctx, req)
	o.metrics.RecordLLMLatency(time.Since(llmStart))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.recordFailure(log, "llm_error", err, iter)
		return o.commit(runID, iter, "", start)
	}
	log.Debug("Model reply received", "latency_ms", time.Since(llmStart).Milliseconds(), "chars", len(resp.Content))

	reply, err := response.Parse(resp.Content)
	if err != nil {
		o.recordFailure(log, "parse_error", err, iter)
		return o.commit(runID, iter, "", start)
	}

	if reply.ThinkingLog != "" && cur == state.Thinking {
		o.machine.RecordThinkingLog(reply.ThinkingLog, iter)
	}
	if reply.EvaluatingLog != "" && cur == state.Evaluating {
		o.machine.RecordEvaluatingLog(reply.EvaluatingLog, iter)
	}

	actionName := ""
	if reply.Action != nil {
		actionName = string(reply.Action.Type)
		if derr := o.dispatch(reply.Action, iter); derr != nil {
			o.metrics.IncActionsFailed()
			o.writeErrorEntry("action_error", derr, iter)
			o.machine.Note(fmt.Sprintf("action %s failed: %s", actionName, derr), iter)
		} else {
			o.metrics.IncActionsDispatched()
			o.bus.Emit(event.NewEvent(event.ActionDispatched, map[string]interface{}{
				"run_id":    runID,
				"iteration": iter,
				"action":    actionName,
			}))
		}
	}

	if cur == state.Paging && len(reply.Paging) > 0 {
		applied := o.applyPaging(reply.Paging, iter)
		o.metrics.AddPagingDirectives(applied)
		o.bus.Emit(event.NewEvent(event.PagingApplied, map[string]interface{}{
			"run_id":    runID,
			"iteration": iter,
			"applied":   applied,
		}))
	}

	next := reply.NextState
	reason := "requested"
	if o.mem.EstimateTokens(memory.LayerWorking) >= o.cfg.Agent.Limits.HardTokens {
		if next != state.Paging {
			reason = "hard limit exceeded"
		}
		next = state.Paging
		o.metrics.IncForcedPagings()
	}

	if terr := o.machine.Transition(next, reason, iter); terr != nil {
		if mnemoErrors.AsCode(terr) == mnemoErrors.CodeDeadlockGuard {
			// Persist the final paging state before the run aborts.
			o.mem.SetIteration(iter)
			o.persist(iter)
			return terr
		}
		o.recordFailure(log, "transition_error", terr, iter)
	}

	o.bus.Emit(event.NewEvent(event.StateEntered, map[string]interface{}{
		"run_id":    runID,
		"iteration": iter,
		"state":     string(o.machine.Current()),
	}))

	return o.commit(runID, iter, actionName, start)
}

// recordFailure turns a recoverable error into an observable memory entry
// and forces the machine to evaluating so the agent sees its own mistake
// on the next iteration.
func (o *Orchestrator) recordFailure(log *telemetry.Logger, kind string, err error, iter uint64) {
	log.Warn("Iteration error", "kind", kind, "error", err)
	o.writeErrorEntry(kind, err, iter)
	if o.machine.Current() != state.Evaluating {
		o.machine.ForceTransition(state.Evaluating, kind, iter)
	}
}

func (o *Orchestrator) writeErrorEntry(kind string, err error, iter uint64) {
	tags, terr := memory.NormalizeTags("agent_log," + kind)
	if terr != nil {
		panic(terr)
	}
	o.mem.WorkingUpsert(tags, err.Error(), iter)
}

// commit increments the iteration counter and rewrites the persistence
// file. A failed write keeps the in-memory state: the next iteration
// carries the uncommitted changes forward and re-attempts serialization.
func (o *Orchestrator) commit(runID string, iter uint64, action string, start time.Time) error {
	o.mem.SetIteration(iter)
	o.persist(iter)

	workingTokens := o.mem.EstimateTokens(memory.LayerWorking)
	if err := o.journal.RecordIteration(&history.IterationRecord{
		RunID:         runID,
		Iteration:     iter,
		State:         string(o.machine.Current()),
		Action:        action,
		WorkingTokens: workingTokens,
		DurationMS:    time.Since(start).Milliseconds(),
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		o.logger.Warn("Failed to journal iteration", "iteration", iter, "error", err)
	}

	o.metrics.RecordIterationDuration(time.Since(start))
	o.bus.Emit(event.NewEvent(event.IterationCompleted, map[string]interface{}{
		"run_id":         runID,
		"iteration":      iter,
		"state":          string(o.machine.Current()),
		"working_tokens": workingTokens,
	}))
	return nil
}

func (o *Orchestrator) persist(iter uint64) {
	path := o.cfg.Agent.Memory.PersistencePath
	doc := o.mem.Export(string(o.machine.Current()))
	if err := memory.SaveDocument(path, doc); err != nil {
		o.logger.Error("Failed to persist memory", "iteration", iter, "error", err)
		return
	}
	o.metrics.IncSnapshotWrites()
	o.bus.Emit(event.NewEvent(event.MemoryPersisted, map[string]interface{}{
		"iteration": iter,
		"path":      path,
	}))
}
