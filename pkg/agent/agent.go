package agent

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/bub-go/pkg/errors"
	"github.com/theapemachine/bub-go/pkg/memory"
	"github.com/theapemachine/bub-go/pkg/provider"
	"github.com/theapemachine/bub-go/pkg/tape"
)

// DefaultTapeName follows the agent:user naming convention with the
// stock identifiers.
const DefaultTapeName = "endless-context:default"

// DefaultSystemPrompt steers the model toward tape-grounded answers.
const DefaultSystemPrompt = "You are a tape-first assistant. Keep answers concise, grounded in recorded facts, " +
	"and maintain continuity with handoff anchors."

// ContextSelectionEvent marks which context slice fed a reply.
const ContextSelectionEvent = "gradio.context_selection"

// RunEvent carries the usage figures of a completed provider call.
const RunEvent = "run"

const defaultMemoryLimit = 5

/*
Agent drives a single conversation tape: it resolves views, replays
context into provider calls, and records every turn back onto the tape.
One Agent serves one tape; construct another for another conversation.
*/
type Agent struct {
	store        tape.Store
	prvdr        provider.Interface
	memories     *memory.Store
	tapeName     string
	systemPrompt string
	memoryLimit  int
}

type AgentOption func(*Agent)

/*
NewAgent wires an Agent from options. A store and a provider are
required; everything else has workable defaults.
*/
func NewAgent(options ...AgentOption) (*Agent, error) {
	agent := &Agent{
		tapeName:     DefaultTapeName,
		systemPrompt: DefaultSystemPrompt,
		memoryLimit:  defaultMemoryLimit,
	}

	for _, option := range options {
		option(agent)
	}

	if agent.store == nil {
		return nil, errors.NewMissingStoreError()
	}

	if agent.prvdr == nil {
		return nil, errors.NewMissingProviderError()
	}

	return agent, nil
}

// TapeName is the tape this agent reads and writes.
func (agent *Agent) TapeName() string {
	return agent.tapeName
}

/*
Snapshot reads the tape and assembles the requested view. Any view other
than full guarantees at least one anchor exists, creating the bootstrap
anchor on a bare tape so latest always has a slicing point.
*/
func (agent *Agent) Snapshot(ctx context.Context, mode tape.ViewMode, anchorName string) (tape.Snapshot, error) {
	entries, err := agent.resolveView(ctx, mode != tape.ViewFull)

	if err != nil {
		return tape.Snapshot{}, err
	}

	return tape.BuildSnapshot(agent.tapeName, entries, mode, anchorName), nil
}

/*
Reply runs one turn: resolve the view, record which context slice feeds
the model, append the user message, call the provider on the replayed
context, and append the assistant reply plus its usage. Provider
failures come back as an "Error: ..." reply with an error entry on the
tape, so the conversation survives a flaky upstream.
*/
func (agent *Agent) Reply(ctx context.Context, text string, mode tape.ViewMode, anchorName string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.ErrInvalidParams.WithMessagef("message cannot be empty")
	}

	entries, err := agent.resolveView(ctx, mode != tape.ViewFull)

	if err != nil {
		return "", err
	}

	snapshot := tape.BuildSnapshot(agent.tapeName, entries, mode, anchorName)
	agent.recordContextSelection(ctx, snapshot)

	if err := agent.append(ctx, tape.KindMessage, map[string]any{
		"role":    "user",
		"content": text,
	}); err != nil {
		return "", err
	}

	response, genErr := agent.prvdr.Generate(ctx, &provider.ProviderParams{
		Messages: agent.buildMessages(text, snapshot.ContextEntries),
	})

	if genErr != nil {
		log.Error("provider call failed", "tape", agent.tapeName, "error", genErr)
		agent.recordFailure(ctx, genErr)
		return "Error: " + errorMessage(genErr), nil
	}

	if response == nil {
		return "", nil
	}

	if response.Text != "" {
		if err := agent.append(ctx, tape.KindMessage, map[string]any{
			"role":    "assistant",
			"content": response.Text,
		}); err != nil {
			return "", err
		}
	}

	agent.recordRun(ctx, response.Usage)
	return response.Text, nil
}

/*
Handoff drops a named anchor carrying whatever state the caller
recorded. Blank phase, summary and facts stay off the anchor entirely,
so old anchors never accumulate empty keys.
*/
func (agent *Agent) Handoff(ctx context.Context, name, phase, summary string, facts []string) (tape.AnchorState, error) {
	normalized, err := tape.NormalizeAnchorName(name)

	if err != nil {
		return tape.AnchorState{}, errors.ErrInvalidAnchor.WithMessagef("%v", err)
	}

	state := map[string]any{}

	if phase = strings.TrimSpace(phase); phase != "" {
		state["phase"] = phase
	}

	if summary = strings.TrimSpace(summary); summary != "" {
		state["summary"] = summary
	}

	var cleaned []string

	for _, fact := range facts {
		if fact = strings.TrimSpace(fact); fact != "" {
			cleaned = append(cleaned, fact)
		}
	}

	if len(cleaned) > 0 {
		state["facts"] = cleaned
	}

	entry, err := tape.NewEntry(tape.KindAnchor, map[string]any{
		"name":  normalized,
		"state": state,
	}, nil)

	if err != nil {
		return tape.AnchorState{}, err
	}

	appended, appendErr := agent.store.Append(ctx, agent.tapeName, entry)

	if appendErr != nil {
		return tape.AnchorState{}, appendErr
	}

	anchors := tape.ExtractAnchors([]tape.Entry{appended})

	if len(anchors) == 0 {
		return tape.AnchorState{}, errors.ErrInvalidAnchor.WithMessagef(
			"anchor %s did not round-trip", normalized,
		)
	}

	return anchors[0], nil
}

/*
Reset archives the current tape under a stamped name, clears the live
name, and drops a fresh bootstrap anchor so the next turn starts from a
clean slicing point. Returns the archived name, "" when the tape was
already empty.
*/
func (agent *Agent) Reset(ctx context.Context) (string, error) {
	archived, err := agent.store.Archive(ctx, agent.tapeName)

	if err != nil {
		return "", err
	}

	if err := agent.store.Reset(ctx, agent.tapeName); err != nil {
		return "", err
	}

	if err := agent.bootstrap(ctx); err != nil {
		return "", err
	}

	return archived, nil
}

// resolveView reads the tape, bootstrapping an anchor first when the
// view needs one and the tape has none.
func (agent *Agent) resolveView(ctx context.Context, ensureAnchor bool) ([]tape.Entry, error) {
	entries, err := agent.store.Read(ctx, agent.tapeName)

	if err != nil {
		return nil, err
	}

	if !ensureAnchor || len(tape.ExtractAnchors(entries)) > 0 {
		return entries, nil
	}

	if err := agent.bootstrap(ctx); err != nil {
		return nil, err
	}

	return agent.store.Read(ctx, agent.tapeName)
}

func (agent *Agent) bootstrap(ctx context.Context) error {
	entry, err := tape.NewEntry(tape.KindAnchor, map[string]any{
		"name":  tape.BootstrapAnchorName,
		"state": tape.BootstrapAnchorState(),
	}, nil)

	if err != nil {
		return err
	}

	if _, err := agent.store.Append(ctx, agent.tapeName, entry); err != nil {
		return err
	}

	return nil
}

func (agent *Agent) append(ctx context.Context, kind string, payload map[string]any) error {
	entry, err := tape.NewEntry(kind, payload, nil)

	if err != nil {
		return err
	}

	if _, err := agent.store.Append(ctx, agent.tapeName, entry); err != nil {
		return err
	}

	return nil
}

// recordContextSelection is best-effort: a tape that cannot take the
// event can still take the turn.
func (agent *Agent) recordContextSelection(ctx context.Context, snapshot tape.Snapshot) {
	data := map[string]any{
		"view_mode":       string(snapshot.ViewMode),
		"context_entries": snapshot.ContextEntryCount(),
	}

	if snapshot.AnchorName != "" {
		data["anchor"] = snapshot.AnchorName
	}

	if err := agent.append(ctx, tape.KindEvent, map[string]any{
		"name": ContextSelectionEvent,
		"data": data,
	}); err != nil {
		log.Error("failed to record context selection", "tape", agent.tapeName, "error", err)
	}
}

func (agent *Agent) recordRun(ctx context.Context, usage *provider.Usage) {
	if usage == nil {
		return
	}

	if err := agent.append(ctx, tape.KindEvent, map[string]any{
		"name": RunEvent,
		"data": map[string]any{
			"status": "ok",
			"usage": map[string]any{
				"input_tokens":  usage.InputTokens,
				"output_tokens": usage.OutputTokens,
				"total_tokens":  usage.InputTokens + usage.OutputTokens,
			},
		},
	}); err != nil {
		log.Error("failed to record run usage", "tape", agent.tapeName, "error", err)
	}
}

func (agent *Agent) recordFailure(ctx context.Context, genErr error) {
	if err := agent.append(ctx, tape.KindError, map[string]any{
		"kind":    "provider",
		"message": errorMessage(genErr),
	}); err != nil {
		log.Error("failed to record provider error", "tape", agent.tapeName, "error", err)
	}
}

// buildMessages assembles the provider call: system prompt, recalled
// memories, the replayed context, then the new user message.
func (agent *Agent) buildMessages(text string, context []tape.Entry) []provider.Message {
	messages := []provider.Message{{Role: "system", Content: agent.systemPrompt}}

	if recalled := agent.memoryContext(text); recalled != "" {
		messages = append(messages, provider.Message{Role: "system", Content: recalled})
	}

	messages = append(messages, ReplayMessages(context)...)
	return append(messages, provider.Message{Role: "user", Content: text})
}

func (agent *Agent) memoryContext(query string) string {
	if agent.memories == nil {
		return ""
	}

	hits := agent.memories.Search(query, agent.memoryLimit)

	if len(hits) == 0 {
		return ""
	}

	var lines []string

	for _, hit := range hits {
		if text := strings.TrimSpace(hit.Content); text != "" {
			lines = append(lines, "- "+text)
		}
	}

	if len(lines) == 0 {
		return ""
	}

	return "Relevant memories:\n" + strings.Join(lines, "\n")
}

// errorMessage prefers the bare RPC message over the coded form.
func errorMessage(err error) string {
	if rpcErr, ok := err.(*errors.RpcError); ok {
		return rpcErr.Message
	}

	return err.Error()
}

func WithStore(store tape.Store) AgentOption {
	return func(agent *Agent) {
		agent.store = store
	}
}

func WithProvider(prvdr provider.Interface) AgentOption {
	return func(agent *Agent) {
		agent.prvdr = prvdr
	}
}

func WithMemory(store *memory.Store) AgentOption {
	return func(agent *Agent) {
		agent.memories = store
	}
}

func WithTapeName(name string) AgentOption {
	return func(agent *Agent) {
		if name = strings.TrimSpace(name); name != "" {
			agent.tapeName = name
		}
	}
}

func WithSystemPrompt(prompt string) AgentOption {
	return func(agent *Agent) {
		if prompt = strings.TrimSpace(prompt); prompt != "" {
			agent.systemPrompt = prompt
		}
	}
}

func WithMemoryLimit(limit int) AgentOption {
	return func(agent *Agent) {
		if limit > 0 {
			agent.memoryLimit = limit
		}
	}
}
