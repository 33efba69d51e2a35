package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/theapemachine/bub-go/pkg/agent"
	"github.com/theapemachine/bub-go/pkg/errors"
	"github.com/theapemachine/bub-go/pkg/provider"
	"github.com/theapemachine/bub-go/pkg/service/sse"
	"github.com/theapemachine/bub-go/pkg/tape"
	"github.com/tidwall/gjson"
	"github.com/tj/assert"
)

// svcStore mirrors the in-memory fake used by the agent tests, duplicated
// to avoid an import cycle between test packages.
type svcStore struct {
	tapes    map[string][]tape.Entry
	archived []string
}

func newSvcStore() *svcStore {
	return &svcStore{tapes: map[string][]tape.Entry{}}
}

func (store *svcStore) seed(name string, entries ...tape.Entry) {
	store.tapes[name] = entries
}

func (store *svcStore) Append(_ context.Context, name string, entry tape.Entry) (tape.Entry, error) {
	entry.ID = int64(len(store.tapes[name]) + 1)

	if entry.Meta == nil {
		entry.Meta = map[string]any{}
	}

	store.tapes[name] = append(store.tapes[name], entry)
	return entry, nil
}

func (store *svcStore) Read(_ context.Context, name string) ([]tape.Entry, error) {
	return append([]tape.Entry(nil), store.tapes[name]...), nil
}

func (store *svcStore) List(_ context.Context) ([]string, error) {
	var names []string

	for name := range store.tapes {
		if tape.IsLive(name) {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

func (store *svcStore) Fork(_ context.Context, source string) (string, error) {
	fork := tape.ForkName(source)
	store.tapes[fork] = append([]tape.Entry(nil), store.tapes[source]...)
	return fork, nil
}

func (store *svcStore) Merge(_ context.Context, source, target string) error {
	for _, entry := range store.tapes[source] {
		entry.ID = int64(len(store.tapes[target]) + 1)
		store.tapes[target] = append(store.tapes[target], entry)
	}

	delete(store.tapes, source)
	return nil
}

func (store *svcStore) Archive(_ context.Context, name string) (string, error) {
	entries := store.tapes[name]

	if len(entries) == 0 {
		return "", nil
	}

	archivedName := tape.ArchiveName(name, time.Now())
	store.tapes[archivedName] = entries
	delete(store.tapes, name)
	store.archived = append(store.archived, archivedName)
	return archivedName, nil
}

func (store *svcStore) Reset(_ context.Context, name string) error {
	delete(store.tapes, name)
	return nil
}

type svcProvider struct {
	reply    string
	usage    *provider.Usage
	err      error
	requests []*provider.ProviderParams
}

func (prvdr *svcProvider) Name() string {
	return "scripted"
}

func (prvdr *svcProvider) Generate(_ context.Context, params *provider.ProviderParams) (*provider.Response, error) {
	prvdr.requests = append(prvdr.requests, params)

	if prvdr.err != nil {
		return nil, prvdr.err
	}

	return &provider.Response{Text: prvdr.reply, Usage: prvdr.usage}, nil
}

func seedEntry(id int64, kind string, payload map[string]any) tape.Entry {
	return tape.Entry{ID: id, Kind: kind, Payload: payload, Meta: map[string]any{}}
}

func newTestServer(t *testing.T, store tape.Store, prvdr provider.Interface) *TapeServer {
	t.Helper()

	tapeAgent, err := agent.NewAgent(agent.WithStore(store), agent.WithProvider(prvdr))
	assert.NoError(t, err)

	return NewTapeServer(tapeAgent, WithStore(store), WithBroker(sse.NewTestBroker()))
}

func rpcCall(t *testing.T, srv *TapeServer, method, params string) []byte {
	t.Helper()

	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":%s}`, method, params)
	out := srv.Handle(context.Background(), []byte(body))
	assert.NotNil(t, out)
	return out
}

func TestChatSendRecordsTurn(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindAnchor, map[string]any{"name": "handoff:start", "state": map[string]any{"phase": "Start"}}),
		seedEntry(2, tape.KindMessage, map[string]any{"role": "assistant", "content": "seed"}),
	)

	prvdr := &svcProvider{reply: "ok", usage: &provider.Usage{InputTokens: 42, OutputTokens: 3}}
	srv := newTestServer(t, store, prvdr)

	out := rpcCall(t, srv, "chat.send", `{"message":"hello","view_mode":"latest"}`)

	assert.Equal(t, "ok", gjson.GetBytes(out, "result.reply").String())
	assert.Equal(t, "", gjson.GetBytes(out, "result.status").String())

	// context event + user + assistant + run event land on the tape.
	assert.Equal(t, int64(6), gjson.GetBytes(out, "result.view.entries").Int())

	messages := gjson.GetBytes(out, "result.view.messages").Array()
	assert.Len(t, messages, 3)
	assert.Equal(t, "ok", messages[2].Get("content").String())

	// estimate follows the recorded usage.
	assert.Equal(t, int64(42), gjson.GetBytes(out, "result.view.estimated_tokens").Int())
	assert.Equal(t, "OK", gjson.GetBytes(out, "result.view.health").String())
}

func TestChatSendBlankMessageSkipsProvider(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindAnchor, map[string]any{"name": "handoff:start", "state": map[string]any{"phase": "Start"}}),
		seedEntry(2, tape.KindMessage, map[string]any{"role": "user", "content": "hi"}),
	)

	prvdr := &svcProvider{reply: "ok"}
	srv := newTestServer(t, store, prvdr)

	out := rpcCall(t, srv, "chat.send", `{"message":"   ","view_mode":"latest"}`)

	assert.Equal(t, "", gjson.GetBytes(out, "result.reply").String())
	assert.Equal(t, "", gjson.GetBytes(out, "result.status").String())
	assert.Empty(t, prvdr.requests)
	assert.Equal(t, int64(2), gjson.GetBytes(out, "result.view.entries").Int())
}

func TestChatSendProviderErrorSetsStatus(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindAnchor, map[string]any{"name": "handoff:start", "state": map[string]any{"phase": "Start"}}),
	)

	prvdr := &svcProvider{err: errors.ErrProviderNotConfigured.WithMessagef("simulated")}
	srv := newTestServer(t, store, prvdr)

	out := rpcCall(t, srv, "chat.send", `{"message":"boom","view_mode":"latest"}`)

	assert.Equal(t, "Error: simulated", gjson.GetBytes(out, "result.reply").String())
	assert.Equal(t, "Error: simulated", gjson.GetBytes(out, "result.status").String())
}

func TestTapeSnapshotRendersView(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindMessage, map[string]any{"role": "user", "content": "a"}),
		seedEntry(2, tape.KindAnchor, map[string]any{"name": "handoff:phase-1", "state": map[string]any{"phase": "Phase 1"}}),
		seedEntry(3, tape.KindMessage, map[string]any{"role": "assistant", "content": "b"}),
		seedEntry(4, tape.KindEvent, map[string]any{"name": "run", "data": map[string]any{"status": "ok"}}),
	)

	srv := newTestServer(t, store, &svcProvider{})

	out := rpcCall(t, srv, "tape.snapshot", `{"view_mode":"latest"}`)

	assert.Equal(t, "latest", gjson.GetBytes(out, "result.view_mode").String())
	assert.Equal(t, int64(4), gjson.GetBytes(out, "result.entries").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(out, "result.context_entries").Int())

	// events stay hidden unless requested.
	assert.Len(t, gjson.GetBytes(out, "result.log").Array(), 3)

	withEvents := rpcCall(t, srv, "tape.snapshot", `{"view_mode":"latest","show_events":true}`)
	assert.Len(t, gjson.GetBytes(withEvents, "result.log").Array(), 4)

	rows := gjson.GetBytes(out, "result.anchor_rows").Array()
	assert.Len(t, rows, 1)
	assert.Equal(t, "handoff:phase-1", rows[0].Array()[2].String())
}

func TestTapeViewFromMissingAnchorFallsBackToNewest(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindAnchor, map[string]any{"name": "handoff:one", "state": map[string]any{"phase": "One"}}),
		seedEntry(2, tape.KindMessage, map[string]any{"role": "user", "content": "a"}),
		seedEntry(3, tape.KindAnchor, map[string]any{"name": "handoff:two", "state": map[string]any{"phase": "Two"}}),
		seedEntry(4, tape.KindMessage, map[string]any{"role": "assistant", "content": "b"}),
	)

	srv := newTestServer(t, store, &svcProvider{})

	out := rpcCall(t, srv, "tape.view", `{"view_mode":"from-anchor","anchor":"handoff:missing"}`)

	assert.Equal(t, "handoff:two", gjson.GetBytes(out, "result.anchor").String())

	choices := gjson.GetBytes(out, "result.anchor_choices").Array()
	assert.Len(t, choices, 2)
	assert.Equal(t, "handoff:one", choices[0].String())
}

func TestTapeViewClearsAnchorOutsideFromAnchorMode(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindAnchor, map[string]any{"name": "handoff:one", "state": map[string]any{"phase": "One"}}),
	)

	srv := newTestServer(t, store, &svcProvider{})

	out := rpcCall(t, srv, "tape.view", `{"view_mode":"full","anchor":"handoff:one"}`)

	assert.Equal(t, "full", gjson.GetBytes(out, "result.view_mode").String())
	assert.Equal(t, "", gjson.GetBytes(out, "result.anchor").String())
}

func TestTapeHandoffSplitsFactsText(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindMessage, map[string]any{"role": "user", "content": "a"}),
	)

	srv := newTestServer(t, store, &svcProvider{})

	out := rpcCall(t, srv, "tape.handoff",
		`{"name":"phase-1","phase":"Phase 1","summary":"Checkpoint","facts_text":"fact-a\nfact-b\n"}`)

	assert.Equal(t, "Handoff created: handoff:phase-1", gjson.GetBytes(out, "result.status").String())
	assert.Equal(t, "handoff:phase-1", gjson.GetBytes(out, "result.anchor.name").String())

	facts := gjson.GetBytes(out, "result.anchor.facts").Array()
	assert.Len(t, facts, 2)
	assert.Equal(t, "fact-a", facts[0].String())

	// the view returned after a handoff always switches back to latest.
	assert.Equal(t, "latest", gjson.GetBytes(out, "result.view.view_mode").String())
}

func TestTapeHandoffRequiresName(t *testing.T) {
	srv := newTestServer(t, newSvcStore(), &svcProvider{})

	out := rpcCall(t, srv, "tape.handoff", `{"name":"   "}`)

	assert.True(t, gjson.GetBytes(out, "error").Exists())
	assert.Equal(t, int64(errors.ErrInvalidAnchor.Code), gjson.GetBytes(out, "error.code").Int())
}

func TestTapeResetArchivesAndRebootstraps(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindMessage, map[string]any{"role": "user", "content": "a"}),
		seedEntry(2, tape.KindMessage, map[string]any{"role": "assistant", "content": "b"}),
	)

	srv := newTestServer(t, store, &svcProvider{})

	out := rpcCall(t, srv, "tape.reset", `{}`)

	archived := gjson.GetBytes(out, "result.archived").String()
	assert.True(t, tape.IsArchived(archived))

	// fresh tape carries only the bootstrap anchor.
	assert.Equal(t, int64(1), gjson.GetBytes(out, "result.view.entries").Int())
	assert.Equal(t, tape.BootstrapAnchorName, gjson.GetBytes(out, "result.view.anchor_choices.0").String())
}

func TestTapeInfoReportsHealth(t *testing.T) {
	store := newSvcStore()
	store.seed(agent.DefaultTapeName,
		seedEntry(1, tape.KindAnchor, map[string]any{"name": "handoff:one", "state": map[string]any{"phase": "One"}}),
		seedEntry(2, tape.KindMessage, map[string]any{"role": "user", "content": "hello there"}),
	)

	srv := newTestServer(t, store, &svcProvider{})

	out := rpcCall(t, srv, "tape.info", `{}`)

	assert.Equal(t, agent.DefaultTapeName, gjson.GetBytes(out, "result.tape").String())
	assert.Equal(t, int64(2), gjson.GetBytes(out, "result.entries").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(out, "result.anchors").Int())
	assert.Equal(t, "OK", gjson.GetBytes(out, "result.health").String())
}

func TestHandleRejectsUnknownMethod(t *testing.T) {
	srv := newTestServer(t, newSvcStore(), &svcProvider{})

	out := rpcCall(t, srv, "tape.unknown", `{}`)

	assert.Equal(t, int64(errors.ErrMethodNotFound.Code), gjson.GetBytes(out, "error.code").Int())
}

func TestListenAddrHonorsEnvOverrides(t *testing.T) {
	t.Setenv("GRADIO_SERVER_NAME", "")
	t.Setenv("GRADIO_SERVER_PORT", "")
	t.Setenv("BUB_SERVER_PORT", "")
	assert.Equal(t, "0.0.0.0:7860", ListenAddr())

	t.Setenv("GRADIO_SERVER_PORT", "8000")
	assert.Equal(t, "0.0.0.0:8000", ListenAddr())

	t.Setenv("BUB_SERVER_PORT", "9000")
	t.Setenv("GRADIO_SERVER_NAME", "127.0.0.1")
	assert.Equal(t, "127.0.0.1:9000", ListenAddr())
}
