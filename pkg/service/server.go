package service

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/spf13/viper"
	"github.com/theapemachine/bub-go/pkg/agent"
	"github.com/theapemachine/bub-go/pkg/errors"
	"github.com/theapemachine/bub-go/pkg/jsonrpc"
	"github.com/theapemachine/bub-go/pkg/render"
	"github.com/theapemachine/bub-go/pkg/service/sse"
	"github.com/theapemachine/bub-go/pkg/tape"
)

/*
TapeServer exposes a tape agent over HTTP: JSON-RPC methods on /rpc and a
live event stream on /events. It is safe for concurrent use because the
RPC server and the SSE broker are.
*/
type TapeServer struct {
	app    *fiber.App
	agent  *agent.Agent
	store  tape.Store
	rpc    *jsonrpc.Server
	broker *sse.Broker
	addr   string
}

type ServerOption func(*TapeServer)

/*
NewTapeServer constructs a server around the supplied agent and registers
the RPC methods.
*/
func NewTapeServer(tapeAgent *agent.Agent, options ...ServerOption) *TapeServer {
	srv := &TapeServer{
		app: fiber.New(fiber.Config{
			AppName:           "bub-tape-server",
			ServerHeader:      "Bub-Tape-Server",
			StreamRequestBody: true,
		}),
		agent:  tapeAgent,
		rpc:    jsonrpc.NewServer(),
		broker: sse.NewBroker(),
		addr:   ListenAddr(),
	}

	for _, option := range options {
		option(srv)
	}

	srv.registerMethods()
	return srv
}

/*
WithStore wires the backing store so the root route can report readiness.
*/
func WithStore(store tape.Store) ServerOption {
	return func(srv *TapeServer) {
		srv.store = store
	}
}

func WithAddr(addr string) ServerOption {
	return func(srv *TapeServer) {
		if addr != "" {
			srv.addr = addr
		}
	}
}

func WithBroker(broker *sse.Broker) ServerOption {
	return func(srv *TapeServer) {
		srv.broker = broker
	}
}

/*
ListenAddr resolves the listen address from the environment, then the
config file, then the stock default. The env names mirror the ones the
hosted UI honors, so existing deployments keep working.
*/
func ListenAddr() string {
	host := os.Getenv("GRADIO_SERVER_NAME")

	if host == "" {
		host = viper.GetString("server.host")
	}

	if host == "" {
		host = "0.0.0.0"
	}

	port := os.Getenv("BUB_SERVER_PORT")

	if port == "" {
		port = os.Getenv("GRADIO_SERVER_PORT")
	}

	if port == "" {
		port = viper.GetString("server.port")
	}

	if port == "" {
		port = "7860"
	}

	return host + ":" + port
}

func (srv *TapeServer) Start() error {
	srv.app.Use(logger.New(logger.Config{
		// Skip logging for the /events endpoint to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/events"
		},
	}), healthcheck.NewHealthChecker())
	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/events", srv.handleEvents)
	srv.app.Post("/rpc", srv.handleRPC)
	return srv.app.Listen(srv.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

/*
Handle dispatches a raw JSON-RPC body. Exposed so tests and in-process
callers can exercise the methods without an HTTP round trip.
*/
func (srv *TapeServer) Handle(ctx context.Context, body []byte) []byte {
	return srv.rpc.HandleBody(ctx, body)
}

/*
handleRoot doubles as the readiness probe: when a store is wired it must
answer before the server reports OK.
*/
func (srv *TapeServer) handleRoot(ctx fiber.Ctx) error {
	if srv.store != nil {
		if _, err := srv.store.List(ctx.Context()); err != nil {
			log.Error("store unreachable", "error", err)
			return ctx.Status(fiber.StatusServiceUnavailable).SendString("store unavailable")
		}
	}

	return ctx.SendString("OK")
}

func (srv *TapeServer) handleEvents(ctx fiber.Ctx) error {
	handler := func(w http.ResponseWriter, r *http.Request) {
		// Ensure standard SSE headers are set for clients
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		srv.broker.Subscribe(w, r)
	}
	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}

func (srv *TapeServer) handleRPC(ctx fiber.Ctx) error {
	ctx.Set("Content-Type", "application/json")

	out := srv.rpc.HandleBody(ctx.Context(), ctx.Body())

	// Notifications produce no response body.
	if out == nil {
		return ctx.Status(fiber.StatusNoContent).Send(nil)
	}

	return ctx.Send(out)
}

func (srv *TapeServer) registerMethods() {
	srv.rpc.Register("chat.send", srv.handleChatSend)
	srv.rpc.Register("tape.snapshot", srv.handleTapeSnapshot)
	srv.rpc.Register("tape.view", srv.handleTapeView)
	srv.rpc.Register("tape.handoff", srv.handleTapeHandoff)
	srv.rpc.Register("tape.reset", srv.handleTapeReset)
	srv.rpc.Register("tape.info", srv.handleTapeInfo)
}

type chatSendParams struct {
	Message    string `json:"message"`
	ViewMode   string `json:"view_mode"`
	Anchor     string `json:"anchor"`
	ShowEvents bool   `json:"show_events"`
}

type viewParams struct {
	ViewMode   string `json:"view_mode"`
	Anchor     string `json:"anchor"`
	ShowEvents bool   `json:"show_events"`
}

type handoffParams struct {
	Name       string   `json:"name"`
	Phase      string   `json:"phase"`
	Summary    string   `json:"summary"`
	Facts      []string `json:"facts"`
	FactsText  string   `json:"facts_text"`
	ShowEvents bool     `json:"show_events"`
}

/*
TapeView is the rendered form of a snapshot: everything a client needs to
draw the transcript, the anchors table, and the context meters.
*/
type TapeView struct {
	Tape            string             `json:"tape"`
	ViewMode        string             `json:"view_mode"`
	Anchor          string             `json:"anchor,omitempty"`
	AnchorChoices   []string           `json:"anchor_choices"`
	Messages        []tape.ChatMessage `json:"messages"`
	Log             []render.Row       `json:"log"`
	AnchorRows      [][]string         `json:"anchor_rows"`
	Footer          string             `json:"footer"`
	Context         string             `json:"context"`
	Health          string             `json:"health"`
	Progress        int                `json:"progress"`
	Entries         int                `json:"entries"`
	ContextEntries  int                `json:"context_entries"`
	EstimatedTokens int                `json:"estimated_tokens"`
}

type ChatResult struct {
	Reply  string   `json:"reply"`
	Status string   `json:"status"`
	View   TapeView `json:"view"`
}

type HandoffResult struct {
	Anchor tape.AnchorState `json:"anchor"`
	Status string           `json:"status"`
	View   TapeView         `json:"view"`
}

type ResetResult struct {
	Archived string   `json:"archived"`
	View     TapeView `json:"view"`
}

type TapeInfo struct {
	Tape            string `json:"tape"`
	Entries         int    `json:"entries"`
	Anchors         int    `json:"anchors"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Health          string `json:"health"`
}

func (srv *TapeServer) handleChatSend(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError) {
	var p chatSendParams

	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	mode := tape.ParseViewMode(p.ViewMode)
	text := strings.TrimSpace(p.Message)

	// A blank message never reaches the model; clients get their current
	// view back unchanged.
	if text == "" {
		view, rpcErr := srv.buildView(ctx, mode, p.Anchor, p.ShowEvents)

		if rpcErr != nil {
			return nil, rpcErr
		}

		return ChatResult{View: view}, nil
	}

	reply, err := srv.agent.Reply(ctx, text, mode, p.Anchor)

	if err != nil {
		return nil, asRPCError(err)
	}

	status := ""

	if strings.HasPrefix(reply, "Error:") {
		status = reply
	}

	view, rpcErr := srv.buildView(ctx, mode, p.Anchor, p.ShowEvents)

	if rpcErr != nil {
		return nil, rpcErr
	}

	srv.publish("message", view)

	return ChatResult{Reply: reply, Status: status, View: view}, nil
}

func (srv *TapeServer) handleTapeSnapshot(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError) {
	var p viewParams

	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	view, rpcErr := srv.buildView(ctx, tape.ParseViewMode(p.ViewMode), p.Anchor, p.ShowEvents)

	if rpcErr != nil {
		return nil, rpcErr
	}

	return view, nil
}

func (srv *TapeServer) handleTapeView(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError) {
	var p viewParams

	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	mode := tape.ParseViewMode(p.ViewMode)

	// Anchors only apply to from-anchor views; switching modes clears the
	// selection.
	if mode != tape.ViewFromAnchor {
		p.Anchor = ""
	}

	view, rpcErr := srv.buildView(ctx, mode, p.Anchor, p.ShowEvents)

	if rpcErr != nil {
		return nil, rpcErr
	}

	return view, nil
}

func (srv *TapeServer) handleTapeHandoff(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError) {
	var p handoffParams

	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	facts := p.Facts

	if len(facts) == 0 && strings.TrimSpace(p.FactsText) != "" {
		for _, line := range strings.Split(p.FactsText, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				facts = append(facts, line)
			}
		}
	}

	state, err := srv.agent.Handoff(ctx, p.Name, p.Phase, p.Summary, facts)

	if err != nil {
		return nil, asRPCError(err)
	}

	view, rpcErr := srv.buildView(ctx, tape.ViewLatest, "", p.ShowEvents)

	if rpcErr != nil {
		return nil, rpcErr
	}

	srv.publish("handoff", view)

	return HandoffResult{
		Anchor: state,
		Status: "Handoff created: " + state.Name,
		View:   view,
	}, nil
}

func (srv *TapeServer) handleTapeReset(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError) {
	archived, err := srv.agent.Reset(ctx)

	if err != nil {
		return nil, asRPCError(err)
	}

	view, rpcErr := srv.buildView(ctx, tape.ViewLatest, "", false)

	if rpcErr != nil {
		return nil, rpcErr
	}

	srv.publish("reset", view)

	return ResetResult{Archived: archived, View: view}, nil
}

func (srv *TapeServer) handleTapeInfo(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError) {
	snapshot, err := srv.agent.Snapshot(ctx, tape.ViewLatest, "")

	if err != nil {
		return nil, asRPCError(err)
	}

	return TapeInfo{
		Tape:            snapshot.TapeName,
		Entries:         snapshot.TotalEntries(),
		Anchors:         len(snapshot.Anchors),
		EstimatedTokens: snapshot.EstimatedTokens,
		Health:          render.TokenHealth(snapshot.EstimatedTokens),
	}, nil
}

/*
buildView snapshots the tape and renders it. A from-anchor view whose
anchor no longer resolves falls back to the newest recorded anchor, the
same re-snapshot the UI performs.
*/
func (srv *TapeServer) buildView(
	ctx context.Context, mode tape.ViewMode, anchorName string, showEvents bool,
) (TapeView, *errors.RpcError) {
	snapshot, err := srv.agent.Snapshot(ctx, mode, anchorName)

	if err != nil {
		return TapeView{}, asRPCError(err)
	}

	choices := make([]string, 0, len(snapshot.Anchors))

	for _, anchor := range snapshot.Anchors {
		choices = append(choices, anchor.Name)
	}

	resolved := ""

	if mode == tape.ViewFromAnchor {
		resolved = anchorName

		if !containsName(choices, anchorName) {
			resolved = ""

			if len(choices) > 0 {
				resolved = choices[len(choices)-1]
			}
		}

		if resolved != anchorName {
			if snapshot, err = srv.agent.Snapshot(ctx, mode, resolved); err != nil {
				return TapeView{}, asRPCError(err)
			}
		}
	}

	return TapeView{
		Tape:            snapshot.TapeName,
		ViewMode:        string(snapshot.ViewMode),
		Anchor:          resolved,
		AnchorChoices:   choices,
		Messages:        snapshot.Messages(),
		Log:             render.TranscriptRows(snapshot, showEvents),
		AnchorRows:      render.AnchorRows(snapshot),
		Footer:          render.TapeFooter(snapshot),
		Context:         render.ContextIndicator(snapshot),
		Health:          render.TokenHealth(snapshot.EstimatedTokens),
		Progress:        render.Progress(snapshot.EstimatedTokens),
		Entries:         snapshot.TotalEntries(),
		ContextEntries:  snapshot.ContextEntryCount(),
		EstimatedTokens: snapshot.EstimatedTokens,
	}, nil
}

func (srv *TapeServer) publish(eventType string, view TapeView) {
	event := sse.TapeEvent{
		Type:            eventType,
		Tape:            view.Tape,
		Entries:         view.Entries,
		EstimatedTokens: view.EstimatedTokens,
		At:              time.Now().UTC(),
	}

	if err := srv.broker.Broadcast(event); err != nil {
		log.Error("failed to broadcast tape event", "error", err)
	}
}

func decodeParams(params json.RawMessage, out any) *errors.RpcError {
	if len(params) == 0 {
		return nil
	}

	if err := json.Unmarshal(params, out); err != nil {
		log.Error("failed to unmarshal params", "error", err, "params", string(params))
		return errors.ErrInvalidParams.WithMessagef("failed to unmarshal params: %v", err)
	}

	return nil
}

func asRPCError(err error) *errors.RpcError {
	if rpcErr, ok := err.(*errors.RpcError); ok && rpcErr != nil {
		return rpcErr
	}

	return errors.ErrInternal.WithMessagef("%v", err)
}

func containsName(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}

	return false
}
