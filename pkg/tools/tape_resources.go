package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/bub-go/pkg/tape"
)

const (
	liveTapesURI   = "tape://live"
	currentTapeURI = "tape://current"
)

/*
TapeResources exposes tapes to MCP clients as readable resources, plus a
prompt that walks a model through producing a handoff.
*/
type TapeResources struct {
	store    tape.Store
	tapeName string
}

func NewTapeResources(store tape.Store, tapeName string) *TapeResources {
	return &TapeResources{store: store, tapeName: tapeName}
}

/*
RegisterTapeResources attaches the tape resources and the handoff prompt
to an MCP server.
*/
func (tr *TapeResources) RegisterTapeResources(srv *server.MCPServer) {
	srv.AddResource(mcp.NewResource(
		liveTapesURI,
		"Live tapes",
		mcp.WithResourceDescription("Names of the live conversation tapes, as a JSON array."),
		mcp.WithMIMEType("application/json"),
	), tr.handleLiveTapes)

	srv.AddResource(mcp.NewResource(
		currentTapeURI,
		"Current tape",
		mcp.WithResourceDescription("Every entry of the tape this server fronts, as JSON."),
		mcp.WithMIMEType("application/json"),
	), tr.handleCurrentTape)

	srv.AddPrompt(mcp.NewPrompt(
		"handoff",
		mcp.WithPromptDescription("Draft a handoff anchor for the current conversation."),
	), tr.handleHandoffPrompt)
}

func (tr *TapeResources) handleLiveTapes(
	ctx context.Context, req mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	names, err := tr.store.List(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list tapes: %v", err)
	}

	data, err := json.Marshal(names)

	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      liveTapesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (tr *TapeResources) handleCurrentTape(
	ctx context.Context, req mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	entries, err := tr.store.Read(ctx, tr.tapeName)

	if err != nil {
		return nil, fmt.Errorf("failed to read tape %s: %v", tr.tapeName, err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")

	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      currentTapeURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

/*
handleHandoffPrompt builds a prompt that asks the model to review the
conversation and record a handoff through the tape_handoff tool. The
current tape stats are inlined so the model knows how much it is
summarizing.
*/
func (tr *TapeResources) handleHandoffPrompt(
	ctx context.Context, req mcp.GetPromptRequest,
) (*mcp.GetPromptResult, error) {
	entries, err := tr.store.Read(ctx, tr.tapeName)

	if err != nil {
		return nil, fmt.Errorf("failed to read tape %s: %v", tr.tapeName, err)
	}

	anchors := tape.ExtractAnchors(entries)

	text := fmt.Sprintf(
		"The conversation tape %q currently holds %d entries and %d handoff anchors. "+
			"Review the conversation since the last anchor and produce a handoff: "+
			"a short kebab-case name, the phase the work is in, a one-paragraph summary, "+
			"and three to five durable facts worth carrying forward. "+
			"Then record it by calling the tape_handoff tool with those values.",
		tr.tapeName, len(entries), len(anchors),
	)

	return mcp.NewGetPromptResult(
		"Draft a handoff for the current conversation.",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}
