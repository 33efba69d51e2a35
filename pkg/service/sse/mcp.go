package sse

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

/*
MCPBroker exposes an MCP server over SSE transport for clients that cannot
attach over stdio.
*/
type MCPBroker struct {
	srv *server.MCPServer
	sse *server.SSEServer
}

func NewMCPBroker(srv *server.MCPServer) *MCPBroker {
	return &MCPBroker{
		srv: srv,
		sse: server.NewSSEServer(srv),
	}
}

func (b *MCPBroker) Start(addr string) error {
	return b.sse.Start(addr)
}

func (b *MCPBroker) Server() http.Handler {
	return b.sse
}
