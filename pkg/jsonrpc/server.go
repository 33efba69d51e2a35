package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/theapemachine/bub-go/pkg/errors"
)

/*
HandlerFunc executes a single JSON-RPC method. Implementations decode their
own params and return either a result or an RPC error.
*/
type HandlerFunc func(
	ctx context.Context, params json.RawMessage,
) (any, *errors.RpcError)

/*
Server dispatches JSON-RPC 2.0 requests to registered method handlers. It
is transport-agnostic so the same dispatch works behind HTTP handlers and
tests alike.
*/
type Server struct {
	handlers map[string]HandlerFunc
}

func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
	}
}

/*
Register binds a method name to its handler. Registering the same name
twice replaces the previous handler.
*/
func (srv *Server) Register(method string, handler HandlerFunc) {
	srv.handlers[method] = handler
}

/*
HandleBody processes a raw request body, which may be a single request, a
batch, or a notification. The returned bytes are the encoded response, or
nil when the body contained only notifications.
*/
func (srv *Server) HandleBody(ctx context.Context, body []byte) []byte {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return encodeResponse(newErrorResponse(nil, errors.ErrInvalidRequest))
	}

	// Batch requests open with '['.
	if body[0] == '[' {
		var batch []RPCRequest

		if err := json.Unmarshal(body, &batch); err != nil {
			return encodeResponse(newErrorResponse(nil, errors.ErrParseError))
		}

		if len(batch) == 0 {
			return encodeResponse(newErrorResponse(nil, errors.ErrInvalidRequest))
		}

		var responses []RPCResponse

		for _, req := range batch {
			resp := srv.handle(ctx, &req)

			// Notifications have no ID, so no response is owed.
			if len(req.ID) != 0 {
				responses = append(responses, resp)
			}
		}

		if len(responses) == 0 {
			return nil
		}

		return encodeResponse(responses)
	}

	var req RPCRequest

	if err := json.Unmarshal(body, &req); err != nil {
		return encodeResponse(newErrorResponse(nil, errors.ErrParseError))
	}

	resp := srv.handle(ctx, &req)

	if len(req.ID) == 0 {
		return nil
	}

	return encodeResponse(resp)
}

func (srv *Server) handle(ctx context.Context, req *RPCRequest) RPCResponse {
	if req.JSONRPC != "2.0" {
		return newErrorResponse(req.ID, errors.ErrInvalidRequest)
	}

	handler, ok := srv.handlers[req.Method]

	if !ok {
		return newErrorResponse(req.ID, errors.ErrMethodNotFound)
	}

	result, rpcErr := handler(ctx, req.Params)

	if rpcErr != nil {
		return newErrorResponse(req.ID, rpcErr)
	}

	return RPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func newErrorResponse(id json.RawMessage, e *errors.RpcError) RPCResponse {
	if e == nil {
		e = errors.ErrInternal
	}

	return RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}

func encodeResponse(v any) []byte {
	out, err := json.Marshal(v)

	if err != nil {
		fallback, _ := json.Marshal(newErrorResponse(nil, errors.ErrInternal))
		return fallback
	}

	return out
}
