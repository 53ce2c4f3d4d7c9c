// Package mcp implements a Model Context Protocol client for a single
// tool server, speaking JSON-RPC 2.0 over HTTP or SSE.
package mcp

import (
	"context"
	"encoding/json"
)

// Protocol selects the transport wire format.
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolSSE  Protocol = "sse"
)

// request is a JSON-RPC 2.0 request envelope.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// response is a JSON-RPC 2.0 response envelope.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolSchema is a tool description returned by tools/list.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Capabilities reports what the server supports, from the initialize
// handshake.
type Capabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
}

// CallResult is the raw result of a tools/call invocation.
type CallResult struct {
	Success   bool            `json:"success"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Transport defines the interface for MCP protocol transports.
type Transport interface {
	// Connect establishes connection to the MCP server.
	Connect(ctx context.Context) error

	// Disconnect closes the connection.
	Disconnect() error

	// ListTools retrieves available tools from the server.
	ListTools(ctx context.Context) ([]ToolSchema, error)

	// CallTool invokes a tool on the MCP server.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error)

	// GetCapabilities returns server capabilities.
	GetCapabilities(ctx context.Context) (*Capabilities, error)

	// Ping checks if the server is responsive.
	Ping(ctx context.Context) error

	// IsConnected returns current connection status.
	IsConnected() bool
}
