package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablepilot/internal/logging"
)

// Client is a connection to a single MCP tool server. It wraps a Transport
// and unwraps the MCP content envelope from tool results.
type Client struct {
	transport Transport
	url       string
}

// NewClient creates a client for the given server URL. Protocol selects
// the transport; ProtocolHTTP is the default.
func NewClient(url string, protocol Protocol, timeout time.Duration) *Client {
	var transport Transport
	switch protocol {
	case ProtocolSSE:
		transport = NewSSETransport(url, timeout)
	default:
		transport = NewHTTPTransport(url, timeout)
	}
	return &Client{transport: transport, url: url}
}

// NewClientWithTransport wraps an existing transport. Used by tests.
func NewClientWithTransport(transport Transport) *Client {
	return &Client{transport: transport}
}

// Connect establishes the connection and runs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// Close disconnects from the server.
func (c *Client) Close() error {
	return c.transport.Disconnect()
}

// IsConnected reports the connection status.
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

// URL returns the configured server URL.
func (c *Client) URL() string {
	return c.url
}

// Ping checks if the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

// ListTools returns the server's tool schemas.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	return c.transport.ListTools(ctx)
}

// toolContent is the content envelope MCP servers wrap tool results in.
type toolContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

// CallTool invokes a tool and returns its payload. The MCP envelope
// (result.content[0].text) is unwrapped; when the text is itself JSON it
// is returned as-is, otherwise it is returned as a JSON string.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (json.RawMessage, error) {
	logging.MCPDebug("tools/call %s", name)

	result, err := c.transport.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("tool %s failed: %s", name, result.Error)
	}

	logging.MCP("tools/call %s completed in %dms", name, result.LatencyMs)
	return unwrapContent(result.Output)
}

// unwrapContent extracts the payload from an MCP tool result.
func unwrapContent(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var envelope toolContent
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Content) == 0 {
		// Not enveloped; return the result verbatim.
		return raw, nil
	}

	text := envelope.Content[0].Text
	if envelope.IsError {
		return nil, fmt.Errorf("tool error: %s", text)
	}

	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	// Plain text payload; re-encode as a JSON string so callers always
	// receive valid JSON.
	encoded, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode text payload: %w", err)
	}
	return encoded, nil
}
