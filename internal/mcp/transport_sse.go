package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tablepilot/internal/logging"
)

// SSETransport implements Transport over a long-lived Server-Sent Events
// stream. Requests are POSTed to an endpoint announced by the server; the
// matching responses arrive on the stream and are correlated by request ID.
type SSETransport struct {
	mu sync.RWMutex

	baseURL    string
	postURL    string
	timeout    time.Duration
	client     *http.Client // for POSTs, bounded by timeout
	streamer   *http.Client // for the long-lived GET, no client timeout
	connected  bool
	serverInfo *Capabilities

	sseResp    *http.Response
	cancel     context.CancelFunc
	pending    map[int]chan *response
	nextID     int
	initSignal chan struct{}
	initOnce   sync.Once
}

// NewSSETransport creates a new SSE transport for MCP communication.
func NewSSETransport(baseURL string, timeout time.Duration) *SSETransport {
	return &SSETransport{
		baseURL:    baseURL,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
		streamer:   &http.Client{},
		pending:    make(map[int]chan *response),
		nextID:     1,
		initSignal: make(chan struct{}),
	}
}

// Connect establishes the SSE stream and runs the initialize handshake.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}

	// The stream must outlive the connect context.
	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, "GET", t.baseURL, nil)
	if err != nil {
		cancel()
		t.mu.Unlock()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.streamer.Do(req)
	if err != nil {
		cancel()
		t.mu.Unlock()
		return fmt.Errorf("failed to connect to SSE endpoint %s: %w", t.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.mu.Unlock()
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	t.sseResp = resp
	t.cancel = cancel
	go t.readLoop(streamCtx, resp.Body)
	t.mu.Unlock()

	// Wait for the endpoint event before issuing requests.
	select {
	case <-t.initSignal:
	case <-ctx.Done():
		t.Disconnect()
		return ctx.Err()
	case <-time.After(t.timeout):
		t.Disconnect()
		return fmt.Errorf("timeout waiting for endpoint event")
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), t.timeout)
	defer cancelInit()

	caps, err := t.GetCapabilities(initCtx)
	if err != nil {
		t.Disconnect()
		return fmt.Errorf("failed to get capabilities: %w", err)
	}

	t.mu.Lock()
	t.serverInfo = caps
	t.connected = true
	t.mu.Unlock()

	logging.MCP("SSE transport connected to %s", t.baseURL)
	return nil
}

// Disconnect closes the connection.
func (t *SSETransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.sseResp != nil {
		t.sseResp.Body.Close()
		t.sseResp = nil
	}
	t.connected = false
	t.serverInfo = nil

	// Close pending channels to unblock callers.
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	return nil
}

// readLoop reads SSE events from the response body.
func (t *SSETransport) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	eventType := "message"
	var eventData bytes.Buffer

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			data := strings.TrimSuffix(eventData.String(), "\n")
			if data != "" {
				t.handleEvent(eventType, data)
			}
			eventType = "message"
			eventData.Reset()
			continue
		}

		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			eventData.WriteString(strings.TrimPrefix(line, "data: "))
			eventData.WriteByte('\n')
		case strings.HasPrefix(line, ":"):
			// Comment, ignore.
		}
	}

	if err := scanner.Err(); err != nil {
		logging.MCPWarn("SSE read error: %v", err)
	}

	t.mu.Lock()
	if t.connected {
		t.connected = false
		logging.MCPWarn("SSE connection lost")
	}
	t.mu.Unlock()
}

func (t *SSETransport) handleEvent(eventType, data string) {
	switch eventType {
	case "endpoint":
		t.mu.Lock()
		t.postURL = data
		t.mu.Unlock()
		t.initOnce.Do(func() { close(t.initSignal) })
		logging.MCPDebug("received SSE endpoint: %s", data)

	case "message":
		var resp response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			logging.MCPWarn("failed to unmarshal SSE message: %v", err)
			return
		}

		t.mu.RLock()
		ch, ok := t.pending[resp.ID]
		t.mu.RUnlock()
		if ok {
			select {
			case ch <- &resp:
			default:
			}
		}
	}
}

// call makes a JSON-RPC call, waiting for the correlated SSE response.
func (t *SSETransport) call(ctx context.Context, method string, params interface{}) (*response, error) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	ch := make(chan *response, 1)
	t.pending[id] = ch
	postURL := t.postURL
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if postURL == "" {
		return nil, fmt.Errorf("no endpoint available")
	}

	req := request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.resolveURL(postURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", httpResp.StatusCode, string(bodyBytes))
	}

	// The POST is acknowledged with 200/202; the result arrives on the
	// SSE stream.
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("connection closed")
		}
		if resp.Error != nil {
			return resp, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(t.timeout):
		return nil, fmt.Errorf("timeout waiting for response")
	}
}

func (t *SSETransport) resolveURL(u string) string {
	base, err := url.Parse(t.baseURL)
	if err != nil {
		return u
	}
	ref, err := url.Parse(u)
	if err != nil {
		return u
	}
	return base.ResolveReference(ref).String()
}

// GetCapabilities returns server capabilities.
func (t *SSETransport) GetCapabilities(ctx context.Context) (*Capabilities, error) {
	t.mu.RLock()
	if t.serverInfo != nil {
		caps := *t.serverInfo
		t.mu.RUnlock()
		return &caps, nil
	}
	t.mu.RUnlock()

	resp, err := t.call(ctx, "initialize", map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]string{
			"name":    "tablepilot",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Capabilities Capabilities `json:"capabilities"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		var simple Capabilities
		if err2 := json.Unmarshal(resp.Result, &simple); err2 != nil {
			return nil, fmt.Errorf("failed to parse capabilities: %w", err)
		}
		return &simple, nil
	}
	return &result.Capabilities, nil
}

// ListTools retrieves available tools from the server.
func (t *SSETransport) ListTools(ctx context.Context) ([]ToolSchema, error) {
	resp, err := t.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	var result struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools response: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the MCP server.
func (t *SSETransport) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	start := time.Now()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}

	resp, err := t.call(ctx, "tools/call", params)
	latencyMs := time.Since(start).Milliseconds()

	if err != nil {
		return &CallResult{
			Success:   false,
			Error:     err.Error(),
			LatencyMs: latencyMs,
		}, nil
	}

	return &CallResult{
		Success:   true,
		Output:    resp.Result,
		LatencyMs: latencyMs,
	}, nil
}

// Ping checks if the server is responsive.
func (t *SSETransport) Ping(ctx context.Context) error {
	_, err := t.call(ctx, "ping", nil)
	return err
}

// IsConnected returns current connection status.
func (t *SSETransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

var _ Transport = (*SSETransport)(nil)
