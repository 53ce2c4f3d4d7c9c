package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeTransport records calls and returns canned results.
type fakeTransport struct {
	connected bool
	lastTool  string
	lastArgs  map[string]interface{}
	result    *CallResult
	tools     []ToolSchema
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Disconnect() error                 { f.connected = false; return nil }
func (f *fakeTransport) IsConnected() bool                 { return f.connected }
func (f *fakeTransport) Ping(ctx context.Context) error    { return nil }
func (f *fakeTransport) GetCapabilities(ctx context.Context) (*Capabilities, error) {
	return &Capabilities{Tools: true}, nil
}
func (f *fakeTransport) ListTools(ctx context.Context) ([]ToolSchema, error) {
	return f.tools, nil
}
func (f *fakeTransport) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	f.lastTool = name
	f.lastArgs = args
	return f.result, nil
}

func TestClientUnwrapsJSONContent(t *testing.T) {
	fake := &fakeTransport{
		result: &CallResult{
			Success: true,
			Output:  json.RawMessage(`{"content":[{"type":"text","text":"[{\"id\":\"rec1\",\"fields\":{\"Name\":\"Ada\"}}]"}]}`),
		},
	}
	client := NewClientWithTransport(fake)

	raw, err := client.CallTool(context.Background(), "list_records", map[string]interface{}{"baseId": "app1"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if fake.lastTool != "list_records" {
		t.Fatalf("tool name = %q", fake.lastTool)
	}
	if fake.lastArgs["baseId"] != "app1" {
		t.Fatalf("args = %v", fake.lastArgs)
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("payload not JSON: %v (%s)", err, raw)
	}
	if len(records) != 1 || records[0]["id"] != "rec1" {
		t.Fatalf("unexpected payload: %v", records)
	}
}

func TestClientWrapsPlainTextContent(t *testing.T) {
	fake := &fakeTransport{
		result: &CallResult{
			Success: true,
			Output:  json.RawMessage(`{"content":[{"type":"text","text":"record deleted"}]}`),
		},
	}
	client := NewClientWithTransport(fake)

	raw, err := client.CallTool(context.Background(), "delete_records", nil)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("payload not a JSON string: %v (%s)", err, raw)
	}
	if s != "record deleted" {
		t.Fatalf("payload = %q", s)
	}
}

func TestClientPassesThroughUnenvelopedResult(t *testing.T) {
	fake := &fakeTransport{
		result: &CallResult{
			Success: true,
			Output:  json.RawMessage(`{"bases":[{"id":"app1"}]}`),
		},
	}
	client := NewClientWithTransport(fake)

	raw, err := client.CallTool(context.Background(), "list_bases", nil)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if string(raw) != `{"bases":[{"id":"app1"}]}` {
		t.Fatalf("payload = %s", raw)
	}
}

func TestClientSurfacesToolErrors(t *testing.T) {
	fake := &fakeTransport{
		result: &CallResult{Success: false, Error: "table not found"},
	}
	client := NewClientWithTransport(fake)

	if _, err := client.CallTool(context.Background(), "describe_table", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestClientSurfacesEnvelopeIsError(t *testing.T) {
	fake := &fakeTransport{
		result: &CallResult{
			Success: true,
			Output:  json.RawMessage(`{"content":[{"type":"text","text":"INVALID_PERMISSIONS"}],"isError":true}`),
		},
	}
	client := NewClientWithTransport(fake)

	if _, err := client.CallTool(context.Background(), "create_record", nil); err == nil {
		t.Fatal("expected error for isError envelope")
	}
}
