package airtable

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller records the last tool call and replays a canned payload.
type fakeCaller struct {
	lastTool string
	lastArgs map[string]interface{}
	payload  json.RawMessage
	err      error
	calls    int
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (json.RawMessage, error) {
	f.calls++
	f.lastTool = name
	f.lastArgs = args
	return f.payload, f.err
}

func TestListRecordsArguments(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`[{"id":"rec1","fields":{"Status":"Active"}}]`)}
	client := NewClient(fake)

	records, err := client.ListRecords(context.Background(), "app1", "Contacts", &ListOptions{
		View:            "Grid view",
		MaxRecords:      100,
		FilterByFormula: `{Status} = "Active"`,
		Sort:            []SortSpec{{Field: "Name", Direction: "asc"}},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "Active", records[0].Fields["Status"])

	assert.Equal(t, "list_records", fake.lastTool)
	assert.Equal(t, "app1", fake.lastArgs["baseId"])
	assert.Equal(t, "Contacts", fake.lastArgs["tableId"])
	assert.Equal(t, "Grid view", fake.lastArgs["view"])
	assert.Equal(t, 100, fake.lastArgs["maxRecords"])
	assert.Equal(t, `{Status} = "Active"`, fake.lastArgs["filterByFormula"])
}

func TestListRecordsOmitsEmptyOptions(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`[]`)}
	client := NewClient(fake)

	_, err := client.ListRecords(context.Background(), "app1", "Contacts", nil)
	require.NoError(t, err)

	assert.NotContains(t, fake.lastArgs, "view")
	assert.NotContains(t, fake.lastArgs, "maxRecords")
	assert.NotContains(t, fake.lastArgs, "filterByFormula")
	assert.NotContains(t, fake.lastArgs, "sort")
}

func TestSearchRecords(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`[{"id":"rec9","fields":{"Email":"john@example.com"}}]`)}
	client := NewClient(fake)

	records, err := client.SearchRecords(context.Background(), "app1", "Contacts", "john@example.com", &SearchOptions{
		FieldIDs:   []string{"fldEmail"},
		MaxRecords: 5,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "search_records", fake.lastTool)
	assert.Equal(t, "john@example.com", fake.lastArgs["searchTerm"])
	assert.Equal(t, []string{"fldEmail"}, fake.lastArgs["fieldIds"])
	assert.Equal(t, 5, fake.lastArgs["maxRecords"])
}

func TestUpdateRecordsBatchLimit(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`[]`)}
	client := NewClient(fake)

	updates := make([]RecordUpdate, 11)
	for i := range updates {
		updates[i] = RecordUpdate{ID: "rec", Fields: map[string]interface{}{"Status": "Active"}}
	}

	_, err := client.UpdateRecords(context.Background(), "app1", "Contacts", updates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 10")
	assert.Zero(t, fake.calls, "no network call for oversized batch")

	_, err = client.UpdateRecords(context.Background(), "app1", "Contacts", updates[:10])
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "update_records", fake.lastTool)
}

func TestDeleteRecordsBatchLimit(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`{"deleted":true}`)}
	client := NewClient(fake)

	ids := make([]string, 11)
	err := client.DeleteRecords(context.Background(), "app1", "Contacts", ids)
	require.Error(t, err)
	assert.Zero(t, fake.calls)

	require.NoError(t, client.DeleteRecords(context.Background(), "app1", "Contacts", ids[:3]))
	assert.Equal(t, "delete_records", fake.lastTool)
	assert.Equal(t, []string{"", "", ""}, fake.lastArgs["recordIds"])
}

func TestListBasesUnwrapsBothShapes(t *testing.T) {
	bare := &fakeCaller{payload: json.RawMessage(`[{"id":"app1","name":"CRM"}]`)}
	bases, err := NewClient(bare).ListBases(context.Background())
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.Equal(t, "CRM", bases[0].Name)

	wrapped := &fakeCaller{payload: json.RawMessage(`{"bases":[{"id":"app2","name":"Sales"}]}`)}
	bases, err = NewClient(wrapped).ListBases(context.Background())
	require.NoError(t, err)
	require.Len(t, bases, 1)
	assert.Equal(t, "Sales", bases[0].Name)
	assert.Equal(t, 1, wrapped.calls, "single tool call for wrapped shape")
}

func TestDescribeTable(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`{"id":"tbl1","name":"Contacts","fields":[{"id":"fld1","name":"Name","type":"singleLineText"}]}`)}
	client := NewClient(fake)

	table, err := client.DescribeTable(context.Background(), "app1", "tbl1")
	require.NoError(t, err)
	assert.Equal(t, "Contacts", table.Name)
	require.Len(t, table.Fields, 1)
	assert.Equal(t, "singleLineText", table.Fields[0].Type)
}

func TestCreateAndCommentRoundTrip(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`{"id":"recNew","fields":{"Name":"John"}}`)}
	client := NewClient(fake)

	record, err := client.CreateRecord(context.Background(), "app1", "Contacts", map[string]interface{}{"Name": "John"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", record.ID)
	assert.Equal(t, "create_record", fake.lastTool)

	fake.payload = json.RawMessage(`{"id":"com1","text":"ping"}`)
	comment, err := client.CreateComment(context.Background(), "app1", "Contacts", "recNew", "ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", comment.Text)
	assert.Equal(t, "recNew", fake.lastArgs["recordId"])
}

func TestFieldOperations(t *testing.T) {
	fake := &fakeCaller{payload: json.RawMessage(`{"id":"fldNew","name":"Priority","type":"singleSelect"}`)}
	client := NewClient(fake)

	created, err := client.CreateField(context.Background(), "app1", "tbl1", Field{
		Name:    "Priority",
		Type:    "singleSelect",
		Options: map[string]interface{}{"choices": []string{"High", "Low"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fldNew", created.ID)
	assert.Equal(t, "create_field", fake.lastTool)
	assert.Contains(t, fake.lastArgs, "options")

	fake.payload = json.RawMessage(`{"id":"fldNew","name":"Urgency","type":"singleSelect"}`)
	updated, err := client.UpdateField(context.Background(), "app1", "tbl1", "fldNew", "Urgency", "")
	require.NoError(t, err)
	assert.Equal(t, "Urgency", updated.Name)
	assert.NotContains(t, fake.lastArgs, "description")
}
