package airtable

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxBatchSize is the Airtable API limit for batched record writes.
const maxBatchSize = 10

// ToolCaller invokes a named MCP tool. *mcp.Client satisfies this.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (json.RawMessage, error)
}

// Client is a typed Airtable client over an MCP tool caller.
type Client struct {
	caller ToolCaller
}

// NewClient wraps an MCP tool caller.
func NewClient(caller ToolCaller) *Client {
	return &Client{caller: caller}
}

// call invokes a tool and decodes the payload into out. A nil out discards
// the payload.
func (c *Client) call(ctx context.Context, tool string, args map[string]interface{}, out interface{}) error {
	raw, err := c.caller.CallTool(ctx, tool, args)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", tool, err)
	}
	return nil
}

// ListBases lists all bases the token can access.
func (c *Client) ListBases(ctx context.Context) ([]Base, error) {
	raw, err := c.caller.CallTool(ctx, "list_bases", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var bases []Base
	if err := json.Unmarshal(raw, &bases); err == nil {
		return bases, nil
	}
	// Some servers wrap the list in an object.
	var wrapped struct {
		Bases []Base `json:"bases"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("list_bases: failed to decode result: %w", err)
	}
	return wrapped.Bases, nil
}

// ListTables lists tables in a base. detailLevel may be "full",
// "tableIdentifiersOnly" or empty (server default).
func (c *Client) ListTables(ctx context.Context, baseID, detailLevel string) ([]Table, error) {
	args := map[string]interface{}{"baseId": baseID}
	if detailLevel != "" {
		args["detailLevel"] = detailLevel
	}
	var tables []Table
	if err := c.call(ctx, "list_tables", args, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// DescribeTable returns the full schema of a table.
func (c *Client) DescribeTable(ctx context.Context, baseID, tableID string) (Table, error) {
	var table Table
	err := c.call(ctx, "describe_table", map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
	}, &table)
	return table, err
}

// ListRecords lists records from a table with optional filtering.
func (c *Client) ListRecords(ctx context.Context, baseID, tableID string, opts *ListOptions) ([]Record, error) {
	args := map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
	}
	if opts != nil {
		if opts.View != "" {
			args["view"] = opts.View
		}
		if opts.MaxRecords > 0 {
			args["maxRecords"] = opts.MaxRecords
		}
		if opts.FilterByFormula != "" {
			args["filterByFormula"] = opts.FilterByFormula
		}
		if len(opts.Sort) > 0 {
			args["sort"] = opts.Sort
		}
	}
	var records []Record
	if err := c.call(ctx, "list_records", args, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SearchRecords finds records containing the search term.
func (c *Client) SearchRecords(ctx context.Context, baseID, tableID, searchTerm string, opts *SearchOptions) ([]Record, error) {
	args := map[string]interface{}{
		"baseId":     baseID,
		"tableId":    tableID,
		"searchTerm": searchTerm,
	}
	if opts != nil {
		if len(opts.FieldIDs) > 0 {
			args["fieldIds"] = opts.FieldIDs
		}
		if opts.MaxRecords > 0 {
			args["maxRecords"] = opts.MaxRecords
		}
		if opts.View != "" {
			args["view"] = opts.View
		}
	}
	var records []Record
	if err := c.call(ctx, "search_records", args, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecord fetches a single record by ID.
func (c *Client) GetRecord(ctx context.Context, baseID, tableID, recordID string) (Record, error) {
	var record Record
	err := c.call(ctx, "get_record", map[string]interface{}{
		"baseId":   baseID,
		"tableId":  tableID,
		"recordId": recordID,
	}, &record)
	return record, err
}

// CreateRecord creates a new record.
func (c *Client) CreateRecord(ctx context.Context, baseID, tableID string, fields map[string]interface{}) (Record, error) {
	var record Record
	err := c.call(ctx, "create_record", map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
		"fields":  fields,
	}, &record)
	return record, err
}

// UpdateRecords updates up to 10 records in one batch. Larger batches are
// rejected before any network call.
func (c *Client) UpdateRecords(ctx context.Context, baseID, tableID string, updates []RecordUpdate) ([]Record, error) {
	if len(updates) > maxBatchSize {
		return nil, fmt.Errorf("cannot update more than %d records at once (got %d)", maxBatchSize, len(updates))
	}
	var records []Record
	err := c.call(ctx, "update_records", map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
		"records": updates,
	}, &records)
	return records, err
}

// DeleteRecords deletes records by ID. Batches are capped like updates.
func (c *Client) DeleteRecords(ctx context.Context, baseID, tableID string, recordIDs []string) error {
	if len(recordIDs) > maxBatchSize {
		return fmt.Errorf("cannot delete more than %d records at once (got %d)", maxBatchSize, len(recordIDs))
	}
	return c.call(ctx, "delete_records", map[string]interface{}{
		"baseId":    baseID,
		"tableId":   tableID,
		"recordIds": recordIDs,
	}, nil)
}

// CreateTable creates a new table in a base.
func (c *Client) CreateTable(ctx context.Context, baseID, name, description string, fields []Field) (Table, error) {
	args := map[string]interface{}{
		"baseId": baseID,
		"name":   name,
		"fields": fields,
	}
	if description != "" {
		args["description"] = description
	}
	var table Table
	err := c.call(ctx, "create_table", args, &table)
	return table, err
}

// UpdateTable renames a table or changes its description. Empty values are
// left unchanged.
func (c *Client) UpdateTable(ctx context.Context, baseID, tableID, name, description string) (Table, error) {
	args := map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
	}
	if name != "" {
		args["name"] = name
	}
	if description != "" {
		args["description"] = description
	}
	var table Table
	err := c.call(ctx, "update_table", args, &table)
	return table, err
}

// CreateField adds a field to a table.
func (c *Client) CreateField(ctx context.Context, baseID, tableID string, field Field) (Field, error) {
	args := map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
		"name":    field.Name,
		"type":    field.Type,
	}
	if field.Description != "" {
		args["description"] = field.Description
	}
	if len(field.Options) > 0 {
		args["options"] = field.Options
	}
	var created Field
	err := c.call(ctx, "create_field", args, &created)
	return created, err
}

// UpdateField renames a field or changes its description.
func (c *Client) UpdateField(ctx context.Context, baseID, tableID, fieldID, name, description string) (Field, error) {
	args := map[string]interface{}{
		"baseId":  baseID,
		"tableId": tableID,
		"fieldId": fieldID,
	}
	if name != "" {
		args["name"] = name
	}
	if description != "" {
		args["description"] = description
	}
	var field Field
	err := c.call(ctx, "update_field", args, &field)
	return field, err
}

// CreateComment adds a comment to a record.
func (c *Client) CreateComment(ctx context.Context, baseID, tableID, recordID, text string) (Comment, error) {
	var comment Comment
	err := c.call(ctx, "create_comment", map[string]interface{}{
		"baseId":   baseID,
		"tableId":  tableID,
		"recordId": recordID,
		"text":     text,
	}, &comment)
	return comment, err
}

// ListComments lists comments on a record.
func (c *Client) ListComments(ctx context.Context, baseID, tableID, recordID string) ([]Comment, error) {
	var comments []Comment
	err := c.call(ctx, "list_comments", map[string]interface{}{
		"baseId":   baseID,
		"tableId":  tableID,
		"recordId": recordID,
	}, &comments)
	return comments, err
}
