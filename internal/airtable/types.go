// Package airtable provides typed wrappers over the Airtable MCP server's
// tools. This is the API surface exposed to generated code.
package airtable

// Base is an Airtable base.
type Base struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionLevel string `json:"permissionLevel,omitempty"`
}

// View is a saved view on a table.
type View struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Field is a column definition.
type Field struct {
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// Table is a table schema.
type Table struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	PrimaryFieldID string  `json:"primaryFieldId,omitempty"`
	Fields         []Field `json:"fields,omitempty"`
	Views          []View  `json:"views,omitempty"`
}

// Record is a row with its field values.
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

// RecordUpdate addresses an existing record and the fields to change.
type RecordUpdate struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Comment is a comment on a record.
type Comment struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CreatedTime string `json:"createdTime,omitempty"`
	Author      struct {
		ID    string `json:"id,omitempty"`
		Email string `json:"email,omitempty"`
		Name  string `json:"name,omitempty"`
	} `json:"author,omitempty"`
}

// SortSpec orders list results by a field.
type SortSpec struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"` // "asc" or "desc"
}

// ListOptions are the optional arguments to ListRecords.
type ListOptions struct {
	View            string
	MaxRecords      int
	FilterByFormula string
	Sort            []SortSpec
}

// SearchOptions are the optional arguments to SearchRecords.
type SearchOptions struct {
	FieldIDs   []string
	MaxRecords int
	View       string
}
