package executor

import (
	"context"
	"reflect"

	"tablepilot/internal/airtable"
)

// airtableSymbols builds the "airtable" package exposed to generated code.
// Every function is a closure over the live client and the execution
// context, so snippets call airtable.ListBases() with no plumbing and all
// network activity is cancelled when the run times out.
func airtableSymbols(ctx context.Context, client *airtable.Client) map[string]map[string]reflect.Value {
	return map[string]map[string]reflect.Value{
		"airtable/airtable": {
			// Types generated code may reference.
			"Base":          reflect.ValueOf((*airtable.Base)(nil)),
			"Table":         reflect.ValueOf((*airtable.Table)(nil)),
			"Field":         reflect.ValueOf((*airtable.Field)(nil)),
			"View":          reflect.ValueOf((*airtable.View)(nil)),
			"Record":        reflect.ValueOf((*airtable.Record)(nil)),
			"RecordUpdate":  reflect.ValueOf((*airtable.RecordUpdate)(nil)),
			"Comment":       reflect.ValueOf((*airtable.Comment)(nil)),
			"SortSpec":      reflect.ValueOf((*airtable.SortSpec)(nil)),
			"ListOptions":   reflect.ValueOf((*airtable.ListOptions)(nil)),
			"SearchOptions": reflect.ValueOf((*airtable.SearchOptions)(nil)),

			"ListBases": reflect.ValueOf(func() ([]airtable.Base, error) {
				return client.ListBases(ctx)
			}),
			"ListTables": reflect.ValueOf(func(baseID string) ([]airtable.Table, error) {
				return client.ListTables(ctx, baseID, "full")
			}),
			"DescribeTable": reflect.ValueOf(func(baseID, tableID string) (airtable.Table, error) {
				return client.DescribeTable(ctx, baseID, tableID)
			}),
			"ListRecords": reflect.ValueOf(func(baseID, tableID string) ([]airtable.Record, error) {
				return client.ListRecords(ctx, baseID, tableID, nil)
			}),
			"ListRecordsWithOptions": reflect.ValueOf(func(baseID, tableID string, opts airtable.ListOptions) ([]airtable.Record, error) {
				return client.ListRecords(ctx, baseID, tableID, &opts)
			}),
			"SearchRecords": reflect.ValueOf(func(baseID, tableID, term string) ([]airtable.Record, error) {
				return client.SearchRecords(ctx, baseID, tableID, term, nil)
			}),
			"SearchRecordsWithOptions": reflect.ValueOf(func(baseID, tableID, term string, opts airtable.SearchOptions) ([]airtable.Record, error) {
				return client.SearchRecords(ctx, baseID, tableID, term, &opts)
			}),
			"GetRecord": reflect.ValueOf(func(baseID, tableID, recordID string) (airtable.Record, error) {
				return client.GetRecord(ctx, baseID, tableID, recordID)
			}),
			"CreateRecord": reflect.ValueOf(func(baseID, tableID string, fields map[string]interface{}) (airtable.Record, error) {
				return client.CreateRecord(ctx, baseID, tableID, fields)
			}),
			"UpdateRecords": reflect.ValueOf(func(baseID, tableID string, updates []airtable.RecordUpdate) ([]airtable.Record, error) {
				return client.UpdateRecords(ctx, baseID, tableID, updates)
			}),
			"DeleteRecords": reflect.ValueOf(func(baseID, tableID string, recordIDs []string) error {
				return client.DeleteRecords(ctx, baseID, tableID, recordIDs)
			}),
			"CreateTable": reflect.ValueOf(func(baseID, name, description string, fields []airtable.Field) (airtable.Table, error) {
				return client.CreateTable(ctx, baseID, name, description, fields)
			}),
			"UpdateTable": reflect.ValueOf(func(baseID, tableID, name, description string) (airtable.Table, error) {
				return client.UpdateTable(ctx, baseID, tableID, name, description)
			}),
			"CreateField": reflect.ValueOf(func(baseID, tableID string, field airtable.Field) (airtable.Field, error) {
				return client.CreateField(ctx, baseID, tableID, field)
			}),
			"UpdateField": reflect.ValueOf(func(baseID, tableID, fieldID, name, description string) (airtable.Field, error) {
				return client.UpdateField(ctx, baseID, tableID, fieldID, name, description)
			}),
			"CreateComment": reflect.ValueOf(func(baseID, tableID, recordID, text string) (airtable.Comment, error) {
				return client.CreateComment(ctx, baseID, tableID, recordID, text)
			}),
			"ListComments": reflect.ValueOf(func(baseID, tableID, recordID string) ([]airtable.Comment, error) {
				return client.ListComments(ctx, baseID, tableID, recordID)
			}),
		},
	}
}
