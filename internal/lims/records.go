// Package lims provides read access to the laboratory inventory system the
// provenance graph is reconstructed from. Records mirror the upstream JSON
// shapes; the graph factory converts them into domain entities.
package lims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a record identifier. The upstream API serializes identifiers
// inconsistently as JSON numbers or strings; ID accepts both and always
// renders as a string.
type ID string

// UnmarshalJSON accepts a JSON number, string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("lims: malformed id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as a string.
func (id ID) String() string { return string(id) }

// Sample is an inventory sample record.
type Sample struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ObjectType is an inventory container type record.
type ObjectType struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// OperationType is a protocol definition record.
type OperationType struct {
	ID       ID     `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

// FieldType describes a field definition on an operation type. Routing, when
// set, is the key correlating inputs and outputs of the same operation.
type FieldType struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Routing string `json:"routing"`
	Array   bool   `json:"array"`
}

// Field roles distinguishing input-side from output-side field values.
const (
	RoleInput  = "input"
	RoleOutput = "output"
)

// FieldValue is a value bound to an operation field. ChildItemID references
// the item flowing through the field; when it is empty the field carries a
// literal parameter value. Row and Column, when present, address a single
// well of a collection-valued field.
type FieldValue struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	ChildItemID ID         `json:"child_item_id"`
	Value       any        `json:"value"`
	Row         *int       `json:"row"`
	Column      *int       `json:"column"`
	FieldType   *FieldType `json:"field_type"`
}

// IsInput reports whether the field value is on the input side.
func (fv FieldValue) IsInput() bool { return fv.Role == RoleInput }

// IsOutput reports whether the field value is on the output side.
func (fv FieldValue) IsOutput() bool { return fv.Role == RoleOutput }

// RoutingID returns the routing key of the field, or "".
func (fv FieldValue) RoutingID() string {
	if fv.FieldType == nil {
		return ""
	}
	return fv.FieldType.Routing
}

// Upload is an uploaded file record.
type Upload struct {
	ID    ID     `json:"id"`
	Name  string `json:"upload_file_name"`
	Size  int64  `json:"upload_file_size"`
	JobID ID     `json:"job_id"`
}

// Job is a batch execution record. PC is the upstream program counter; the
// value PCCompleted marks a finished job.
type Job struct {
	ID           ID       `json:"id"`
	PC           int      `json:"pc"`
	Status       string   `json:"status"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	UpdatedAt    string   `json:"updated_at"`
	OperationIDs []ID     `json:"operation_ids"`
	Uploads      []Upload `json:"uploads"`
}

// PCCompleted is the program counter value of a completed job.
const PCCompleted = -2

// Completed reports whether the job finished executing.
func (j Job) Completed() bool { return j.PC == PCCompleted }

// Association is a free-form data association attached to a plan, operation,
// or item. Upload is set when the association references an uploaded file
// directly; Object carries attribute payloads otherwise.
type Association struct {
	Key    string         `json:"key"`
	Object map[string]any `json:"object"`
	Upload *Upload        `json:"upload"`
}

// legacyUploadKeys is the exact key set of an upload record embedded as a
// plain object association by older protocol code.
var legacyUploadKeys = map[string]struct{}{
	"created_at": {}, "id": {}, "job_id": {}, "updated_at": {},
	"upload_content_type": {}, "upload_file_name": {}, "upload_file_size": {},
	"upload_updated_at": {},
}

// UploadID returns the ID of the upload the association references, either
// directly or as a legacy embedded object, and "" when the association is a
// plain attribute.
func (a Association) UploadID() ID {
	if a.Upload != nil {
		return a.Upload.ID
	}
	value, ok := a.Object[a.Key].(map[string]any)
	if !ok {
		return ""
	}
	if len(value) != len(legacyUploadKeys) {
		return ""
	}
	for key := range value {
		if _, ok := legacyUploadKeys[key]; !ok {
			return ""
		}
	}
	return anyToID(value["id"])
}

// Attribute returns the association payload when it is a plain attribute
// object, and nil when it references an upload.
func (a Association) Attribute() map[string]any {
	if a.Upload != nil || a.UploadID() != "" {
		return nil
	}
	return a.Object
}

func anyToID(v any) ID {
	switch n := v.(type) {
	case string:
		return ID(n)
	case float64:
		return ID(strconv.FormatInt(int64(n), 10))
	case json.Number:
		return ID(n.String())
	}
	return ""
}

// Operation is a protocol execution record.
type Operation struct {
	ID               ID            `json:"id"`
	Type             OperationType `json:"operation_type"`
	FieldValues      []FieldValue  `json:"field_values"`
	Jobs             []Job         `json:"jobs"`
	DataAssociations []Association `json:"data_associations"`
}

// Plan is a workflow execution record.
type Plan struct {
	ID               ID            `json:"id"`
	Name             string        `json:"name"`
	Status           string        `json:"status"`
	Operations       []Operation   `json:"operations"`
	DataAssociations []Association `json:"data_associations"`
}

// PartAssociation links a part item to a well of its collection.
type PartAssociation struct {
	PartID       ID    `json:"part_id"`
	CollectionID ID    `json:"collection_id"`
	Row          int   `json:"row"`
	Column       int   `json:"column"`
	Part         *Item `json:"part"`
}

// Item is an inventory item record. Collections have no sample of their
// own; IsCollection distinguishes the two cases.
type Item struct {
	ID               ID            `json:"id"`
	Sample           *Sample       `json:"sample"`
	ObjectType       ObjectType    `json:"object_type"`
	DataAssociations []Association `json:"data_associations"`
}

// IsCollection reports whether the item is a well-plate collection.
func (it Item) IsCollection() bool { return it.Sample == nil }

// Collection is the well-plate view of a collection item. SampleMatrix holds
// the sample ID of each well in row-major order, "" for empty wells.
type Collection struct {
	ID               ID                `json:"id"`
	ObjectType       ObjectType        `json:"object_type"`
	SampleMatrix     SampleMatrix      `json:"matrix"`
	PartAssociations []PartAssociation `json:"part_associations"`
	DataAssociations []Association     `json:"data_associations"`
}

// SampleMatrix is the per-well sample layout of a collection. Upstream
// serializes wells as numbers, strings, or null; all three decode to the
// string form with "" for empty wells.
type SampleMatrix [][]string

// UnmarshalJSON decodes the mixed-type upstream matrix.
func (m *SampleMatrix) UnmarshalJSON(data []byte) error {
	var raw [][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("lims: malformed sample matrix: %w", err)
	}
	out := make(SampleMatrix, len(raw))
	for i, row := range raw {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case nil:
				out[i][j] = ""
			case string:
				out[i][j] = v
			case json.Number:
				out[i][j] = v.String()
			default:
				return fmt.Errorf("lims: malformed sample matrix cell %v", cell)
			}
		}
	}
	*m = out
	return nil
}
