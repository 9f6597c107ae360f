package lims

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestIDAcceptsNumberAndString(t *testing.T) {
	var rec struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 123, "b": "456", "c": null}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.A != "123" || rec.B != "456" || rec.C != "" {
		t.Fatalf("decoded ids = %q %q %q", rec.A, rec.B, rec.C)
	}
}

func TestSampleMatrixMixedCells(t *testing.T) {
	var m SampleMatrix
	if err := json.Unmarshal([]byte(`[[101, null, "102"], [null, 103, null]]`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := SampleMatrix{{"101", "", "102"}, {"", "103", ""}}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("matrix = %v, want %v", m, want)
	}
}

func TestSampleMatrixRoundTrip(t *testing.T) {
	in := SampleMatrix{{"1", ""}, {"", "2"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out SampleMatrix
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip = %v, want %v", out, in)
	}
}

func TestAssociationUploadID(t *testing.T) {
	direct := Association{Key: "raw_data", Upload: &Upload{ID: "77"}}
	if got := direct.UploadID(); got != "77" {
		t.Fatalf("direct UploadID = %q", got)
	}
	if direct.Attribute() != nil {
		t.Fatalf("upload association must not be an attribute")
	}

	legacy := Association{
		Key: "measurement",
		Object: map[string]any{
			"measurement": map[string]any{
				"created_at": "2020-01-01", "id": float64(88), "job_id": float64(5),
				"updated_at": "2020-01-02", "upload_content_type": "text/csv",
				"upload_file_name": "od.csv", "upload_file_size": float64(100),
				"upload_updated_at": "2020-01-02",
			},
		},
	}
	if got := legacy.UploadID(); got != "88" {
		t.Fatalf("legacy UploadID = %q", got)
	}

	attr := Association{Key: "volume", Object: map[string]any{"volume": 12.5}}
	if got := attr.UploadID(); got != "" {
		t.Fatalf("attribute association UploadID = %q", got)
	}
	if attr.Attribute() == nil {
		t.Fatalf("attribute association should expose its payload")
	}
}

func TestFieldValueRouting(t *testing.T) {
	fv := FieldValue{Role: RoleOutput, FieldType: &FieldType{Routing: "A"}}
	if !fv.IsOutput() || fv.IsInput() {
		t.Fatalf("role predicates wrong: %+v", fv)
	}
	if fv.RoutingID() != "A" {
		t.Fatalf("RoutingID = %q", fv.RoutingID())
	}
	if (FieldValue{}).RoutingID() != "" {
		t.Fatalf("missing field type should have no routing")
	}
}

func TestJobCompleted(t *testing.T) {
	if !(Job{PC: PCCompleted}).Completed() {
		t.Fatalf("pc %d should be completed", PCCompleted)
	}
	if (Job{PC: 4}).Completed() {
		t.Fatalf("running job should not be completed")
	}
}

func TestItemIsCollection(t *testing.T) {
	if (Item{Sample: &Sample{ID: "1"}}).IsCollection() {
		t.Fatalf("item with sample is not a collection")
	}
	if !(Item{}).IsCollection() {
		t.Fatalf("item without sample is a collection")
	}
}
