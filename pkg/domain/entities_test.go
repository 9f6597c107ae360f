package domain

import (
	"reflect"
	"testing"
)

func TestAttributesAddSkipsEmptyValues(t *testing.T) {
	attrs := Attributes{}
	attrs.Add(map[string]any{
		"keep":       "value",
		"zero":       0,
		"blank":      "",
		"nothing":    nil,
		"empty_map":  map[string]any{},
		"empty_list": []any{},
	})
	if !attrs.Has("keep") || attrs.Get("keep") != "value" {
		t.Fatalf("expected keep attribute, got %+v", attrs)
	}
	if !attrs.Has("zero") {
		t.Fatalf("numeric zero should be kept, got %+v", attrs)
	}
	for _, key := range []string{"blank", "nothing", "empty_map", "empty_list"} {
		if attrs.Has(key) {
			t.Fatalf("attribute %q should have been dropped", key)
		}
	}
}

func TestSourcesDeduplicateAndSort(t *testing.T) {
	item := NewItem("100", Sample{ID: "1", Name: "a"}, ObjectType{ID: "2", Name: "tube"})
	src2 := NewItem("2", Sample{}, ObjectType{})
	src10 := NewItem("10", Sample{}, ObjectType{})
	item.AddSource(src10)
	item.AddSource(src2)
	item.AddSource(src10)
	got := item.SourceIDs()
	want := []string{"2", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SourceIDs = %v, want %v", got, want)
	}
	item.RemoveSource("10")
	if got := item.SourceIDs(); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("after RemoveSource, SourceIDs = %v", got)
	}
}

func TestGeneratedBy(t *testing.T) {
	op := NewOperation("7", OperationType{ID: "1", Name: "Dilute"})
	job := NewJob("7", []*Operation{op}, "", "", "complete")
	item := NewItem("1", Sample{}, ObjectType{})

	if item.GeneratedBy(op) {
		t.Fatalf("entity without generator should not match")
	}
	item.SetGenerator(op)
	if !item.GeneratedBy(op) {
		t.Fatalf("generator should match the same operation")
	}
	if item.GeneratedBy(job) {
		t.Fatalf("operation generator must not match a job with the same numeric ID")
	}
	item.SetGenerator(job)
	if !item.GeneratedBy(job) {
		t.Fatalf("generator should match the same job")
	}
}

func TestPartWellAndRegistration(t *testing.T) {
	coll := NewCollection("300", ObjectType{ID: "9", Name: "96-well plate"})
	part := NewPart("300/A1", "300/A1", coll)
	if got := part.Well(); got != "A1" {
		t.Fatalf("Well() = %q, want A1", got)
	}
	if coll.Part("A1") != part {
		t.Fatalf("part not registered with collection")
	}
	if !coll.HasParts() {
		t.Fatalf("collection should have parts")
	}
}

func TestCollectionPartsWellOrder(t *testing.T) {
	coll := NewCollection("300", ObjectType{})
	for _, well := range []string{"B2", "A10", "A2", "A1"} {
		NewPart("300/"+well, "300/"+well, coll)
	}
	var wells []string
	for _, part := range coll.Parts() {
		wells = append(wells, part.Well())
	}
	want := []string{"A1", "A2", "A10", "B2"}
	if !reflect.DeepEqual(wells, want) {
		t.Fatalf("Parts order = %v, want %v", wells, want)
	}
}

func TestFileTypeOf(t *testing.T) {
	cases := []struct {
		name string
		want FileType
	}{
		{"data.csv", FileTypeCSV},
		{"flow.fcs", FileTypeFCS},
		{"report.XML", FileTypeXML},
		{"readme.txt", ""},
		{"no_extension", ""},
	}
	for _, tc := range cases {
		if got := FileTypeOf(tc.name); got != tc.want {
			t.Fatalf("FileTypeOf(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMissingEntity(t *testing.T) {
	missing := NewMissingEntity("42")
	if !missing.Missing() {
		t.Fatalf("missing entity should report Missing")
	}
	item := NewItem("1", Sample{}, ObjectType{})
	if item.Missing() {
		t.Fatalf("item should not report Missing")
	}
	item.AddSource(missing)
	if !reflect.DeepEqual(item.SourceIDs(), []string{"42"}) {
		t.Fatalf("missing entity should participate as a source")
	}
}
