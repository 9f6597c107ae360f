package domain

import (
	"reflect"
	"testing"
)

func buildTrace() (*Trace, *Item, *Item, *Operation) {
	trace := NewTrace("exp-1")
	opType := OperationType{ID: "1", Category: "Workflow", Name: "Dilute"}
	op := NewOperation("10", opType)
	job := NewJob("20", []*Operation{op}, "", "", "complete")
	NewPlan("5", "test plan", []*Operation{op}, "done")

	input := NewItem("100", Sample{ID: "1", Name: "strain"}, ObjectType{ID: "2", Name: "tube"})
	output := NewItem("200", Sample{ID: "1", Name: "strain"}, ObjectType{ID: "2", Name: "tube"})
	output.SetGenerator(op)
	output.AddSource(input)

	trace.AddOperation(op)
	trace.AddJob(job)
	trace.AddPlan(op.Plan)
	trace.AddItem(input)
	trace.AddItem(output)
	trace.AddConsumer(input.ID, op)
	return trace, input, output, op
}

func TestTraceLookups(t *testing.T) {
	trace, input, output, op := buildTrace()
	if !trace.HasItem("100") || !trace.HasItem("200") {
		t.Fatalf("expected items registered")
	}
	if trace.HasItem("") {
		t.Fatalf("empty ID must not be registered")
	}
	if trace.Item("100") != Entity(input) {
		t.Fatalf("Item lookup returned wrong entity")
	}
	if !trace.HasOperation("10") || trace.Operation("10") != op {
		t.Fatalf("operation lookup failed")
	}
	if !trace.HasJob("20") || !trace.HasPlan("5") {
		t.Fatalf("job or plan lookup failed")
	}
	consumers := trace.Consumers(input.ID)
	if len(consumers) != 1 || consumers[0] != op {
		t.Fatalf("Consumers(%q) = %v", input.ID, consumers)
	}
	if trace.Consumers(output.ID) != nil {
		t.Fatalf("output should have no consumers")
	}
}

func TestTraceInputs(t *testing.T) {
	trace, input, output, _ := buildTrace()
	if !trace.IsInput(input) {
		t.Fatalf("item with no generator and no in-trace sources should be an input")
	}
	if trace.IsInput(output) {
		t.Fatalf("item generated by an in-trace operation is not an input")
	}
	inputs := trace.Inputs()
	if len(inputs) != 1 || inputs[0].EntityID() != "100" {
		t.Fatalf("Inputs() = %v", inputs)
	}
}

func TestIsInputSourceInTrace(t *testing.T) {
	trace := NewTrace("exp-2")
	a := NewItem("1", Sample{}, ObjectType{})
	b := NewItem("2", Sample{}, ObjectType{})
	b.AddSource(a)
	trace.AddItem(a)
	trace.AddItem(b)
	if !trace.IsInput(a) {
		t.Fatalf("item a should be an input")
	}
	if trace.IsInput(b) {
		t.Fatalf("item b derives from an in-trace item, so it is not an input")
	}
}

func TestIsInputGeneratorOutsideTrace(t *testing.T) {
	trace := NewTrace("exp-3")
	outsideOp := NewOperation("99", OperationType{Name: "Other"})
	item := NewItem("1", Sample{}, ObjectType{})
	item.SetGenerator(outsideOp)
	trace.AddItem(item)
	if !trace.IsInput(item) {
		t.Fatalf("generator outside the trace should leave the item an input")
	}
}

func TestIsInputPartNever(t *testing.T) {
	trace := NewTrace("exp-4")
	coll := NewCollection("300", ObjectType{})
	part := NewPart("300/A1", "300/A1", coll)
	trace.AddItem(coll)
	trace.AddItem(part)
	if trace.IsInput(part) {
		t.Fatalf("parts are never inputs")
	}
	if !trace.IsInput(coll) {
		t.Fatalf("the collection should be the input")
	}
}

func TestTraceIterationOrder(t *testing.T) {
	trace := NewTrace("exp-5")
	for _, id := range []string{"10", "2", "1"} {
		trace.AddItem(NewItem(id, Sample{}, ObjectType{}))
	}
	var ids []string
	for _, item := range trace.Items() {
		ids = append(ids, item.ID)
	}
	want := []string{"1", "2", "10"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("Items order = %v, want %v", ids, want)
	}
}

func TestFilesGeneratedBy(t *testing.T) {
	trace := NewTrace("exp-6")
	op := NewOperation("1", OperationType{Name: "Measure"})
	job := NewJob("2", []*Operation{op}, "", "", "complete")
	fileA := NewFile("0", "a.csv", "50", 10, job)
	fileA.SetGenerator(op)
	fileB := NewFile("1", "b.fcs", "51", 20, job)
	fileB.SetGenerator(job)
	fileC := NewFile("2", "c.csv", "52", 30, job)
	trace.AddFile(fileA)
	trace.AddFile(fileB)
	trace.AddFile(fileC)

	byOp := trace.FilesGeneratedBy(op)
	if len(byOp) != 1 || byOp[0].EntityID() != "0" {
		t.Fatalf("FilesGeneratedBy(op) = %v", byOp)
	}
	byJob := trace.FilesGeneratedBy(job)
	if len(byJob) != 1 || byJob[0].EntityID() != "1" {
		t.Fatalf("FilesGeneratedBy(job) = %v", byJob)
	}
}
