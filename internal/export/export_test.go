package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"tracecore/pkg/domain"
)

// exportTrace builds a trace with one plan, one operation, an input item,
// an output collection with one part, and two files (one without generator).
func exportTrace() *domain.Trace {
	trace := domain.NewTrace("1")

	input := domain.NewItem("100", domain.Sample{ID: "7", Name: "strain"}, domain.ObjectType{ID: "5", Name: "Yeast Plate"})
	trace.AddItem(input)

	op := domain.NewOperation("10", domain.OperationType{ID: "2", Category: "Culturing", Name: "Dilute"})
	op.StartTime = "2019-01-01T00:00:00Z"
	op.EndTime = "2019-01-01T01:00:00Z"
	op.AddInput(&domain.Input{Name: "culture", FieldValueID: "31", Item: input, RoutingID: "A"})
	op.AddInput(&domain.Parameter{Name: "volume", FieldValueID: "32", Value: 2.5})
	trace.AddOperation(op)
	trace.AddConsumer(input.ID, op)

	job := domain.NewJob("20", []*domain.Operation{op}, "", "", "done")
	trace.AddJob(job)

	plan := domain.NewPlan("1", "dilution run", []*domain.Operation{op}, "done")
	trace.AddPlan(plan)

	coll := domain.NewCollection("300", domain.ObjectType{ID: "6", Name: "96 Well Plate"})
	coll.SetGenerator(op)
	coll.AddSource(input)
	trace.AddItem(coll)

	part := domain.NewPart("300/A1", "300/A1", coll)
	part.Sample = &domain.Sample{ID: "7", Name: "strain"}
	part.SetGenerator(op)
	trace.AddItem(part)

	generated := domain.NewFile("0", "reading.csv", "50", 128, job)
	generated.SetGenerator(op)
	generated.AddSource(part)
	trace.AddFile(generated)

	orphan := domain.NewFile("1", "stray.csv", "51", 64, job)
	trace.AddFile(orphan)
	return trace
}

func TestDocumentShape(t *testing.T) {
	doc := Document(exportTrace())

	if doc["plan_id"] != "1" || doc["experiment_id"] != "1" {
		t.Fatalf("unexpected plan identifiers: %v / %v", doc["plan_id"], doc["experiment_id"])
	}
	if doc["plan_name"] != "dilution run" {
		t.Fatalf("plan_name = %v", doc["plan_name"])
	}
	inputs := doc["plan_inputs"].([]string)
	if len(inputs) != 1 || inputs[0] != "100" {
		t.Fatalf("plan_inputs = %v", inputs)
	}

	ops := doc["operations"].([]map[string]any)
	if len(ops) != 1 {
		t.Fatalf("expected one operation, got %d", len(ops))
	}
	opType := ops[0]["operation_type"].(map[string]any)
	if opType["name"] != "Dilute" || opType["category"] != "Culturing" {
		t.Fatalf("operation_type = %v", opType)
	}
	args := ops[0]["inputs"].([]map[string]any)
	if len(args) != 2 {
		t.Fatalf("expected two input arguments, got %v", args)
	}
	if args[0]["item_id"] != "100" || args[0]["routing_id"] != "A" {
		t.Fatalf("item argument = %v", args[0])
	}
	if args[1]["value"] != 2.5 {
		t.Fatalf("parameter argument = %v", args[1])
	}

	jobs := doc["jobs"].([]map[string]any)
	if len(jobs) != 1 || jobs[0]["job_id"] != "20" || jobs[0]["status"] != "done" {
		t.Fatalf("jobs = %v", jobs)
	}
}

func TestDocumentItems(t *testing.T) {
	doc := Document(exportTrace())

	byID := map[string]map[string]any{}
	for _, item := range doc["items"].([]map[string]any) {
		byID[item["item_id"].(string)] = item
	}

	coll := byID["300"]
	if coll["type"] != "collection" {
		t.Fatalf("collection dict = %v", coll)
	}
	if gen := coll["generated_by"].(map[string]any); gen["operation_id"] != "10" {
		t.Fatalf("collection generated_by = %v", gen)
	}
	if sources := coll["sources"].([]string); len(sources) != 1 || sources[0] != "100" {
		t.Fatalf("collection sources = %v", sources)
	}

	part := byID["300/A1"]
	if part["type"] != "part" || part["well"] != "A1" || part["part_of"] != "300" {
		t.Fatalf("part dict = %v", part)
	}
	if sample := part["sample"].(map[string]any); sample["sample_id"] != "7" {
		t.Fatalf("part sample = %v", sample)
	}
}

func TestDocumentFilesRequireGenerator(t *testing.T) {
	doc := Document(exportTrace())

	files := doc["files"].([]map[string]any)
	if len(files) != 1 {
		t.Fatalf("expected only the generator-resolved file, got %v", files)
	}
	file := files[0]
	if file["filename"] != "op_10/reading.csv" {
		t.Fatalf("filename = %v", file["filename"])
	}
	if file["type"] != "CSV" || file["upload_id"] != "50" {
		t.Fatalf("file dict = %v", file)
	}
	if sources := file["sources"].([]string); len(sources) != 1 || sources[0] != "300/A1" {
		t.Fatalf("file sources = %v", sources)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, exportTrace()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"plan_name": "dilution run"`) {
		t.Fatalf("unexpected document: %s", buf.String())
	}
}

func TestSBOLMapping(t *testing.T) {
	doc := SBOL(exportTrace(), "https://lab.example.org")

	components := doc.Components()
	if len(components) != 1 || components[0].Name != "item_100" {
		t.Fatalf("components = %v", components)
	}

	activities := doc.Activities()
	if len(activities) != 1 || activities[0].Name != "operation_10" {
		t.Fatalf("activities = %v", activities)
	}
	usages := activities[0].Usages
	if len(usages) != 1 || usages[0].Entity != "https://lab.example.org/item_100" {
		t.Fatalf("usages = %v", usages)
	}
}

func TestSBOLSkipsJobGenerators(t *testing.T) {
	trace := exportTrace()
	item := domain.NewItem("400", domain.Sample{ID: "7"}, domain.ObjectType{})
	item.SetGenerator(trace.Job("20"))
	trace.AddItem(item)

	doc := SBOL(trace, "https://lab.example.org")
	for _, c := range doc.Components() {
		if c.Name == "item_400" && c.WasGeneratedBy != "" {
			t.Fatalf("job generator should not map: %v", c)
		}
	}
}

func TestSBOLWriteRDF(t *testing.T) {
	var buf bytes.Buffer
	doc := SBOL(exportTrace(), "https://lab.example.org")
	if err := doc.WriteRDF(&buf); err != nil {
		t.Fatalf("WriteRDF: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "sbol:ComponentDefinition") || !strings.Contains(out, "prov:Activity") {
		t.Fatalf("unexpected RDF: %s", out)
	}
}

func TestWritePlateCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlateCSV(&buf, exportTrace(), "300"); err != nil {
		t.Fatalf("WritePlateCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one part, got %d rows", len(rows))
	}
	if rows[0][0] != "Refname" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "flow-plate" || rows[1][1] != "300/A1" || rows[1][9] != "7" {
		t.Fatalf("part row = %v", rows[1])
	}

	if err := WritePlateCSV(&buf, exportTrace(), "999"); err == nil {
		t.Fatal("expected error for unknown collection")
	}
}
