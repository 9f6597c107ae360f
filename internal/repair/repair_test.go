package repair

import (
	"context"
	"fmt"
	"testing"

	"tracecore/pkg/domain"
)

type stubResolver struct {
	trace *domain.Trace
	items map[string]domain.Entity
}

func (s *stubResolver) ResolveItem(ctx context.Context, id string) domain.Entity {
	if entity, ok := s.items[id]; ok {
		s.trace.AddItem(entity)
		return entity
	}
	return nil
}

func (s *stubResolver) ResolveFile(ctx context.Context, uploadID string) domain.FileEntity {
	return nil
}

func (s *stubResolver) ResolveJobFile(ctx context.Context, jobID string) domain.FileEntity {
	return nil
}

func newOp(id, typeName string) *domain.Operation {
	return domain.NewOperation(id, domain.OperationType{ID: "t" + id, Category: "Workflow", Name: typeName})
}

func run(t *testing.T, trace *domain.Trace, resolver Resolver, rules ...*Rule) {
	t.Helper()
	if resolver == nil {
		resolver = &stubResolver{trace: trace}
	}
	NewEngine(nil, rules...).Run(context.Background(), trace, resolver)
}

func TestPartInheritsCollectionGenerator(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "Make Plate")
	trace.AddOperation(op)
	coll := domain.NewCollection("300", domain.ObjectType{Name: "96-well plate"})
	coll.SetGenerator(op)
	trace.AddItem(coll)
	part := domain.NewPart("300/A1", "300/A1", coll)
	trace.AddItem(part)

	run(t, trace, nil, &Rule{Name: "noop", Ops: []string{"Other"}})

	if !part.GeneratedBy(op) {
		t.Fatalf("part should inherit collection generator")
	}
}

func TestPassthroughRouterAddsSameWellSource(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "NC_Recovery")
	trace.AddOperation(op)

	source := domain.NewCollection("200", domain.ObjectType{})
	trace.AddItem(source)
	sourcePart := domain.NewPart("200/B2", "200/B2", source)
	trace.AddItem(sourcePart)

	coll := domain.NewCollection("300", domain.ObjectType{})
	coll.SetGenerator(op)
	coll.AddSource(source)
	trace.AddItem(coll)
	part := domain.NewPart("300/B2", "300/B2", coll)
	trace.AddItem(part)
	orphan := domain.NewPart("300/C1", "300/C1", coll)
	trace.AddItem(orphan)

	rule := &Rule{Name: "recovery", Ops: []string{"NC_Recovery"}, Parts: []PartFix{PassthroughRouter{}}}
	run(t, trace, nil, rule)

	ids := part.SourceIDs()
	if len(ids) != 1 || ids[0] != "200/B2" {
		t.Fatalf("passthrough sources = %v, want [200/B2]", ids)
	}
	if len(orphan.SourceIDs()) != 0 {
		t.Fatalf("well without a source counterpart must stay unsourced, got %v", orphan.SourceIDs())
	}
}

func TestTransferCoordRouter(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "NC_Large_Volume_Induction")
	trace.AddOperation(op)

	source := domain.NewCollection("200", domain.ObjectType{})
	trace.AddItem(source)
	sourcePart := domain.NewPart("200/B1", "200/B1", source)
	trace.AddItem(sourcePart)

	coll := domain.NewCollection("300", domain.ObjectType{})
	coll.SetGenerator(op)
	coll.AddSource(source)
	coll.Attributes.Add(map[string]any{
		"deep_well_transfer_coords": []any{[]any{"B1"}},
	})
	trace.AddItem(coll)
	part := domain.NewPart("300/A1", "300/A1", coll)
	trace.AddItem(part)

	rule := &Rule{
		Name:  "induction",
		Ops:   []string{"NC_Large_Volume_Induction"},
		Parts: []PartFix{TransferCoordRouter{Key: "deep_well_transfer_coords"}},
	}
	run(t, trace, nil, rule)

	ids := part.SourceIDs()
	if len(ids) != 1 || ids[0] != "200/B1" {
		t.Fatalf("transfer sources = %v, want [200/B1]", ids)
	}
}

func TestMediaLookup(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "Yeast Overnight Suspension")
	op.AddInput(&domain.Parameter{Name: "Type of Media", Value: "YPAD"})
	trace.AddOperation(op)
	item := domain.NewItem("100", domain.Sample{ID: "7"}, domain.ObjectType{})
	item.SetGenerator(op)
	trace.AddItem(item)

	rule := &Rule{
		Name:  "overnight",
		Ops:   []string{"Yeast Overnight Suspension"},
		Items: []ItemFix{MediaLookup{Input: "Type of Media", Samples: mediaSamples}},
	}
	run(t, trace, nil, rule)

	media, ok := item.Attributes.Get("media").(map[string]any)
	if !ok || media["sample_id"] != "11767" {
		t.Fatalf("media attribute = %v", item.Attributes.Get("media"))
	}
}

func TestFileGeneratorFinderSingleOperation(t *testing.T) {
	trace := domain.NewTrace("exp")
	match := newOp("10", "Flow Cytometry 96 well")
	other := newOp("11", "Make Plate")
	trace.AddOperation(match)
	trace.AddOperation(other)
	job := domain.NewJob("20", []*domain.Operation{match, other}, "", "", "complete")
	trace.AddJob(job)
	file := domain.NewFile("0", "reading.fcs", "50", 10, job)
	trace.AddFile(file)

	rule := &Rule{
		Name:  "flow",
		Ops:   []string{"Flow Cytometry 96 well"},
		Files: []FileFix{FileGeneratorFinder{}},
	}
	run(t, trace, nil, rule)

	if !file.GeneratedBy(match) {
		t.Fatalf("file generator = %v, want operation 10", file.Generator())
	}
}

func TestFileGeneratorFinderJobFallback(t *testing.T) {
	trace := domain.NewTrace("exp")
	first := newOp("10", "Flow Cytometry 96 well")
	second := newOp("11", "Flow Cytometry 96 well")
	trace.AddOperation(first)
	trace.AddOperation(second)
	job := domain.NewJob("20", []*domain.Operation{first, second}, "", "", "complete")
	file := domain.NewFile("0", "reading.fcs", "50", 10, job)
	trace.AddFile(file)

	rule := &Rule{
		Name:  "flow",
		Ops:   []string{"Flow Cytometry 96 well"},
		Files: []FileFix{FileGeneratorFinder{}},
	}
	run(t, trace, nil, rule)

	if gen := file.Generator(); gen == nil || !gen.IsJob() {
		t.Fatalf("ambiguous operations should promote the job, got %v", gen)
	}
	if !trace.HasJob("20") {
		t.Fatalf("promoted job must be registered in the trace")
	}
}

func TestBeadSourceBinder(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "Cytometer Bead Calibration")
	beads := domain.NewItem("100", domain.Sample{ID: "7", Name: "beads"}, domain.ObjectType{})
	trace.AddItem(beads)
	op.AddInput(&domain.Input{Name: "calibration beads", Item: beads})
	trace.AddOperation(op)
	job := domain.NewJob("20", []*domain.Operation{op}, "", "", "complete")
	trace.AddJob(job)
	file := domain.NewFile("0", "A01.fcs", "50", 10, job)
	trace.AddFile(file)

	plan := domain.NewPlan("1", "calibration", []*domain.Operation{op}, "done")
	plan.Attributes.Add(map[string]any{"bead_files": []string{"0"}})
	trace.AddPlan(plan)

	rule := &Rule{
		Name:  "beads",
		Ops:   []string{"Cytometer Bead Calibration"},
		Files: []FileFix{&BeadSourceBinder{Input: "calibration beads"}},
	}
	run(t, trace, nil, rule)

	if !file.GeneratedBy(op) {
		t.Fatalf("bead file generator = %v, want operation", file.Generator())
	}
	ids := file.SourceIDs()
	if len(ids) != 1 || ids[0] != "100" {
		t.Fatalf("bead file sources = %v, want [100]", ids)
	}
	if beads.Attributes.Get("standard") != "BEAD_FLUORESCENCE" {
		t.Fatalf("bead item should be tagged as a fluorescence standard")
	}
}

func TestFileSourcePruning(t *testing.T) {
	trace := domain.NewTrace("exp")
	keep := domain.NewItem("100", domain.Sample{ID: "7"}, domain.ObjectType{})
	drop := domain.NewItem("200", domain.Sample{ID: "8"}, domain.ObjectType{})
	trace.AddItem(keep)
	trace.AddItem(drop)
	file := domain.NewFile("0", "item_100_od.csv", "50", 10, nil)
	file.AddSource(keep)
	file.AddSource(drop)
	trace.AddFile(file)

	run(t, trace, nil)

	ids := file.SourceIDs()
	if len(ids) != 1 || ids[0] != "100" {
		t.Fatalf("pruned sources = %v, want [100]", ids)
	}
}

func TestCollectionSourceInference(t *testing.T) {
	trace := domain.NewTrace("exp")
	source := domain.NewCollection("200", domain.ObjectType{})
	trace.AddItem(source)
	sourcePart := domain.NewPart("200/A1", "200/A1", source)
	trace.AddItem(sourcePart)

	op := newOp("10", "Make Plate")
	trace.AddOperation(op)
	coll := domain.NewCollection("300", domain.ObjectType{})
	coll.SetGenerator(op)
	trace.AddItem(coll)
	part := domain.NewPart("300/A1", "300/A1", coll)
	part.AddSource(sourcePart)
	trace.AddItem(part)

	run(t, trace, nil)

	ids := coll.SourceIDs()
	if len(ids) != 1 || ids[0] != "200" {
		t.Fatalf("inferred collection sources = %v, want [200]", ids)
	}
}

func TestFilePrefixer(t *testing.T) {
	trace := domain.NewTrace("exp")
	file := domain.NewFile("0", "A01.fcs", "50", 10, nil)
	trace.AddFile(file)
	external := domain.NewExternalFile("1", "design.xml")
	trace.AddFile(external)

	run(t, trace, nil)

	if file.FileName() != "50-A01.fcs" {
		t.Fatalf("file name = %q, want upload-id prefix", file.FileName())
	}
	if external.FileName() != "design.xml" {
		t.Fatalf("external file must keep its name, got %q", external.FileName())
	}
}

func TestReplicateLayoutRouter(t *testing.T) {
	trace := domain.NewTrace("exp")

	seeding := newOp("10", "2. Resuspension and Outgrowth")
	seeding.AddInput(&domain.Parameter{Name: "Biological Replicates", Value: "2"})
	plate := domain.NewItem("50", domain.Sample{ID: "5"}, domain.ObjectType{})
	seeding.AddInput(&domain.Input{Name: "Yeast Plate", Item: plate})
	trace.AddOperation(seeding)

	source := domain.NewCollection("200", domain.ObjectType{})
	source.SetGenerator(seeding)
	trace.AddItem(source)
	sample := domain.Sample{ID: "7", Name: "strain-a"}
	sourcePart := domain.NewPart("200/A1", "200/A1", source)
	sourcePart.Sample = &sample
	trace.AddItem(sourcePart)

	synch := newOp("11", "3. Synchronize by OD")
	synch.AddInput(&domain.Parameter{Name: "Final OD", Value: `{"final_ODs":{[0.1,0.2]}}`})
	trace.AddOperation(synch)

	coll := domain.NewCollection("300", domain.ObjectType{})
	coll.SetGenerator(synch)
	coll.AddSource(source)
	trace.AddItem(coll)
	part := domain.NewPart("300/A3", "300/A3", coll)
	part.Sample = &sample
	trace.AddItem(part)

	rule := &Rule{
		Name: "synch",
		Ops:  []string{"3. Synchronize by OD"},
		Parts: []PartFix{ReplicateLayoutRouter{
			Replicates: "Biological Replicates",
			Plates:     "Yeast Plate",
			TargetOD:   "Final OD",
		}},
	}
	run(t, trace, nil, rule)

	ids := part.SourceIDs()
	if len(ids) != 1 || ids[0] != "200/A1" {
		t.Fatalf("replicate sources = %v, want [200/A1]", ids)
	}
	if part.Attributes.Get("od600") != 0.2 {
		t.Fatalf("od600 = %v, want 0.2", part.Attributes.Get("od600"))
	}
}

func TestCalibrationPlateResurrection(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "Plate Reader Measurement")
	op.AddInput(&domain.Parameter{Name: "Type of Measurement(s)", Value: "CAL_OD"})
	trace.AddOperation(op)

	plan := domain.NewPlan("1", "calibration", []*domain.Operation{op}, "done")
	plan.Attributes.Add(map[string]any{
		"Calibration_CAL_OD": map[string]any{"upload_file_name": "item_300_cal.csv"},
	})
	trace.AddPlan(plan)

	plate := domain.NewCollection("300", domain.ObjectType{})
	resolver := &stubResolver{trace: trace, items: map[string]domain.Entity{"300": plate}}

	calibration := &CalibrationPlate{
		KeyPrefix:   "Calibration_CAL_",
		Param:       "Type of Measurement(s)",
		ParamPrefix: "CAL_",
	}
	rule := &Rule{
		Name:       "plate-reader",
		Ops:        []string{"Plate Reader Measurement"},
		Plans:      []PlanFix{calibration},
		Operations: []OperationFix{calibration},
		Files:      []FileFix{calibration},
	}
	run(t, trace, resolver, rule)

	if !trace.HasItem("300") {
		t.Fatalf("calibration plate should be materialized")
	}
	if !plate.GeneratedBy(op) {
		t.Fatalf("calibration plate generator = %v, want the calibration run", plate.Generator())
	}
}

func TestProfileRule(t *testing.T) {
	trace := domain.NewTrace("exp")
	plan := domain.NewPlan("1", "study", nil, "done")
	trace.AddPlan(plan)

	run(t, trace, nil, ProfileRule("biofab", "yg"))

	if plan.Attributes.Get("lab") != "biofab" {
		t.Fatalf("lab attribute = %v", plan.Attributes.Get("lab"))
	}
	if plan.Attributes.Get("challenge_problem") != "YEAST_GATES" {
		t.Fatalf("challenge_problem = %v", plan.Attributes.Get("challenge_problem"))
	}
	if plan.Attributes.Get("experiment_reference") != "Yeast-Gates" {
		t.Fatalf("experiment_reference = %v", plan.Attributes.Get("experiment_reference"))
	}
}

func TestDefaultRulesOrder(t *testing.T) {
	rules := DefaultRules()
	if len(rules) == 0 {
		t.Fatalf("battery is empty")
	}
	index := make(map[string]int, len(rules))
	for i, rule := range rules {
		index[rule.Name] = i
	}
	// Media values written by early rules are read by the measurement rules.
	if index["synch-by-od"] > index["measure-od-gfp"] {
		t.Fatalf("synch-by-od must run before measure-od-gfp")
	}
	if index["resuspension-outgrowth"] > index["synch-by-od"] {
		t.Fatalf("resuspension-outgrowth must run before synch-by-od")
	}
}

func TestIGEMWellAttributes(t *testing.T) {
	trace := domain.NewTrace("exp")
	op := newOp("10", "2. Resuspension and Outgrowth")
	trace.AddOperation(op)

	coll := domain.NewCollection("300", domain.ObjectType{Name: "96 well plate"})
	coll.SetGenerator(op)
	coll.Attributes.Add(map[string]any{
		"cal_fluorescence": map[string]any{
			"uM_to_data": []any{10.0, 5.0, 2.5},
		},
	})
	trace.AddItem(coll)

	fluorescein := &domain.Sample{ID: "1", Name: "Fluorescein Sodium Salt"}
	ludox := &domain.Sample{ID: "2", Name: "LUDOX Stock"}
	water := &domain.Sample{ID: "3", Name: "Nuclease-free water"}

	dilution := domain.NewPart("300/A2", "300/A2", coll)
	dilution.Sample = fluorescein
	trace.AddItem(dilution)
	stray := domain.NewPart("300/E1", "300/E1", coll)
	stray.Sample = fluorescein
	trace.AddItem(stray)
	ludoxWell := domain.NewPart("300/E6", "300/E6", coll)
	ludoxWell.Sample = ludox
	trace.AddItem(ludoxWell)
	waterWell := domain.NewPart("300/F1", "300/F1", coll)
	waterWell.Sample = water
	trace.AddItem(waterWell)

	rule := &Rule{
		Name:  "outgrowth",
		Ops:   []string{"2. Resuspension and Outgrowth"},
		Parts: []PartFix{IGEMWellAttributes{}},
	}
	run(t, trace, nil, rule)

	if got := dilution.Attributes.Get("concentration"); got != "5:micromole" {
		t.Fatalf("fluorescein concentration = %v, want 5:micromole", got)
	}
	if got := dilution.Attributes.Get("volume"); got != "100:microliter" {
		t.Fatalf("fluorescein volume = %v, want 100:microliter", got)
	}
	if stray.Attributes.Has("concentration") || stray.Attributes.Has("volume") {
		t.Fatalf("fluorescein outside the calibration rows must not be tagged, got %v", stray.Attributes)
	}
	if got := ludoxWell.Attributes.Get("volume"); got != "200:microliter" {
		t.Fatalf("LUDOX volume = %v, want 200:microliter", got)
	}
	if got := waterWell.Attributes.Get("volume"); got != "100:microliter" {
		t.Fatalf("water volume = %v, want 100:microliter", got)
	}
}

func TestIGEMConcentrationMapOrder(t *testing.T) {
	series := concentrationSeries(map[string]any{
		"10":   []any{},
		"2.5":  []any{},
		"1.25": []any{},
		"5":    []any{},
	})
	want := []string{"1.25", "2.5", "5", "10"}
	if len(series) != len(want) {
		t.Fatalf("series = %v, want %v", series, want)
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("series = %v, want %v", series, want)
		}
	}
}

func colonyRule() *Rule {
	return &Rule{
		Name:  "outgrowth",
		Ops:   []string{"2. Resuspension and Outgrowth"},
		Parts: []PartFix{SourceColonyTagger{}},
	}
}

func colonyTrace() (*domain.Trace, *domain.Part) {
	trace := domain.NewTrace("exp")
	op := domain.NewOperation("10", domain.OperationType{ID: "t10", Category: "Workflow", Name: "2. Resuspension and Outgrowth"})
	trace.AddOperation(op)
	coll := domain.NewCollection("300", domain.ObjectType{Name: "96 well plate"})
	coll.SetGenerator(op)
	trace.AddItem(coll)
	part := domain.NewPart("300/B3", "300/B3", coll)
	trace.AddItem(part)
	return trace, part
}

func assertSourceColony(t *testing.T, part *domain.Part, plate, colony any) {
	t.Helper()
	got, ok := part.Attributes.Get("source_colony").(map[string]any)
	if !ok {
		t.Fatalf("source_colony = %v", part.Attributes.Get("source_colony"))
	}
	if got["yeast_plate"] != plate || got["colony"] != colony {
		t.Fatalf("source_colony = %v, want plate %v colony %v", got, plate, colony)
	}
}

func TestSourceColonyFromSourceAttribute(t *testing.T) {
	trace, part := colonyTrace()
	part.Attributes.Add(map[string]any{
		"source": []any{
			map[string]any{"id": 55.0, "source_colony": 3.0},
			map[string]any{"id": 56.0},
		},
	})

	run(t, trace, nil, colonyRule())

	assertSourceColony(t, part, 55.0, 3.0)
}

func TestSourceColonyAmbiguousSourceAttribute(t *testing.T) {
	trace, part := colonyTrace()
	part.Attributes.Add(map[string]any{
		"source": []any{
			map[string]any{"id": 55.0, "source_colony": 3.0},
			map[string]any{"id": 56.0, "source_colony": 4.0},
		},
	})

	run(t, trace, nil, colonyRule())

	if part.Attributes.Has("source_colony") {
		t.Fatalf("ambiguous source entries must not be tagged, got %v", part.Attributes.Get("source_colony"))
	}
}

func TestSourceColonyFromReference(t *testing.T) {
	trace, part := colonyTrace()
	part.Attributes.Add(map[string]any{"source_reference": "Yeast Plate/55/part/c3"})

	run(t, trace, nil, colonyRule())

	assertSourceColony(t, part, "55", "3")
}

func TestSourceColonyFromDestination(t *testing.T) {
	trace, part := colonyTrace()
	plate := domain.NewItem("400", domain.Sample{ID: "7", Name: "strain"}, domain.ObjectType{Name: "Yeast Plate"})
	plate.Attributes.Add(map[string]any{
		"destination": []any{
			map[string]any{"id": "300", "row": 1.0, "column": 2.0, "source_colony": 7.0},
			map[string]any{"id": "300", "row": 0.0, "column": 0.0, "source_colony": 1.0},
			map[string]any{"id": "999", "row": 1.0, "column": 2.0, "source_colony": 9.0},
		},
	})
	trace.AddItem(plate)
	part.AddSource(plate)

	run(t, trace, nil, colonyRule())

	assertSourceColony(t, part, "400", 7.0)
}

func TestDefaultRulesTagCalibrationWells(t *testing.T) {
	rules := make(map[string]*Rule)
	for _, rule := range DefaultRules() {
		rules[rule.Name] = rule
	}
	hasPartFix := func(name string, want PartFix) bool {
		rule := rules[name]
		if rule == nil {
			t.Fatalf("battery has no rule %q", name)
		}
		for _, fix := range rule.Parts {
			if fmt.Sprintf("%T", fix) == fmt.Sprintf("%T", want) {
				return true
			}
		}
		return false
	}
	if !hasPartFix("resuspension-outgrowth", IGEMWellAttributes{}) {
		t.Fatalf("resuspension-outgrowth must tag calibration wells")
	}
	if !hasPartFix("resuspension-outgrowth", SourceColonyTagger{}) {
		t.Fatalf("resuspension-outgrowth must tag source colonies")
	}
	if !hasPartFix("plate-reader-measurement", IGEMWellAttributes{}) {
		t.Fatalf("plate-reader-measurement must tag calibration wells")
	}
	if !hasPartFix("plate-reader-measurement", PassthroughRouter{}) {
		t.Fatalf("plate-reader-measurement must route same-well sources")
	}
}
