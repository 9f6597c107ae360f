// Package export renders a completed provenance trace into the documents
// downstream consumers read: the JSON provenance document, an SBOL document
// for biological design tooling, and a per-well CSV plate summary.
package export

import (
	"encoding/json"
	"io"
	"path"

	"tracecore/pkg/domain"
)

// Document renders the trace as the provenance document consumed downstream.
// Map values marshal with sorted keys, so the output is deterministic.
//
// Files appear only when their generator was resolved; the file name is
// scoped under the generating activity's namespaced ID so files from
// different activities never collide in one directory.
func Document(trace *domain.Trace) map[string]any {
	doc := map[string]any{
		"plan_id":       trace.ExperimentID,
		"experiment_id": trace.ExperimentID,
		"plan_name":     planName(trace),
		"plan_inputs":   inputIDs(trace),
	}

	plans := make([]map[string]any, 0, len(trace.Plans()))
	for _, plan := range trace.Plans() {
		plans = append(plans, planDict(plan))
	}
	doc["plans"] = plans

	ops := make([]map[string]any, 0, len(trace.Operations()))
	for _, op := range trace.Operations() {
		ops = append(ops, operationDict(op))
	}
	doc["operations"] = ops

	jobs := make([]map[string]any, 0, len(trace.Jobs()))
	for _, job := range trace.Jobs() {
		jobs = append(jobs, jobDict(job))
	}
	doc["jobs"] = jobs

	var items []map[string]any
	for _, entity := range trace.Entities() {
		items = append(items, itemDict(entity))
	}
	doc["items"] = items

	files := make([]map[string]any, 0, len(trace.Files()))
	for _, file := range trace.Files() {
		if file.Generator() == nil {
			continue
		}
		files = append(files, fileDict(file))
	}
	doc["files"] = files

	if len(trace.Attributes) > 0 {
		doc["attributes"] = map[string]any(trace.Attributes)
	}
	return doc
}

// GeneratorDocument renders the slice of the trace attributable to a single
// activity: the activity itself and the files it generated. Upload runs write
// it as the per-directory provenance document next to the files.
func GeneratorDocument(trace *domain.Trace, activity domain.Activity) map[string]any {
	doc := map[string]any{
		"plan_id": trace.ExperimentID,
	}
	switch a := activity.(type) {
	case *domain.Job:
		doc["job"] = jobDict(a)
	case *domain.Operation:
		doc["operation"] = operationDict(a)
	}
	files := make([]map[string]any, 0)
	for _, file := range trace.FilesGeneratedBy(activity) {
		files = append(files, fileDict(file))
	}
	doc["files"] = files
	return doc
}

// WriteJSON writes the indented provenance document to w.
func WriteJSON(w io.Writer, trace *domain.Trace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document(trace))
}

func planName(trace *domain.Trace) string {
	plans := trace.Plans()
	if len(plans) == 0 {
		return ""
	}
	return plans[0].Name
}

func inputIDs(trace *domain.Trace) []string {
	inputs := trace.Inputs()
	ids := make([]string, 0, len(inputs))
	for _, entity := range inputs {
		ids = append(ids, entity.EntityID())
	}
	return ids
}

func planDict(plan *domain.Plan) map[string]any {
	ops := make([]string, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		ops = append(ops, op.ID)
	}
	d := map[string]any{
		"plan_id":    plan.ID,
		"name":       plan.Name,
		"operations": ops,
		"status":     plan.Status,
	}
	if len(plan.Attributes) > 0 {
		d["attributes"] = map[string]any(plan.Attributes)
	}
	return d
}

func operationDict(op *domain.Operation) map[string]any {
	d := map[string]any{
		"operation_id": op.ID,
		"operation_type": map[string]any{
			"operation_type_id": op.Type.ID,
			"category":          op.Type.Category,
			"name":              op.Type.Name,
		},
		"inputs":     argumentDicts(op.Inputs()),
		"outputs":    argumentDicts(op.Outputs()),
		"start_time": op.StartTime,
		"end_time":   op.EndTime,
	}
	if len(op.Attributes) > 0 {
		d["attributes"] = map[string]any(op.Attributes)
	}
	return d
}

func argumentDicts(args []domain.Argument) []map[string]any {
	out := make([]map[string]any, 0, len(args))
	for _, arg := range args {
		d := map[string]any{
			"name":           arg.ArgName(),
			"field_value_id": arg.FieldID(),
		}
		switch a := arg.(type) {
		case *domain.Parameter:
			d["value"] = a.Value
		case *domain.Input:
			d["item_id"] = a.ItemID()
			if a.RoutingID != "" {
				d["routing_id"] = a.RoutingID
			}
		}
		out = append(out, d)
	}
	return out
}

func jobDict(job *domain.Job) map[string]any {
	ops := make([]string, 0, len(job.Operations))
	for _, op := range job.Operations {
		ops = append(ops, op.ID)
	}
	return map[string]any{
		"job_id":     job.ID,
		"operations": ops,
		"status":     job.Status,
	}
}

// provenanceFields fills the generated_by and sources fields shared by all
// entity dicts.
func provenanceFields(d map[string]any, entity domain.Entity) {
	if gen := entity.Generator(); gen != nil {
		d["generated_by"] = generatedByDict(gen)
	}
	if ids := entity.SourceIDs(); len(ids) > 0 {
		d["sources"] = ids
	}
}

func generatedByDict(activity domain.Activity) map[string]any {
	if job, ok := activity.(*domain.Job); ok {
		return jobDict(job)
	}
	if op, ok := activity.(*domain.Operation); ok {
		return map[string]any{"operation_id": op.ID}
	}
	return map[string]any{}
}

func sampleDict(sample domain.Sample) map[string]any {
	return map[string]any{
		"sample_id":   sample.ID,
		"sample_name": sample.Name,
	}
}

func objectTypeDict(objectType domain.ObjectType) map[string]any {
	return map[string]any{
		"object_type_id":   objectType.ID,
		"object_type_name": objectType.Name,
	}
}

func itemDict(entity domain.Entity) map[string]any {
	d := map[string]any{
		"item_id": entity.EntityID(),
		"type":    string(entity.Kind()),
	}
	provenanceFields(d, entity)

	switch e := entity.(type) {
	case *domain.Item:
		d["sample"] = sampleDict(e.Sample)
		d["object_type"] = objectTypeDict(e.ObjectType)
		if len(e.Attributes) > 0 {
			d["attributes"] = map[string]any(e.Attributes)
		}
	case *domain.Collection:
		d["object_type"] = objectTypeDict(e.ObjectType)
		if len(e.Attributes) > 0 {
			d["attributes"] = map[string]any(e.Attributes)
		}
	case *domain.Part:
		d["well"] = e.Well()
		if e.Collection != nil {
			d["part_of"] = e.Collection.ID
		}
		if e.Sample != nil {
			d["sample"] = sampleDict(*e.Sample)
		}
		if e.ObjectType != nil {
			d["object_type"] = objectTypeDict(*e.ObjectType)
		}
		if len(e.Attributes) > 0 {
			d["attributes"] = map[string]any(e.Attributes)
		}
	default:
		if entity.Missing() {
			d["missing"] = true
		}
	}
	return d
}

func fileDict(file domain.FileEntity) map[string]any {
	d := map[string]any{
		"id":       file.EntityID(),
		"filename": path.Join(file.Generator().ActivityID(), file.FileName()),
	}
	if ft := file.FileType(); ft != "" {
		d["type"] = string(ft)
	}
	if f, ok := file.(*domain.File); ok {
		d["upload_id"] = f.UploadID
		d["size"] = f.Size
		if f.CheckSum != "" {
			d["sha256"] = f.CheckSum
		}
	}
	provenanceFields(d, file)
	return d
}
