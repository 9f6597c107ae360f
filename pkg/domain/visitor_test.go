package domain

import (
	"reflect"
	"testing"
)

type recordingVisitor struct {
	NoopVisitor
	events []string
}

func (r *recordingVisitor) VisitTrace(t *Trace)           { r.events = append(r.events, "trace:"+t.ExperimentID) }
func (r *recordingVisitor) VisitPlan(p *Plan)             { r.events = append(r.events, "plan:"+p.ID) }
func (r *recordingVisitor) VisitOperation(op *Operation)  { r.events = append(r.events, "op:"+op.ID) }
func (r *recordingVisitor) VisitJob(j *Job)               { r.events = append(r.events, "job:"+j.ID) }
func (r *recordingVisitor) VisitItem(it *Item)            { r.events = append(r.events, "item:"+it.ID) }
func (r *recordingVisitor) VisitCollection(c *Collection) { r.events = append(r.events, "coll:"+c.ID) }
func (r *recordingVisitor) VisitPart(p *Part)             { r.events = append(r.events, "part:"+p.Ref) }
func (r *recordingVisitor) VisitFile(f FileEntity)        { r.events = append(r.events, "file:"+f.EntityID()) }

func TestApplyTraversalOrder(t *testing.T) {
	trace := NewTrace("exp")
	op := NewOperation("1", OperationType{Name: "Dilute"})
	job := NewJob("2", []*Operation{op}, "", "", "complete")
	plan := NewPlan("3", "p", []*Operation{op}, "done")
	trace.AddOperation(op)
	trace.AddJob(job)
	trace.AddPlan(plan)
	trace.AddItem(NewItem("10", Sample{}, ObjectType{}))
	coll := NewCollection("20", ObjectType{})
	trace.AddItem(coll)
	trace.AddItem(NewPart("20/A1", "20/A1", coll))
	trace.AddFile(NewFile("0", "f.csv", "9", 1, job))

	rec := &recordingVisitor{}
	trace.Apply(rec)
	want := []string{
		"trace:exp", "plan:3", "op:1", "job:2",
		"item:10", "coll:20", "part:20/A1", "file:0",
	}
	if !reflect.DeepEqual(rec.events, want) {
		t.Fatalf("traversal order = %v, want %v", rec.events, want)
	}
}

func TestBatchVisitorFansOutInOrder(t *testing.T) {
	first := &recordingVisitor{}
	second := &recordingVisitor{}
	batch := NewBatchVisitor(first)
	batch.Add(second)

	trace := NewTrace("exp")
	trace.AddItem(NewItem("1", Sample{}, ObjectType{}))
	trace.Apply(batch)

	want := []string{"trace:exp", "item:1"}
	if !reflect.DeepEqual(first.events, want) {
		t.Fatalf("first visitor events = %v, want %v", first.events, want)
	}
	if !reflect.DeepEqual(second.events, want) {
		t.Fatalf("second visitor events = %v, want %v", second.events, want)
	}
}

func TestNoopVisitorSatisfiesInterface(t *testing.T) {
	var v Visitor = NoopVisitor{}
	trace := NewTrace("exp")
	trace.Apply(v)
}
