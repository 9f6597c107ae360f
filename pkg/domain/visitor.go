package domain

// Visitor receives one callback per element kind during a trace traversal.
// Embed NoopVisitor to implement only the callbacks a pass cares about.
type Visitor interface {
	VisitTrace(*Trace)
	VisitPlan(*Plan)
	VisitOperation(*Operation)
	VisitJob(*Job)
	VisitItem(*Item)
	VisitCollection(*Collection)
	VisitPart(*Part)
	VisitFile(FileEntity)
}

// NoopVisitor implements Visitor with empty callbacks.
type NoopVisitor struct{}

func (NoopVisitor) VisitTrace(*Trace)           {}
func (NoopVisitor) VisitPlan(*Plan)             {}
func (NoopVisitor) VisitOperation(*Operation)   {}
func (NoopVisitor) VisitJob(*Job)               {}
func (NoopVisitor) VisitItem(*Item)             {}
func (NoopVisitor) VisitCollection(*Collection) {}
func (NoopVisitor) VisitPart(*Part)             {}
func (NoopVisitor) VisitFile(FileEntity)        {}

// Apply walks the whole trace with the visitor in a fixed order: the trace
// itself, plans, operations, jobs, items, collections, parts, then files.
// Each group is visited in ID order.
func (t *Trace) Apply(v Visitor) {
	v.VisitTrace(t)
	for _, plan := range t.Plans() {
		v.VisitPlan(plan)
	}
	for _, op := range t.Operations() {
		v.VisitOperation(op)
	}
	for _, job := range t.Jobs() {
		v.VisitJob(job)
	}
	for _, item := range t.Items() {
		v.VisitItem(item)
	}
	for _, coll := range t.Collections() {
		v.VisitCollection(coll)
	}
	for _, part := range t.Parts() {
		v.VisitPart(part)
	}
	for _, file := range t.Files() {
		v.VisitFile(file)
	}
}

// BatchVisitor fans each visited element out to every child visitor in
// registration order, so one traversal can drive several passes.
type BatchVisitor struct {
	children []Visitor
}

// NewBatchVisitor constructs a batch over the given visitors.
func NewBatchVisitor(visitors ...Visitor) *BatchVisitor {
	return &BatchVisitor{children: visitors}
}

// Add appends a visitor to the batch.
func (b *BatchVisitor) Add(v Visitor) {
	b.children = append(b.children, v)
}

func (b *BatchVisitor) VisitTrace(t *Trace) {
	for _, v := range b.children {
		v.VisitTrace(t)
	}
}

func (b *BatchVisitor) VisitPlan(p *Plan) {
	for _, v := range b.children {
		v.VisitPlan(p)
	}
}

func (b *BatchVisitor) VisitOperation(op *Operation) {
	for _, v := range b.children {
		v.VisitOperation(op)
	}
}

func (b *BatchVisitor) VisitJob(j *Job) {
	for _, v := range b.children {
		v.VisitJob(j)
	}
}

func (b *BatchVisitor) VisitItem(it *Item) {
	for _, v := range b.children {
		v.VisitItem(it)
	}
}

func (b *BatchVisitor) VisitCollection(c *Collection) {
	for _, v := range b.children {
		v.VisitCollection(c)
	}
}

func (b *BatchVisitor) VisitPart(p *Part) {
	for _, v := range b.children {
		v.VisitPart(p)
	}
}

func (b *BatchVisitor) VisitFile(f FileEntity) {
	for _, v := range b.children {
		v.VisitFile(f)
	}
}
