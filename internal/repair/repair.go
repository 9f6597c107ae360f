// Package repair applies heuristic fixes to a provenance trace.
//
// The upstream system does not reliably record which entity derived from
// which, so after the graph factory builds the skeleton a battery of
// protocol-specific rules fills in missing generators, source edges, and
// attributes. Each rule targets one or more operation types and is composed
// from small reusable capability objects (routers, taggers, binders) run in
// order. Rules never fail: absence of expected structure is logged and the
// rule declines to act.
package repair

import (
	"context"
	"log/slog"

	"tracecore/internal/metrics"
	"tracecore/pkg/domain"
)

// Resolver materializes trace entities on demand. It bounds what a rule may
// ask of the graph factory driving the traversal.
type Resolver interface {
	// ResolveItem fetches and registers the item or collection with the
	// given ID, returning nil when the record cannot be fetched.
	ResolveItem(ctx context.Context, id string) domain.Entity
	// ResolveFile fetches and registers the file for the given upload ID,
	// returning nil when the upload cannot be placed in the trace.
	ResolveFile(ctx context.Context, uploadID string) domain.FileEntity
	// ResolveJobFile resolves the first upload of the given job into a file
	// entity, returning nil when the job has no uploads.
	ResolveJobFile(ctx context.Context, jobID string) domain.FileEntity
}

// Pass is the shared state one battery run holds while traversing a trace.
type Pass struct {
	Trace    *domain.Trace
	Resolver Resolver
	Log      *slog.Logger
	Rec      metrics.Recorder

	ctx context.Context
}

// Context returns the context the battery was started with.
func (p *Pass) Context() context.Context { return p.ctx }

// Capability interfaces, one per element kind a fix can act on. A capability
// type implements whichever of these apply to it.
type (
	// PlanFix acts on every plan of the trace.
	PlanFix interface {
		FixPlan(p *Pass, r *Rule, plan *domain.Plan)
	}
	// OperationFix acts on operations whose type matches the rule.
	OperationFix interface {
		FixOperation(p *Pass, r *Rule, op *domain.Operation)
	}
	// ItemFix acts on items whose generator matches the rule.
	ItemFix interface {
		FixItem(p *Pass, r *Rule, item *domain.Item)
	}
	// CollectionFix acts on collections whose generator matches the rule.
	CollectionFix interface {
		FixCollection(p *Pass, r *Rule, coll *domain.Collection)
	}
	// PartFix acts on parts whose generator matches the rule.
	PartFix interface {
		FixPart(p *Pass, r *Rule, part *domain.Part)
	}
	// FileFix acts on every file of the trace; file fixes self-filter
	// because file generators are discovered by the fixes themselves.
	FileFix interface {
		FixFile(p *Pass, r *Rule, file domain.FileEntity)
	}
)

// Rule is one protocol repair rule: a set of target operation-type names
// plus the ordered capabilities to run on each matching element.
type Rule struct {
	Name string
	Ops  []string

	Plans       []PlanFix
	Operations  []OperationFix
	Items       []ItemFix
	Collections []CollectionFix
	Parts       []PartFix
	Files       []FileFix

	pass *Pass
}

// Matches reports whether the activity is an operation of one of the rule's
// target types. Jobs never match; rules that need a job fall back promote it
// explicitly.
func (r *Rule) Matches(activity domain.Activity) bool {
	if activity == nil || activity.IsJob() {
		return false
	}
	op, ok := activity.(*domain.Operation)
	if !ok {
		return false
	}
	return r.MatchesOp(op)
}

// MatchesOp reports whether the operation's type name is one of the rule's
// targets.
func (r *Rule) MatchesOp(op *domain.Operation) bool {
	for _, name := range r.Ops {
		if op.Type.Name == name {
			return true
		}
	}
	return false
}

func (r *Rule) bind(pass *Pass) { r.pass = pass }

func (r *Rule) recordFixes(count int) {
	if count > 0 {
		r.pass.Rec.RecordRepair(r.Name)
	}
}

func (r *Rule) VisitTrace(*domain.Trace) {}

func (r *Rule) VisitPlan(plan *domain.Plan) {
	for _, fix := range r.Plans {
		fix.FixPlan(r.pass, r, plan)
	}
	r.recordFixes(len(r.Plans))
}

func (r *Rule) VisitOperation(op *domain.Operation) {
	if !r.MatchesOp(op) {
		return
	}
	for _, fix := range r.Operations {
		fix.FixOperation(r.pass, r, op)
	}
	r.recordFixes(len(r.Operations))
}

func (r *Rule) VisitJob(*domain.Job) {}

func (r *Rule) VisitItem(item *domain.Item) {
	if !r.Matches(item.Generator()) {
		return
	}
	for _, fix := range r.Items {
		fix.FixItem(r.pass, r, item)
	}
	r.recordFixes(len(r.Items))
}

func (r *Rule) VisitCollection(coll *domain.Collection) {
	if coll.Generator() == nil {
		r.pass.Log.Warn("collection has no generator, cannot fix sources", "collection", coll.ID)
		return
	}
	if !r.Matches(coll.Generator()) {
		return
	}
	for _, fix := range r.Collections {
		fix.FixCollection(r.pass, r, coll)
	}
	r.recordFixes(len(r.Collections))
}

// VisitPart first inherits the collection's generator onto a part that has
// none, then runs the part fixes when the generator matches. Inheritance
// happens for every rule so the first rule in the battery establishes it.
func (r *Rule) VisitPart(part *domain.Part) {
	if part.Collection.Generator() == nil {
		r.pass.Log.Warn("collection has no generator, cannot fix part", "part", part.ID)
		return
	}
	if part.Generator() == nil {
		part.SetGenerator(part.Collection.Generator())
	}
	if !r.Matches(part.Generator()) {
		return
	}
	for _, fix := range r.Parts {
		fix.FixPart(r.pass, r, part)
	}
	r.recordFixes(len(r.Parts))
}

func (r *Rule) VisitFile(file domain.FileEntity) {
	for _, fix := range r.Files {
		fix.FixFile(r.pass, r, file)
	}
	r.recordFixes(len(r.Files))
}

// Engine runs a rule battery followed by the structural patch pass.
type Engine struct {
	rules []*Rule
	log   *slog.Logger
	rec   metrics.Recorder
}

// NewEngine constructs an engine over the given rules. Rule order matters:
// later rules read attributes and sources set by earlier ones.
func NewEngine(log *slog.Logger, rules ...*Rule) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{rules: rules, log: log, rec: metrics.Nop{}}
}

// WithRecorder sets the metrics recorder and returns the engine.
func (e *Engine) WithRecorder(rec metrics.Recorder) *Engine {
	if rec != nil {
		e.rec = rec
	}
	return e
}

// Register appends a rule to the battery.
func (e *Engine) Register(rule *Rule) {
	e.rules = append(e.rules, rule)
}

// Run applies every rule to the trace in a single traversal, each element
// dispatched to all rules in registration order, then applies the patch
// pass: file source pruning, collection source inference from parts, and
// file name prefixing.
func (e *Engine) Run(ctx context.Context, trace *domain.Trace, resolver Resolver) {
	pass := &Pass{Trace: trace, Resolver: resolver, Log: e.log, Rec: e.rec, ctx: ctx}

	batch := domain.NewBatchVisitor()
	for _, rule := range e.rules {
		rule.bind(pass)
		batch.Add(rule)
	}
	trace.Apply(batch)

	trace.Apply(newPatch(pass))
}
