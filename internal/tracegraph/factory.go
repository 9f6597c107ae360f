// Package tracegraph builds provenance traces from inventory records.
//
// The factory walks plans in order, creating operation activities and
// resolving the items flowing through their fields. Referenced records are
// fetched lazily and memoized, so each remote record is fetched at most
// once per build. Missing records are logged and the dependent graph
// element is skipped; a build never aborts on a recoverable gap.
package tracegraph

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"tracecore/internal/lims"
	"tracecore/pkg/domain"
	"tracecore/pkg/wells"
)

// FileIDAllocator hands out sequential trace-local file IDs. File entities
// have no upstream identifier of their own; IDs are stable within a build
// because files are created in deterministic order.
type FileIDAllocator struct {
	next int
}

// Next returns the next unused file ID.
func (a *FileIDAllocator) Next() string {
	id := strconv.Itoa(a.next)
	a.next++
	return id
}

// Factory assembles a provenance trace from inventory records. It is not
// safe for concurrent use; a build mutates the single in-progress trace.
type Factory struct {
	trace   *domain.Trace
	client  lims.Client
	log     *slog.Logger
	fileIDs FileIDAllocator

	itemRecords map[string]*lims.Item
	collRecords map[string]*lims.Collection
	opRecords   map[string]*lims.Operation
	jobRecords  map[string]*lims.Job
	planRecords map[string]*lims.Plan

	files     map[string]domain.FileEntity // upload ID -> file entity
	externals map[string]*domain.ExternalFile
	parts     map[string]*domain.Part // part ref -> part entity
}

// NewFactory constructs a factory building a trace for the experiment.
func NewFactory(client lims.Client, experimentID string, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{
		trace:       domain.NewTrace(experimentID),
		client:      client,
		log:         log,
		itemRecords: make(map[string]*lims.Item),
		collRecords: make(map[string]*lims.Collection),
		opRecords:   make(map[string]*lims.Operation),
		jobRecords:  make(map[string]*lims.Job),
		planRecords: make(map[string]*lims.Plan),
		files:       make(map[string]domain.FileEntity),
		externals:   make(map[string]*domain.ExternalFile),
		parts:       make(map[string]*domain.Part),
	}
}

// Trace returns the trace being built.
func (f *Factory) Trace() *domain.Trace { return f.trace }

// Build fetches the given plans and assembles the trace: operations and
// their arguments first, then job resolution, part materialization, and
// file discovery. Any extra visitors run after the built-in passes, in
// order.
func (f *Factory) Build(ctx context.Context, planIDs []string, extra ...domain.Visitor) (*domain.Trace, error) {
	for _, id := range planIDs {
		plan, err := f.client.Plan(ctx, id)
		if err != nil {
			if errors.Is(err, lims.ErrNotFound) {
				f.log.Error("plan not found", "plan", id)
				continue
			}
			return nil, err
		}
		f.addPlan(ctx, plan)
	}
	f.resolveJobs(ctx)
	f.materializeParts(ctx)
	f.attachFiles(ctx)
	for _, v := range extra {
		f.trace.Apply(v)
	}
	return f.trace, nil
}

func (f *Factory) addPlan(ctx context.Context, rec *lims.Plan) {
	planID := rec.ID.String()
	f.planRecords[planID] = rec
	ops := make([]*domain.Operation, 0, len(rec.Operations))
	for i := range rec.Operations {
		opRec := &rec.Operations[i]
		op := f.addOperation(opRec)
		f.gatherIO(ctx, opRec, op)
		ops = append(ops, op)
	}
	plan := domain.NewPlan(planID, rec.Name, ops, rec.Status)
	plan.Attributes.Add(attributePayload(rec.DataAssociations))
	f.trace.AddPlan(plan)
}

func (f *Factory) addOperation(rec *lims.Operation) *domain.Operation {
	id := rec.ID.String()
	f.opRecords[id] = rec
	if f.trace.HasOperation(id) {
		return f.trace.Operation(id)
	}
	op := domain.NewOperation(id, domain.OperationType{
		ID:       rec.Type.ID.String(),
		Category: rec.Type.Category,
		Name:     rec.Type.Name,
	})
	op.Attributes.Add(attributePayload(rec.DataAssociations))
	f.trace.AddOperation(op)
	return op
}

// gatherIO classifies the operation's field values into arguments. Field
// values are sorted so inputs precede outputs, which lets the routing map
// accumulate input items before any output consults it.
func (f *Factory) gatherIO(ctx context.Context, rec *lims.Operation, op *domain.Operation) {
	fieldValues := make([]lims.FieldValue, len(rec.FieldValues))
	copy(fieldValues, rec.FieldValues)
	sort.SliceStable(fieldValues, func(i, j int) bool {
		return fieldValues[i].Role < fieldValues[j].Role
	})

	routing := make(map[string][]*domain.Input)
	for _, fv := range fieldValues {
		arg := f.createArgument(ctx, fv, op)
		if arg == nil {
			continue
		}
		if fv.IsInput() {
			op.AddInput(arg)
		}
		in, ok := arg.(*domain.Input)
		if !ok {
			continue
		}
		switch {
		case fv.IsInput():
			if in.RoutingID != "" {
				routing[in.RoutingID] = append(routing[in.RoutingID], in)
			}
			f.trace.AddConsumer(in.ItemID(), op)
		case fv.IsOutput():
			op.AddOutput(arg)
			if in.RoutingID != "" {
				matched, ok := routing[in.RoutingID]
				if !ok {
					f.log.Debug("unmatched routing", "routing", in.RoutingID, "operation", op.ID)
				}
				for _, inputArg := range matched {
					if in.ItemID() != inputArg.ItemID() {
						in.Item.AddSource(inputArg.Item)
					}
				}
			}
			in.Item.SetGenerator(op)
		}
	}
}

// createArgument builds the argument for one field value. A field value
// without a child item is a literal parameter; otherwise the referenced
// item is resolved, descending to a single part when the field addresses a
// well. Returns nil when the referenced record cannot be resolved.
func (f *Factory) createArgument(ctx context.Context, fv lims.FieldValue, op *domain.Operation) domain.Argument {
	if fv.ChildItemID == "" {
		return &domain.Parameter{Name: fv.Name, FieldValueID: fv.ID.String(), Value: fv.Value}
	}

	entity := f.ResolveItem(ctx, fv.ChildItemID.String())
	if entity == nil {
		f.log.Error("no item found for field value",
			"item", fv.ChildItemID.String(), "field", fv.Name, "operation", op.ID)
		return nil
	}

	if fv.Row != nil && fv.Column != nil {
		coll, ok := entity.(*domain.Collection)
		if !ok {
			f.log.Error("well-addressed field on non-collection",
				"item", fv.ChildItemID.String(), "field", fv.Name, "operation", op.ID)
			return nil
		}
		part := f.ResolvePart(coll, wells.Label(*fv.Row, *fv.Column))
		if part == nil {
			f.log.Error("no part found for field value",
				"collection", coll.ID, "row", *fv.Row, "column", *fv.Column, "field", fv.Name)
			return nil
		}
		entity = part
	}

	return &domain.Input{
		Name:         fv.Name,
		FieldValueID: fv.ID.String(),
		Item:         entity,
		RoutingID:    fv.RoutingID(),
	}
}

// ResolveItem returns the entity for an item ID, fetching and registering
// it on first use. Collections are fetched with their well-plate view and
// their recorded parts registered eagerly. Returns nil when the record is
// unavailable.
func (f *Factory) ResolveItem(ctx context.Context, id string) domain.Entity {
	if f.trace.HasItem(id) {
		return f.trace.Item(id)
	}
	rec, err := f.client.Item(ctx, id)
	if err != nil {
		f.log.Error("item not available", "item", id, "err", err)
		return nil
	}
	if rec.IsCollection() {
		collRec, err := f.client.Collection(ctx, id)
		if err != nil {
			f.log.Error("collection not available", "collection", id, "err", err)
			return nil
		}
		f.collRecords[id] = collRec
		coll := domain.NewCollection(id, domain.ObjectType{
			ID:   collRec.ObjectType.ID.String(),
			Name: collRec.ObjectType.Name,
		})
		coll.Attributes.Add(attributePayload(collRec.DataAssociations))
		f.trace.AddItem(coll)
		f.collectParts(collRec, coll)
		return coll
	}

	f.itemRecords[id] = rec
	sample := domain.Sample{}
	if rec.Sample != nil {
		sample = domain.Sample{ID: rec.Sample.ID.String(), Name: rec.Sample.Name}
	}
	item := domain.NewItem(id, sample, domain.ObjectType{
		ID:   rec.ObjectType.ID.String(),
		Name: rec.ObjectType.Name,
	})
	item.Attributes.Add(attributePayload(rec.DataAssociations))
	f.trace.AddItem(item)
	return item
}

// collectParts registers the recorded parts of a collection from its part
// associations.
func (f *Factory) collectParts(rec *lims.Collection, coll *domain.Collection) {
	for i := range rec.PartAssociations {
		pa := &rec.PartAssociations[i]
		partID := pa.PartID.String()
		if f.trace.HasItem(partID) {
			continue
		}
		if pa.CollectionID.String() != coll.ID {
			f.log.Error("part association does not match collection",
				"collection", coll.ID, "association", pa.CollectionID.String())
			continue
		}
		ref := partRef(coll.ID, wells.Label(pa.Row, pa.Column))
		part := domain.NewPart(partID, ref, coll)
		if pa.Part != nil {
			if pa.Part.Sample != nil {
				part.Sample = &domain.Sample{ID: pa.Part.Sample.ID.String(), Name: pa.Part.Sample.Name}
			}
			part.ObjectType = &domain.ObjectType{
				ID:   pa.Part.ObjectType.ID.String(),
				Name: pa.Part.ObjectType.Name,
			}
			part.Attributes.Add(attributePayload(pa.Part.DataAssociations))
			f.itemRecords[partID] = pa.Part
		}
		f.parts[ref] = part
		f.trace.AddItem(part)
	}
}

// ResolvePart returns the recorded part of a collection at a well, or nil
// when the collection has no part there. Parts invented by the
// materializer are registered under their reference string instead.
func (f *Factory) ResolvePart(coll *domain.Collection, well string) *domain.Part {
	ref := partRef(coll.ID, well)
	if part, ok := f.parts[ref]; ok {
		return part
	}
	if part, ok := f.trace.Item(ref).(*domain.Part); ok {
		return part
	}
	f.log.Warn("no recorded part for well", "collection", coll.ID, "well", well)
	return nil
}

// ResolveSample returns the sample for an ID. IDs that are empty or
// negative denote empty wells and resolve to nothing.
func (f *Factory) ResolveSample(ctx context.Context, id string) (domain.Sample, bool) {
	if id == "" {
		return domain.Sample{}, false
	}
	if n, err := strconv.Atoi(id); err == nil && n < 0 {
		return domain.Sample{}, false
	}
	rec, err := f.client.Sample(ctx, id)
	if err != nil {
		f.log.Error("sample not available", "sample", id, "err", err)
		return domain.Sample{}, false
	}
	return domain.Sample{ID: rec.ID.String(), Name: rec.Name}, true
}

// resolveJobs attaches the completed job to every operation. Operations
// already covered by a resolved job are skipped, so each job is built
// once.
func (f *Factory) resolveJobs(ctx context.Context) {
	visited := make(map[string]bool)
	for _, op := range f.trace.Operations() {
		if visited[op.ID] {
			continue
		}
		job := f.operationJob(ctx, op)
		if job == nil {
			continue
		}
		for _, jobOp := range job.Operations {
			visited[jobOp.ID] = true
		}
	}
}

// operationJob selects the completed job for an operation: the completed
// job association with the most recent update timestamp. Ties keep the
// first candidate and are logged.
func (f *Factory) operationJob(ctx context.Context, op *domain.Operation) *domain.Job {
	rec := f.opRecords[op.ID]
	if rec == nil || len(rec.Jobs) == 0 {
		f.log.Error("operation has no job associations", "operation", op.ID)
		return nil
	}
	var best *lims.Job
	for i := range rec.Jobs {
		candidate := &rec.Jobs[i]
		if !candidate.Completed() {
			continue
		}
		switch {
		case best == nil, candidate.UpdatedAt > best.UpdatedAt:
			best = candidate
		case candidate.UpdatedAt == best.UpdatedAt:
			f.log.Debug("tied job timestamps",
				"operation", op.ID, "kept", best.ID.String(), "dropped", candidate.ID.String())
		}
	}
	if best == nil {
		f.log.Error("operation has no completed jobs", "operation", op.ID)
		return nil
	}
	return f.resolveJob(ctx, best.ID.String())
}

// resolveJob builds the job activity for a job ID from the full job
// record, linking only the operations present in the trace. A job none of
// whose operations are in the trace is dropped.
func (f *Factory) resolveJob(ctx context.Context, id string) *domain.Job {
	if f.trace.HasJob(id) {
		return f.trace.Job(id)
	}
	rec, err := f.client.Job(ctx, id)
	if err != nil {
		f.log.Error("job not available", "job", id, "err", err)
		return nil
	}
	f.jobRecords[id] = rec

	var ops []*domain.Operation
	for _, opID := range rec.OperationIDs {
		if !f.trace.HasOperation(opID.String()) {
			continue
		}
		op := f.trace.Operation(opID.String())
		op.StartTime = rec.StartTime
		op.EndTime = rec.EndTime
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		f.log.Debug("job has no operations in plan", "job", id)
		return nil
	}
	job := domain.NewJob(id, ops, rec.StartTime, rec.EndTime, rec.Status)
	f.trace.AddJob(job)
	return job
}

func partRef(collectionID, well string) string {
	return collectionID + "/" + well
}

// attributePayload merges the plain attribute associations of a record.
func attributePayload(associations []lims.Association) map[string]any {
	merged := make(map[string]any)
	for _, a := range associations {
		for key, value := range a.Attribute() {
			merged[key] = value
		}
	}
	return merged
}
