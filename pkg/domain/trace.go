package domain

import "sort"

// Trace is the provenance graph of one experiment: every activity and
// entity reconstructed from the upstream system, keyed by ID. All lookups
// are by string ID; iteration methods return elements in stable ID order so
// repairs, checks, and exports are deterministic.
type Trace struct {
	ExperimentID string
	Attributes   Attributes

	items      map[string]Entity
	files      map[string]FileEntity
	operations map[string]*Operation
	jobs       map[string]*Job
	plans      map[string]*Plan

	// consumers is the inverted input index: item ID to the operations
	// that take the item as an input.
	consumers map[string][]*Operation
}

// NewTrace constructs an empty trace for the given experiment.
func NewTrace(experimentID string) *Trace {
	return &Trace{
		ExperimentID: experimentID,
		Attributes:   Attributes{},
		items:        make(map[string]Entity),
		files:        make(map[string]FileEntity),
		operations:   make(map[string]*Operation),
		jobs:         make(map[string]*Job),
		plans:        make(map[string]*Plan),
		consumers:    make(map[string][]*Operation),
	}
}

// AddItem registers an item, collection, or part entity under its ID.
func (t *Trace) AddItem(entity Entity) {
	t.items[entity.EntityID()] = entity
}

// AddFile registers a file entity under its ID.
func (t *Trace) AddFile(file FileEntity) {
	t.files[file.EntityID()] = file
}

// AddOperation registers an operation activity under its ID.
func (t *Trace) AddOperation(op *Operation) {
	t.operations[op.ID] = op
}

// AddJob registers a job activity under its ID.
func (t *Trace) AddJob(job *Job) {
	t.jobs[job.ID] = job
}

// AddPlan registers a plan under its ID.
func (t *Trace) AddPlan(plan *Plan) {
	t.plans[plan.ID] = plan
}

// AddConsumer records that the operation takes the item with the given ID
// as an input.
func (t *Trace) AddConsumer(itemID string, op *Operation) {
	t.consumers[itemID] = append(t.consumers[itemID], op)
}

// HasItem reports whether an entity with the given ID is registered.
func (t *Trace) HasItem(id string) bool {
	_, ok := t.items[id]
	return id != "" && ok
}

// HasFile reports whether a file with the given ID is registered.
func (t *Trace) HasFile(id string) bool {
	_, ok := t.files[id]
	return id != "" && ok
}

// HasOperation reports whether an operation with the given ID is
// registered.
func (t *Trace) HasOperation(id string) bool {
	_, ok := t.operations[id]
	return id != "" && ok
}

// HasJob reports whether a job with the given ID is registered.
func (t *Trace) HasJob(id string) bool {
	_, ok := t.jobs[id]
	return id != "" && ok
}

// HasPlan reports whether a plan with the given ID is registered.
func (t *Trace) HasPlan(id string) bool {
	_, ok := t.plans[id]
	return id != "" && ok
}

// Item returns the entity with the given ID, or nil.
func (t *Trace) Item(id string) Entity {
	return t.items[id]
}

// File returns the file with the given ID, or nil.
func (t *Trace) File(id string) FileEntity {
	return t.files[id]
}

// Operation returns the operation with the given ID, or nil.
func (t *Trace) Operation(id string) *Operation {
	return t.operations[id]
}

// Job returns the job with the given ID, or nil.
func (t *Trace) Job(id string) *Job {
	return t.jobs[id]
}

// Plan returns the plan with the given ID, or nil.
func (t *Trace) Plan(id string) *Plan {
	return t.plans[id]
}

// Items returns the registered item entities in ID order, excluding
// collections and parts.
func (t *Trace) Items() []*Item {
	var out []*Item
	for _, id := range t.itemIDs() {
		if item, ok := t.items[id].(*Item); ok {
			out = append(out, item)
		}
	}
	return out
}

// Collections returns the registered collections in ID order.
func (t *Trace) Collections() []*Collection {
	var out []*Collection
	for _, id := range t.itemIDs() {
		if coll, ok := t.items[id].(*Collection); ok {
			out = append(out, coll)
		}
	}
	return out
}

// Parts returns the registered parts in ID order.
func (t *Trace) Parts() []*Part {
	var out []*Part
	for _, id := range t.itemIDs() {
		if part, ok := t.items[id].(*Part); ok {
			out = append(out, part)
		}
	}
	return out
}

// Entities returns every registered item-like entity in ID order.
func (t *Trace) Entities() []Entity {
	out := make([]Entity, 0, len(t.items))
	for _, id := range t.itemIDs() {
		out = append(out, t.items[id])
	}
	return out
}

// Files returns the registered files in ID order.
func (t *Trace) Files() []FileEntity {
	ids := make([]string, 0, len(t.files))
	for id := range t.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	out := make([]FileEntity, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.files[id])
	}
	return out
}

// FilesGeneratedBy returns the files whose generator is the given activity,
// in ID order.
func (t *Trace) FilesGeneratedBy(activity Activity) []FileEntity {
	var out []FileEntity
	for _, file := range t.Files() {
		if file.GeneratedBy(activity) {
			out = append(out, file)
		}
	}
	return out
}

// Operations returns the registered operations in ID order.
func (t *Trace) Operations() []*Operation {
	ids := make([]string, 0, len(t.operations))
	for id := range t.operations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	out := make([]*Operation, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.operations[id])
	}
	return out
}

// Jobs returns the registered jobs in ID order.
func (t *Trace) Jobs() []*Job {
	ids := make([]string, 0, len(t.jobs))
	for id := range t.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.jobs[id])
	}
	return out
}

// Plans returns the registered plans in ID order.
func (t *Trace) Plans() []*Plan {
	ids := make([]string, 0, len(t.plans))
	for id := range t.plans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	out := make([]*Plan, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.plans[id])
	}
	return out
}

// Consumers returns the operations that take the item with the given ID as
// an input, in registration order.
func (t *Trace) Consumers(itemID string) []*Operation {
	return t.consumers[itemID]
}

// Inputs returns the entities that are inputs to the experiment, in ID
// order.
func (t *Trace) Inputs() []Entity {
	var out []Entity
	for _, entity := range t.Entities() {
		if t.IsInput(entity) {
			out = append(out, entity)
		}
	}
	return out
}

// IsInput reports whether the entity is an input to the experiment: a
// registered non-part entity whose generator is outside the trace and none
// of whose sources are in the trace. Parts are never inputs; their
// collection is.
func (t *Trace) IsInput(entity Entity) bool {
	if entity.Kind() == KindPart {
		return false
	}
	if !t.HasItem(entity.EntityID()) {
		return false
	}
	if gen := entity.Generator(); gen != nil {
		if job, ok := gen.(*Job); ok {
			if t.HasJob(job.ID) {
				return false
			}
		} else if op, ok := gen.(*Operation); ok {
			if t.HasOperation(op.ID) {
				return false
			}
		}
	}
	for _, id := range entity.SourceIDs() {
		if t.HasItem(id) {
			return false
		}
	}
	return true
}

func (t *Trace) itemIDs() []string {
	ids := make([]string, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids
}
