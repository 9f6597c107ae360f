package domain

// Activity is a provenance activity that can generate entities: either a
// single operation or the job that executed a batch of operations.
type Activity interface {
	// ActivityID returns the namespaced activity identifier, "op_<id>" for
	// operations and "job_<id>" for jobs. The namespace keeps operation and
	// job IDs from colliding in file paths and exported documents.
	ActivityID() string
	// IsJob reports whether the activity is a job.
	IsJob() bool
}

// Argument is a value bound to an operation field: either a Parameter
// carrying a literal value or an Input referencing an item entity.
type Argument interface {
	// ArgName returns the operation field name the argument is bound to.
	ArgName() string
	// FieldID returns the upstream field value record ID.
	FieldID() string
	// IsItem reports whether the argument references an item entity.
	IsItem() bool
}

// Parameter is a literal-valued operation argument.
type Parameter struct {
	Name         string
	FieldValueID string
	Value        any
}

func (p *Parameter) ArgName() string { return p.Name }
func (p *Parameter) FieldID() string { return p.FieldValueID }
func (p *Parameter) IsItem() bool    { return false }

// Input is an operation argument that references an item or collection.
// RoutingID, when set, correlates inputs and outputs of the same operation
// that share a routing key.
type Input struct {
	Name         string
	FieldValueID string
	Item         Entity
	RoutingID    string
}

func (in *Input) ArgName() string { return in.Name }
func (in *Input) FieldID() string { return in.FieldValueID }
func (in *Input) IsItem() bool    { return true }

// ItemID returns the ID of the referenced entity.
func (in *Input) ItemID() string { return in.Item.EntityID() }

// Operation is a single protocol execution within a plan.
type Operation struct {
	ID         string
	Type       OperationType
	Job        *Job
	Plan       *Plan
	StartTime  string
	EndTime    string
	Attributes Attributes

	inputs  []Argument
	outputs []Argument
}

// NewOperation constructs an operation activity with no arguments.
func NewOperation(id string, opType OperationType) *Operation {
	return &Operation{ID: id, Type: opType, Attributes: Attributes{}}
}

func (op *Operation) ActivityID() string { return "op_" + op.ID }
func (op *Operation) IsJob() bool        { return false }

// AddInput appends an input-side argument, preserving insertion order.
func (op *Operation) AddInput(arg Argument) {
	op.inputs = append(op.inputs, arg)
}

// AddOutput appends an output-side argument, preserving insertion order.
func (op *Operation) AddOutput(arg Argument) {
	op.outputs = append(op.outputs, arg)
}

// Inputs returns all input arguments in insertion order.
func (op *Operation) Inputs() []Argument { return op.inputs }

// Outputs returns all output arguments in insertion order.
func (op *Operation) Outputs() []Argument { return op.outputs }

// NamedInputs returns the input arguments bound to the given field name.
func (op *Operation) NamedInputs(name string) []Argument {
	return filterNamed(op.inputs, name)
}

// NamedOutputs returns the output arguments bound to the given field name.
func (op *Operation) NamedOutputs(name string) []Argument {
	return filterNamed(op.outputs, name)
}

func filterNamed(args []Argument, name string) []Argument {
	var out []Argument
	for _, arg := range args {
		if arg.ArgName() == name {
			out = append(out, arg)
		}
	}
	return out
}

// InputItems returns the input arguments that reference entities.
func (op *Operation) InputItems() []*Input {
	var out []*Input
	for _, arg := range op.inputs {
		if in, ok := arg.(*Input); ok {
			out = append(out, in)
		}
	}
	return out
}

// OutputItems returns the output arguments that reference entities.
func (op *Operation) OutputItems() []*Input {
	var out []*Input
	for _, arg := range op.outputs {
		if in, ok := arg.(*Input); ok {
			out = append(out, in)
		}
	}
	return out
}

// HasInputItem reports whether the entity with the given ID appears as an
// input to the operation.
func (op *Operation) HasInputItem(id string) bool {
	for _, in := range op.InputItems() {
		if in.ItemID() == id {
			return true
		}
	}
	return false
}

// IsMeasurement reports whether the operation has been tagged as a
// measurement by a repair rule.
func (op *Operation) IsMeasurement() bool {
	v, ok := op.Attributes.Get("measurement_operation").(bool)
	return ok && v
}

// Job is the batch execution of one or more operations. The job, not the
// operation, is the activity that owns uploaded files.
type Job struct {
	ID         string
	Operations []*Operation
	StartTime  string
	EndTime    string
	Status     string
}

// NewJob constructs a job activity and links each operation back to it.
func NewJob(id string, operations []*Operation, start, end, status string) *Job {
	job := &Job{ID: id, Operations: operations, StartTime: start, EndTime: end, Status: status}
	for _, op := range operations {
		op.Job = job
	}
	return job
}

func (j *Job) ActivityID() string { return "job_" + j.ID }
func (j *Job) IsJob() bool        { return true }

// OperationType returns the protocol type of the job's operations, or the
// zero value when the job has none.
func (j *Job) OperationType() OperationType {
	if len(j.Operations) == 0 {
		return OperationType{}
	}
	return j.Operations[0].Type
}

// Plan is a workflow execution grouping operations. Plans scope traces but
// never generate entities themselves.
type Plan struct {
	ID         string
	Name       string
	Operations []*Operation
	Status     string
	Attributes Attributes
}

// NewPlan constructs a plan and links each operation back to it.
func NewPlan(id, name string, operations []*Operation, status string) *Plan {
	plan := &Plan{ID: id, Name: name, Operations: operations, Status: status, Attributes: Attributes{}}
	for _, op := range operations {
		op.Plan = plan
	}
	return plan
}
