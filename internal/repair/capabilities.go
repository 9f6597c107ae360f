package repair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tracecore/pkg/domain"
	"tracecore/pkg/wells"
)

// PassthroughRouter assumes the generating operation transfers well
// contents to the same well address. When a part has no source and its
// collection's sources include a collection with a part at the same well,
// that part becomes the source.
type PassthroughRouter struct{}

func (PassthroughRouter) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if len(part.Sources()) > 0 {
		return
	}
	well := part.Well()
	for _, source := range part.Collection.Sources() {
		coll, ok := source.(*domain.Collection)
		if !ok {
			continue
		}
		if sourcePart := coll.Part(well); sourcePart != nil {
			p.Log.Info("using collection routing to add part source",
				"source", sourcePart.ID, "part", part.ID)
			part.AddSource(sourcePart)
		} else {
			p.Log.Debug("routing failed, no source part",
				"collection", coll.ID, "well", well, "part", part.ID)
		}
	}
}

// TransferCoordRouter routes a part's source through a coordinate-remapping
// table attached to its collection: the table maps this well to the well of
// the source collection the contents were drawn from.
type TransferCoordRouter struct {
	// Key is the collection attribute holding the remapping matrix.
	Key string
}

func (t TransferCoordRouter) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if len(part.Sources()) > 0 {
		return
	}
	collSources := part.Collection.Sources()
	if len(collSources) == 0 {
		p.Log.Warn("collection has no sources", "collection", part.Collection.ID)
		return
	}
	coords := attributeMatrix(part.Collection.Attributes.Get(t.Key))
	if coords == nil {
		p.Log.Debug("collection has no transfer coordinates",
			"collection", part.Collection.ID, "key", t.Key)
		return
	}
	i, j, err := wells.Coordinates(part.Well())
	if err != nil || i >= len(coords) || j >= len(coords[i]) {
		return
	}
	sourceWell, _ := coords[i][j].(string)
	sourceID := collSources[0].EntityID() + "/" + sourceWell
	source := p.Trace.Item(sourceID)
	if source == nil {
		p.Log.Debug("transfer source does not exist", "source", sourceID, "part", part.ID)
		return
	}
	p.Log.Info("adding source from transfer coordinates", "source", sourceID, "part", part.ID)
	part.AddSource(source)
}

// QuadrantFoldRouter inverts a plate consolidation: a large plate is
// assembled from several smaller plates, each input carrying a transfer
// coordinate table whose first entry anchors the quadrant it fills. The
// source well folds the part's coordinates back into the input geometry.
type QuadrantFoldRouter struct {
	// Key is the input collection attribute holding its transfer table.
	Key string
}

func (q QuadrantFoldRouter) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if len(part.Sources()) > 0 {
		return
	}
	op, ok := part.Generator().(*domain.Operation)
	if !ok {
		return
	}
	i, j, err := wells.Coordinates(part.Well())
	if err != nil {
		return
	}
	anchor := wells.Label(i%2, 6*(j/6))

	var sourceColl domain.Entity
	for _, in := range op.InputItems() {
		coords := attributeMatrix(entityAttributes(in.Item).Get(q.Key))
		if len(coords) > 0 && len(coords[0]) > 0 && coords[0][0] == anchor {
			sourceColl = in.Item
		}
	}
	if sourceColl == nil {
		p.Log.Warn("no input matches quadrant anchor", "part", part.ID, "anchor", anchor)
		return
	}

	sourceID := sourceColl.EntityID() + "/" + wells.Label(i/2, j%6)
	if !p.Trace.HasItem(sourceID) {
		p.Log.Debug("folded source does not exist", "source", sourceID, "part", part.ID)
		return
	}
	source := p.Trace.Item(sourceID)
	p.Log.Info("adding folded source", "source", sourceID, "part", part.ID)
	part.AddSource(source)
}

// MeasurementTagger marks matching operations as measurements and attaches
// the instrument configuration.
type MeasurementTagger struct {
	Attributes map[string]any
}

func (m MeasurementTagger) FixOperation(p *Pass, r *Rule, op *domain.Operation) {
	op.Attributes.Add(map[string]any{"measurement_operation": true})
	op.Attributes.Add(m.Attributes)
}

// FileGeneratorFinder assigns a generator to files that lack one by
// narrowing the operations of the file's job: candidates must match the
// rule's operation types, and when the file has a single source, must take
// that source as input or have generated it. A single remaining candidate
// becomes the generator; several promote the whole job.
type FileGeneratorFinder struct{}

func (FileGeneratorFinder) FixFile(p *Pass, r *Rule, entity domain.FileEntity) {
	file, ok := entity.(*domain.File)
	if !ok || file.Generator() != nil || file.Job == nil {
		return
	}

	var candidates []*domain.Operation
	for _, op := range file.Job.Operations {
		if r.MatchesOp(op) {
			candidates = append(candidates, op)
		}
	}
	if len(candidates) == 0 {
		return
	}

	if source := singleFileSource(p, file); source != nil {
		if source.Generator() == nil {
			p.Log.Error("file source has no generator", "source", source.EntityID(), "file", file.EntityID())
			return
		}
		var narrowed []*domain.Operation
		for _, op := range candidates {
			if op.HasInputItem(source.EntityID()) || source.GeneratedBy(op) {
				narrowed = append(narrowed, op)
			}
		}
		if len(narrowed) == 0 {
			p.Log.Debug("no generator matches file source",
				"file", file.EntityID(), "source", source.EntityID())
			return
		}
		candidates = narrowed
	}

	if len(candidates) == 1 {
		p.Log.Info("adding operation as file generator",
			"operation", candidates[0].ID, "file", file.EntityID())
		file.SetGenerator(candidates[0])
		return
	}
	p.Trace.AddJob(file.Job)
	file.SetGenerator(file.Job)
	p.Log.Info("adding job as file generator", "job", file.Job.ID, "file", file.EntityID())
}

// singleFileSource returns the sole source of the file, resolved to its
// collection when the source is a part. Multiple sources are an error the
// pruning pass handles later.
func singleFileSource(p *Pass, file domain.FileEntity) domain.Entity {
	sources := file.Sources()
	if len(sources) == 0 {
		return nil
	}
	if len(sources) > 1 {
		p.Log.Error("file has more than one source",
			"file", file.EntityID(), "sources", file.SourceIDs())
		return nil
	}
	source := sources[0]
	if part, ok := source.(*domain.Part); ok {
		return part.Collection
	}
	return source
}

// jobAllocator hands out one matching operation per file within a job,
// assuming the job produced one file per operation.
type jobAllocator struct {
	jobOps map[string][]*domain.Operation
}

func (a *jobAllocator) next(p *Pass, r *Rule, file *domain.File) *domain.Operation {
	if a.jobOps == nil {
		a.jobOps = make(map[string][]*domain.Operation)
	}
	jobID := file.Job.ID
	if _, ok := a.jobOps[jobID]; !ok {
		var ops []*domain.Operation
		for _, op := range file.Job.Operations {
			if r.MatchesOp(op) {
				ops = append(ops, op)
			}
		}
		a.jobOps[jobID] = ops
	}
	ops := a.jobOps[jobID]
	if len(ops) == 0 {
		p.Log.Error("no generator found for file", "file", file.EntityID())
		return nil
	}
	op := ops[len(ops)-1]
	a.jobOps[jobID] = ops[:len(ops)-1]
	return op
}

// BeadSourceBinder connects calibration-bead measurement files to the bead
// input of their operation. Candidate files are listed in the bead-files
// plan attribute recorded while attaching uploads.
type BeadSourceBinder struct {
	// Input is the operation field naming the calibration bead item.
	Input string

	alloc jobAllocator
}

func (b *BeadSourceBinder) FixFile(p *Pass, r *Rule, entity domain.FileEntity) {
	file, ok := entity.(*domain.File)
	if !ok || len(file.Sources()) > 0 || file.Job == nil {
		return
	}
	if !beadFile(p.Trace, file.EntityID()) {
		return
	}

	op := b.alloc.next(p, r, file)
	if op == nil {
		return
	}
	file.SetGenerator(op)

	beadInputs := op.NamedInputs(b.Input)
	if len(beadInputs) == 0 {
		p.Log.Warn("operation has no bead input", "operation", op.ID, "input", b.Input)
		return
	}
	beadArg, ok := beadInputs[0].(*domain.Input)
	if !ok {
		return
	}
	file.AddSource(beadArg.Item)
	if item, ok := beadArg.Item.(*domain.Item); ok {
		item.Attributes.Add(map[string]any{"standard": "BEAD_FLUORESCENCE"})
	}
	p.Log.Info("adding beads as file source", "beads", beadArg.Item.EntityID(), "file", file.EntityID())
}

// beadFile reports whether the file ID appears in any plan's bead-files
// attribute.
func beadFile(trace *domain.Trace, id string) bool {
	for _, plan := range trace.Plans() {
		list, _ := plan.Attributes.Get("bead_files").([]string)
		for _, fileID := range list {
			if fileID == id {
				return true
			}
		}
	}
	return false
}

// PlateSourceBinder assigns a sourceless measurement file to the plate
// input of its generating operation, reallocating a specific operation when
// an earlier fix promoted the generator to the whole job.
type PlateSourceBinder struct {
	// Input is the operation field naming the measured plate.
	Input string

	alloc jobAllocator
}

func (b *PlateSourceBinder) FixFile(p *Pass, r *Rule, entity domain.FileEntity) {
	file, ok := entity.(*domain.File)
	if !ok || len(file.Sources()) > 0 {
		return
	}
	if file.Generator() == nil {
		p.Log.Debug("file has no generator", "file", file.EntityID())
		return
	}
	if file.Generator().IsJob() {
		op := b.alloc.next(p, r, file)
		if op == nil {
			return
		}
		file.SetGenerator(op)
	}

	op, ok := file.Generator().(*domain.Operation)
	if !ok || !r.MatchesOp(op) {
		return
	}
	plateInputs := op.NamedInputs(b.Input)
	if len(plateInputs) == 0 {
		return
	}
	if plateArg, ok := plateInputs[0].(*domain.Input); ok {
		file.AddSource(plateArg.Item)
		p.Log.Info("adding plate as file source",
			"plate", plateArg.Item.EntityID(), "file", file.EntityID())
	}
}

// NamedInputCollectionSource sets a collection's source to the item bound
// to a named input of its generating operation.
type NamedInputCollectionSource struct {
	Input string
}

func (n NamedInputCollectionSource) FixCollection(p *Pass, r *Rule, coll *domain.Collection) {
	if len(coll.Sources()) > 0 {
		return
	}
	op, ok := coll.Generator().(*domain.Operation)
	if !ok {
		return
	}
	args := op.NamedInputs(n.Input)
	if len(args) == 0 {
		p.Log.Warn("failed to find collection source", "collection", coll.ID, "input", n.Input)
		return
	}
	if len(args) > 1 {
		p.Log.Warn("multiple plate inputs", "operation", op.ID, "input", n.Input)
	}
	if arg, ok := args[0].(*domain.Input); ok {
		coll.AddSource(arg.Item)
		p.Log.Info("adding source for collection", "source", arg.Item.EntityID(), "collection", coll.ID)
	}
}

// ParameterGuard skips a collection fix when a named parameter of the
// generating operation has a value with the given prefix. Used to exclude
// calibration runs from sample-plate routing.
type ParameterGuard struct {
	Input  string
	Prefix string
	Fix    CollectionFix
}

func (g ParameterGuard) FixCollection(p *Pass, r *Rule, coll *domain.Collection) {
	op, ok := coll.Generator().(*domain.Operation)
	if !ok {
		return
	}
	if value, found := parameterValue(op, g.Input); found && strings.HasPrefix(value, g.Prefix) {
		return
	}
	g.Fix.FixCollection(p, r, coll)
}

// parameterValue returns the string value of a named parameter input.
func parameterValue(op *domain.Operation, name string) (string, bool) {
	args := op.NamedInputs(name)
	if len(args) == 0 {
		return "", false
	}
	param, ok := args[0].(*domain.Parameter)
	if !ok {
		return "", false
	}
	value, ok := param.Value.(string)
	return value, ok
}

// AllInputsCollectionSource adds every input item of the generating
// operation as a source of the collection.
type AllInputsCollectionSource struct{}

func (AllInputsCollectionSource) FixCollection(p *Pass, r *Rule, coll *domain.Collection) {
	op, ok := coll.Generator().(*domain.Operation)
	if !ok {
		return
	}
	for _, in := range op.InputItems() {
		coll.AddSource(in.Item)
	}
}

// AllInputsItemSource adds every input item of the generating operation as
// a source of the item.
type AllInputsItemSource struct{}

func (AllInputsItemSource) FixItem(p *Pass, r *Rule, item *domain.Item) {
	op, ok := item.Generator().(*domain.Operation)
	if !ok {
		return
	}
	for _, in := range op.InputItems() {
		item.AddSource(in.Item)
	}
}

// MediaLookup translates a media-type parameter of the generating operation
// into a media attribute naming the corresponding media sample.
type MediaLookup struct {
	// Input is the operation field carrying the media type.
	Input string
	// Samples maps media type names to media sample IDs.
	Samples map[string]string
}

func (m MediaLookup) FixItem(p *Pass, r *Rule, item *domain.Item) {
	m.fix(p, item, item.Attributes)
}

func (m MediaLookup) FixPart(p *Pass, r *Rule, part *domain.Part) {
	m.fix(p, part, part.Attributes)
}

func (m MediaLookup) fix(p *Pass, entity domain.Entity, attrs domain.Attributes) {
	op, ok := entity.Generator().(*domain.Operation)
	if !ok {
		return
	}
	media, found := parameterValue(op, m.Input)
	if !found {
		p.Log.Debug("operation has no media argument", "operation", op.ID)
		return
	}
	sampleID, ok := m.Samples[media]
	if !ok {
		p.Log.Error("media type not recognized", "media", media)
		return
	}
	attrs.Add(map[string]any{"media": map[string]any{"sample_id": sampleID}})
}

// AttributeCopier copies a named attribute from a source of the entity when
// the entity does not already carry it.
type AttributeCopier struct {
	Key string
}

func (c AttributeCopier) FixPart(p *Pass, r *Rule, part *domain.Part) {
	c.copy(p, part, part.Attributes)
}

func (c AttributeCopier) copy(p *Pass, entity domain.Entity, attrs domain.Attributes) {
	if attrs.Has(c.Key) {
		return
	}
	for _, source := range entity.Sources() {
		if value := entityAttributes(source).Get(c.Key); value != nil {
			attrs.Add(map[string]any{c.Key: value})
			return
		}
	}
}

// MatrixAttributes propagates collection attributes with a "_mat" suffix
// onto parts: the matrix entry at the part's coordinates lands on the part
// under the trimmed key.
type MatrixAttributes struct{}

func (MatrixAttributes) FixPart(p *Pass, r *Rule, part *domain.Part) {
	i, j, err := wells.Coordinates(part.Well())
	if err != nil {
		return
	}
	for key, value := range part.Collection.Attributes {
		if !strings.HasSuffix(key, "_mat") {
			continue
		}
		matrix := attributeMatrix(value)
		if matrix == nil || i >= len(matrix) || j >= len(matrix[i]) {
			continue
		}
		if entry := matrix[i][j]; entry != nil && entry != "" {
			part.Attributes.Add(map[string]any{strings.TrimSuffix(key, "_mat"): entry})
		}
	}
}

// SampleMatchedInputSource sets a part's source to the named operation
// input whose sample matches the part's sample, and lifts the source onto
// the collection as well.
type SampleMatchedInputSource struct {
	Input string
}

func (s SampleMatchedInputSource) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if len(part.Sources()) > 0 {
		return
	}
	op, ok := part.Generator().(*domain.Operation)
	if !ok {
		return
	}

	var source domain.Entity
	for _, arg := range op.NamedInputs(s.Input) {
		in, ok := arg.(*domain.Input)
		if !ok {
			continue
		}
		if part.Sample == nil {
			p.Log.Error("part has no sample", "part", part.ID)
		} else if sample := entitySample(in.Item); sample != nil && sample.ID == part.Sample.ID {
			source = in.Item
		}
	}
	if source == nil {
		return
	}

	part.AddSource(source)
	p.Log.Info("adding source for part", "source", source.EntityID(), "part", part.ID)

	collSource := source
	if sourcePart, ok := source.(*domain.Part); ok {
		collSource = sourcePart.Collection
	}
	part.Collection.AddSource(collSource)
}

// SourceUploadFiles binds files named by upload-ID attributes on a
// collection's source to the collection, adopting the collection's
// generator for files that have none.
type SourceUploadFiles struct {
	// Keys are the source attributes holding upload IDs.
	Keys []string
}

func (s SourceUploadFiles) FixCollection(p *Pass, r *Rule, coll *domain.Collection) {
	sources := coll.Sources()
	if len(sources) == 0 {
		return
	}
	attrs := entityAttributes(sources[0])
	for _, key := range s.Keys {
		uploadID := uploadIDString(attrs.Get(key))
		if uploadID == "" {
			continue
		}
		file := fileByUpload(p.Trace, uploadID)
		if file == nil || len(file.Sources()) > 0 {
			continue
		}
		file.AddSource(coll)
		if file.Generator() == nil {
			file.SetGenerator(coll.Generator())
		}
	}
}

// SourceFileGenerator assigns a file's generator from its single source
// when that source was generated by a matching operation and feeds no
// further operation, marking the source as a reference standard.
type SourceFileGenerator struct {
	// Standard is the value recorded in the source's standard attribute.
	Standard string
}

func (s SourceFileGenerator) FixFile(p *Pass, r *Rule, file domain.FileEntity) {
	if file.Generator() != nil {
		return
	}
	sources := file.Sources()
	if len(sources) != 1 {
		return
	}
	source := sources[0]
	gen := source.Generator()
	if gen == nil {
		p.Log.Error("file source has no generator", "source", source.EntityID(), "file", file.EntityID())
		return
	}
	if gen.IsJob() || !r.Matches(gen) {
		return
	}
	if len(p.Trace.Consumers(source.EntityID())) > 0 {
		return
	}
	file.SetGenerator(gen)
	entityAttributes(source).Add(map[string]any{"standard": s.Standard})
}

// TimeseriesFileBinder binds the file named by a collection attribute to
// that collection, adopting the collection's generator.
type TimeseriesFileBinder struct {
	// Key is the collection attribute holding the file name.
	Key string
}

func (t TimeseriesFileBinder) FixCollection(p *Pass, r *Rule, coll *domain.Collection) {
	name, _ := coll.Attributes.Get(t.Key).(string)
	if name == "" {
		return
	}
	for _, file := range p.Trace.Files() {
		if strings.HasPrefix(file.FileName(), name) {
			file.AddSource(coll)
			file.SetGenerator(coll.Generator())
			p.Log.Info("adding collection as timeseries file source",
				"collection", coll.ID, "file", file.EntityID())
			return
		}
	}
}

// DesignDocBinder attributes the first upload of a matching operation's job
// to the operation and records the upload as its design document.
type DesignDocBinder struct {
	// Key is the operation attribute recording the upload ID.
	Key string
}

func (d DesignDocBinder) FixOperation(p *Pass, r *Rule, op *domain.Operation) {
	if op.Job == nil {
		return
	}
	file := p.Resolver.ResolveJobFile(p.Context(), op.Job.ID)
	if file == nil {
		p.Log.Warn("job has no uploads", "job", op.Job.ID, "operation", op.ID)
		return
	}
	file.SetGenerator(op)
	if doc, ok := file.(*domain.File); ok {
		op.Attributes.Add(map[string]any{d.Key: doc.UploadID})
	}
}

// ReplicateLayoutRouter routes part sources through a replicate layout: the
// plate was seeded with replicates x plates sample wells followed by
// control wells, each replicate block re-measured at one of the target
// densities named by an operation parameter.
type ReplicateLayoutRouter struct {
	// Replicates and Plates name inputs of the source collection's
	// generator; TargetOD names the parameter of this part's generator
	// carrying the target density list.
	Replicates string
	Plates     string
	TargetOD   string
}

var targetODPattern = regexp.MustCompile(
	`\{?"?final_ODs?"?:\{?(\[(?:(?:\d+(?:\.\d*)?|\.\d+),)*(?:\d+(?:\.\d*)?|\.\d+)\])\}`)

func (rt ReplicateLayoutRouter) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if len(part.Sources()) > 0 {
		return
	}
	collSources := part.Collection.Sources()
	if len(collSources) > 1 {
		p.Log.Warn("collection for part has more than one source", "part", part.ID)
		return
	}
	if len(collSources) == 0 {
		return
	}
	collSource, ok := collSources[0].(*domain.Collection)
	if !ok {
		return
	}
	sourceGen, ok := collSource.Generator().(*domain.Operation)
	if !ok {
		p.Log.Warn("collection source has no operation generator", "source", collSource.ID)
		return
	}

	// Sytox wildtype controls measure the first sample well.
	if part.Well() == "H7" || part.Well() == "H8" {
		source := collSource.Part("A1")
		if source == nil {
			return
		}
		p.Log.Warn("routing wildtype control to first well", "part", part.ID, "source", source.ID)
		part.AddSource(source)
		return
	}

	gen, ok := part.Generator().(*domain.Operation)
	if !ok {
		return
	}
	repValue, repOK := parameterValue(sourceGen, rt.Replicates)
	plateArgs := sourceGen.NamedInputs(rt.Plates)
	odValue, odOK := parameterValue(gen, rt.TargetOD)
	if !repOK || len(plateArgs) == 0 || !odOK {
		p.Log.Warn("unable to compute replicate layout", "source", collSource.ID)
		return
	}
	replicates, err := strconv.Atoi(repValue)
	if err != nil {
		return
	}
	sampleParts := replicates * len(plateArgs)

	match := targetODPattern.FindStringSubmatch(odValue)
	if match == nil {
		p.Log.Warn("unable to parse target densities", "operation", gen.ID)
		return
	}
	var odList []float64
	if err := json.Unmarshal([]byte(match[1]), &odList); err != nil {
		return
	}

	i, j, err := wells.Coordinates(part.Well())
	if err != nil {
		return
	}
	abs := i*12 + j

	var ref string
	if abs < sampleParts*len(odList) {
		absSource := abs % sampleParts
		ref = wells.Label(absSource/12, absSource%12)
		if !part.Attributes.Has("od600") {
			part.Attributes.Add(map[string]any{"od600": odList[abs/sampleParts]})
		}
	} else {
		// Controls follow the sample wells at their own address.
		ref = part.Well()
	}

	sourceID := collSource.ID + "/" + ref
	source := p.Trace.Item(sourceID)
	if source == nil {
		p.Log.Warn("computed source does not exist", "source", sourceID, "part", part.ID)
		return
	}
	if sample := entitySample(source); sample != nil && part.Sample != nil && sample.ID != part.Sample.ID {
		p.Log.Error("sample mismatch between computed source and part",
			"source", sourceID, "source_sample", sample.ID,
			"part", part.ID, "part_sample", part.Sample.ID)
		return
	}
	part.AddSource(source)
	p.Log.Info("adding source for part", "source", sourceID, "part", part.ID)
}

// IGEMWellAttributes tags the wells of an IGEM calibration plate with the
// concentration and volume the protocol pipettes into them. Fluorescein
// wells take the micromole concentration for their column from the
// collection's cal_fluorescence table plus a fixed 100 microliter volume;
// LUDOX and water wells take a column-derived volume.
type IGEMWellAttributes struct{}

func (IGEMWellAttributes) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if part.Sample == nil {
		p.Log.Debug("part has no sample", "part", part.ID)
		return
	}
	row, col, err := wells.Coordinates(part.Well())
	if err != nil {
		return
	}
	switch part.Sample.Name {
	case "Fluorescein Sodium Salt":
		if row > 3 {
			p.Log.Error("found fluorescein below row 3", "part", part.ID, "row", row)
			return
		}
		addFluorescenceWell(p, part, col)
	case "LUDOX Stock":
		if row != 4 {
			p.Log.Error("found LUDOX outside row 4", "part", part.ID, "row", row)
		}
		addVolumeWell(part, col)
	case "Nuclease-free water":
		if row != 5 {
			p.Log.Error("found nuclease-free water outside row 5", "part", part.ID, "row", row)
		}
		addVolumeWell(part, col)
	}
}

func addFluorescenceWell(p *Pass, part *domain.Part, col int) {
	fluorescence, ok := part.Collection.Attributes.Get("cal_fluorescence").(map[string]any)
	if !ok {
		p.Log.Error("collection is missing the cal_fluorescence attribute",
			"collection", part.Collection.ID)
		return
	}
	series := concentrationSeries(fluorescence["uM_to_data"])
	if col >= len(series) {
		p.Log.Error("cal_fluorescence has no entry for column",
			"collection", part.Collection.ID, "column", col)
		return
	}
	part.Attributes.Add(map[string]any{
		"concentration": series[col] + ":micromole",
		"volume":        "100:microliter",
	})
}

// addVolumeWell records the dilution volume for a LUDOX or water well:
// 100 microliters, stepping up by 100 every four columns.
func addVolumeWell(part *domain.Part, col int) {
	part.Attributes.Add(map[string]any{
		"volume": strconv.Itoa(col/4*100+100) + ":microliter",
	})
}

// concentrationSeries flattens a uM_to_data table into micromole values in
// ascending concentration order. The table arrives either as a list of
// values or as a concentration-to-reading map.
func concentrationSeries(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			out = append(out, fmt.Sprintf("%v", entry))
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.ParseFloat(keys[i], 64)
			b, errB := strconv.ParseFloat(keys[j], 64)
			if errA != nil || errB != nil {
				return keys[i] < keys[j]
			}
			return a < b
		})
		return keys
	}
	return nil
}

// SourceColonyTagger records which colony of which yeast plate a well was
// picked from under the source_colony attribute. Newer protocol versions
// write a source attribute on the part, older ones a source_reference
// path; failing both, the sole source item's destination table is
// consulted at the part's coordinates.
type SourceColonyTagger struct{}

func (SourceColonyTagger) FixPart(p *Pass, r *Rule, part *domain.Part) {
	if entries, ok := part.Attributes.Get("source").([]any); ok && len(entries) > 0 {
		colonyFromSource(p, part, entries)
		return
	}
	if ref, ok := part.Attributes.Get("source_reference").(string); ok &&
		strings.HasPrefix(ref, "Yeast Plate") {
		colonyFromReference(part, ref)
		return
	}
	colonyFromDestination(p, part)
}

func colonyFromSource(p *Pass, part *domain.Part, entries []any) {
	var matches []map[string]any
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if _, found := obj["source_colony"]; found {
			matches = append(matches, obj)
		}
	}
	if len(matches) != 1 {
		p.Log.Error("part does not have exactly one source colony",
			"part", part.ID, "count", len(matches))
		return
	}
	part.Attributes.Add(map[string]any{
		"source_colony": map[string]any{
			"yeast_plate": matches[0]["id"],
			"colony":      matches[0]["source_colony"],
		},
	})
}

// colonyFromReference parses the legacy reference format
// "Yeast Plate/<plate-id>/<section>/c<colony>".
func colonyFromReference(part *domain.Part, ref string) {
	components := strings.Split(ref, "/")
	if len(components) != 4 {
		return
	}
	colony := components[3]
	if colony != "" {
		colony = colony[1:]
	}
	part.Attributes.Add(map[string]any{
		"source_colony": map[string]any{
			"yeast_plate": components[1],
			"colony":      colony,
		},
	})
}

func colonyFromDestination(p *Pass, part *domain.Part) {
	sources := part.Sources()
	if len(sources) != 1 {
		p.Log.Debug("part needs exactly one source to locate a colony",
			"part", part.ID, "sources", len(sources))
		return
	}
	source := sources[0]
	entries, ok := entityAttributes(source).Get("destination").([]any)
	if !ok {
		return
	}
	row, col, err := wells.Coordinates(part.Well())
	if err != nil {
		return
	}
	var matches []map[string]any
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if destinationMatches(obj, part.Collection.ID, row, col) {
			matches = append(matches, obj)
		}
	}
	if len(matches) != 1 {
		p.Log.Error("destination entries do not identify a single colony",
			"part", part.ID, "matches", len(matches))
		return
	}
	part.Attributes.Add(map[string]any{
		"source_colony": map[string]any{
			"yeast_plate": source.EntityID(),
			"colony":      matches[0]["source_colony"],
		},
	})
}

func destinationMatches(obj map[string]any, collectionID string, row, col int) bool {
	if fmt.Sprintf("%v", obj["id"]) != collectionID {
		return false
	}
	i, okRow := attributeInt(obj["row"])
	j, okCol := attributeInt(obj["column"])
	return okRow && okCol && i == row && j == col
}

// attributeInt coerces a decoded JSON attribute value into an int.
func attributeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// entityAttributes returns the attribute bag of an entity, or an empty one
// for entities without attributes.
func entityAttributes(entity domain.Entity) domain.Attributes {
	switch e := entity.(type) {
	case *domain.Item:
		return e.Attributes
	case *domain.Collection:
		return e.Attributes
	case *domain.Part:
		return e.Attributes
	}
	return domain.Attributes{}
}

// entitySample returns the sample of an item or part, or nil.
func entitySample(entity domain.Entity) *domain.Sample {
	switch e := entity.(type) {
	case *domain.Item:
		if e.Sample.ID == "" {
			return nil
		}
		s := e.Sample
		return &s
	case *domain.Part:
		return e.Sample
	}
	return nil
}

// attributeMatrix coerces a decoded JSON attribute into a matrix.
func attributeMatrix(value any) [][]any {
	rows, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.([]any)
		if !ok {
			return nil
		}
		out = append(out, row)
	}
	return out
}

// uploadIDString renders an attribute value as an upload ID.
func uploadIDString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// fileByUpload returns the trace file with the given upload ID, or nil.
func fileByUpload(trace *domain.Trace, uploadID string) domain.FileEntity {
	for _, file := range trace.Files() {
		if f, ok := file.(*domain.File); ok && f.UploadID == uploadID {
			return f
		}
	}
	return nil
}
