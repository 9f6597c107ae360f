package tracegraph

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"tracecore/pkg/domain"
	"tracecore/pkg/wells"
)

// Attribute keys under which collections carry per-well routing evidence.
// The first present key wins, in this order.
var routingMatrixKeys = []string{"routing_matrix", "routing_dilution_matrix", "part_data"}

// materializeParts fills in the parts of every collection that has none
// recorded, merging three evidence sources per well: the collection's
// sample layout, the routing matrix left by protocol code, and the upload
// matrix of per-well measurement files. Afterwards, parts that carry an
// explicit "source" attribute but no source edges get those edges
// resolved.
//
// The pass is idempotent: collections that already have parts are left
// alone, and re-running adds nothing new.
func (f *Factory) materializeParts(ctx context.Context) {
	for _, coll := range f.trace.Collections() {
		if coll.HasParts() {
			continue
		}
		f.partsFromSamples(ctx, coll)
		if routing := f.routingMatrix(coll); routing != nil {
			f.partsFromRouting(ctx, coll, routing)
		}
		if uploads := f.uploadMatrix(coll); uploads != nil {
			f.partsFromUploads(ctx, coll, uploads)
		}
	}
	for _, part := range f.trace.Parts() {
		f.partSourcesFromAttribute(ctx, part)
	}
}

// partsFromSamples creates a part for every well of the collection's
// sample layout that holds a sample.
func (f *Factory) partsFromSamples(ctx context.Context, coll *domain.Collection) {
	rec := f.collRecords[coll.ID]
	if rec == nil {
		return
	}
	for i, row := range rec.SampleMatrix {
		for j, sampleID := range row {
			sample, ok := f.ResolveSample(ctx, sampleID)
			if !ok {
				continue
			}
			part := f.ensurePart(coll, wells.Label(i, j))
			f.inheritGenerator(coll, part)
			if part.Sample == nil {
				f.log.Debug("adding sample to part", "sample", sample.ID, "part", part.ID)
				s := sample
				part.Sample = &s
			}
		}
	}
}

// partsFromRouting creates parts and derivation edges from the routing
// matrix. Each entry names the source of the well's contents; when the
// source disagrees with an already-assigned sample the conflicting edge is
// dropped with a logged error and the existing assignment stands.
func (f *Factory) partsFromRouting(ctx context.Context, coll *domain.Collection, matrix [][]any) {
	for i, row := range matrix {
		for j, cell := range row {
			entry, ok := cell.(map[string]any)
			if !ok || len(entry) == 0 {
				continue
			}
			sourceID := routingSourceID(entry)
			if sourceID == "" {
				continue
			}
			part := f.ensurePart(coll, wells.Label(i, j))
			f.inheritGenerator(coll, part)

			source := f.resolveRoutingSource(ctx, sourceID)
			if source != nil {
				sourceSample := sampleOf(source)
				if sourceSample != nil {
					if part.Sample == nil {
						f.log.Debug("adding sample to part", "sample", sourceSample.ID, "part", part.ID)
						part.Sample = sourceSample
					} else if sourceSample.ID != part.Sample.ID {
						f.log.Error("source sample does not match part sample",
							"source", sourceID, "source_sample", sourceSample.ID,
							"part", part.ID, "part_sample", part.Sample.ID)
						continue
					}
				}
				part.AddSource(source)
				if _, isItem := source.(*domain.Item); isItem {
					part.Attributes.Add(map[string]any{"source_reference": sourceID})
				}
			}

			if attrs, ok := entry["attributes"].(map[string]any); ok {
				part.Attributes.Add(attrs)
			}
		}
	}
}

// partsFromUploads creates parts for wells with per-well uploaded files
// and adds each part as the source of its file.
func (f *Factory) partsFromUploads(ctx context.Context, coll *domain.Collection, matrix [][]string) {
	for i, row := range matrix {
		for j, uploadID := range row {
			if n, err := strconv.Atoi(uploadID); err != nil || n <= 0 {
				continue
			}
			part := f.ensurePart(coll, wells.Label(i, j))
			f.inheritGenerator(coll, part)
			f.log.Debug("part has upload", "part", part.ID, "upload", uploadID)
			if file := f.ResolveFile(ctx, uploadID); file != nil {
				file.AddSource(part)
			}
		}
	}
}

// partSourcesFromAttribute resolves the explicit "source" attribute left on
// parts by protocol code into derivation edges. Parts that already have
// sources are left alone.
func (f *Factory) partSourcesFromAttribute(ctx context.Context, part *domain.Part) {
	if len(part.Sources()) > 0 {
		return
	}
	sourceList, ok := part.Attributes.Get("source").([]any)
	if !ok {
		return
	}
	f.log.Debug("adding sources for part", "part", part.ID)
	for _, raw := range sourceList {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := anyToString(entry["id"])
		var source domain.Entity
		if _, hasRow := entry["row"]; hasRow {
			row, rowOK := anyToInt(entry["row"])
			col, colOK := anyToInt(entry["column"])
			if rowOK && colOK {
				source = f.parts[partRef(id, wells.Label(row, col))]
			}
		} else {
			source = f.ResolveItem(ctx, id)
		}
		if source != nil {
			part.AddSource(source)
		} else {
			f.log.Debug("source for part not found", "part", part.ID, "source", id)
		}
	}
}

var numericSourcePattern = regexp.MustCompile(`^[0-9]+`)

// resolveRoutingSource resolves a routing source reference into an entity.
// Accepted forms are "item_id", "item_id/well", and
// "object_type/item_id/sample_id/well"; well labels in the legacy bracket
// form are normalized. Unrecognized references are logged and ignored.
func (f *Factory) resolveRoutingSource(ctx context.Context, sourceID string) domain.Entity {
	if f.trace.HasItem(sourceID) {
		return f.trace.Item(sourceID)
	}

	components := splitRef(sourceID)
	var itemID, well string
	switch {
	case numericSourcePattern.MatchString(sourceID):
		itemID = components[0]
		if len(components) == 2 {
			normalized, err := wells.NormalizeWell(components[1])
			if err != nil {
				f.log.Warn("malformed well in source reference", "source", sourceID)
				return nil
			}
			well = normalized
			if part, ok := f.parts[partRef(itemID, well)]; ok {
				return part
			}
		}
	case len(components) == 4:
		itemID = components[1]
		well = components[3]
	default:
		f.log.Warn("unrecognized source reference", "source", sourceID)
		return nil
	}

	source := f.ResolveItem(ctx, itemID)
	if source == nil {
		return nil
	}
	if well == "" {
		return source
	}
	coll, ok := source.(*domain.Collection)
	if !ok {
		f.log.Info("ignoring well of non-collection source", "well", well, "source", itemID)
		return source
	}

	part := f.ensurePart(coll, well)
	if part.Sample == nil {
		if rec := f.collRecords[coll.ID]; rec != nil {
			if row, col, err := wells.Coordinates(well); err == nil &&
				row < len(rec.SampleMatrix) && col < len(rec.SampleMatrix[row]) {
				if sample, ok := f.ResolveSample(ctx, rec.SampleMatrix[row][col]); ok {
					s := sample
					part.Sample = &s
				}
			}
		}
	}
	return part
}

// ensurePart returns the part of the collection at the well, creating a
// reference-identified part when none is recorded.
func (f *Factory) ensurePart(coll *domain.Collection, well string) *domain.Part {
	ref := partRef(coll.ID, well)
	if part, ok := f.parts[ref]; ok {
		return part
	}
	if part, ok := f.trace.Item(ref).(*domain.Part); ok {
		return part
	}
	part := domain.NewPart(ref, ref, coll)
	f.parts[ref] = part
	f.trace.AddItem(part)
	return part
}

func (f *Factory) inheritGenerator(coll *domain.Collection, part *domain.Part) {
	if coll.Generator() != nil && part.Generator() == nil {
		part.SetGenerator(coll.Generator())
	}
}

// routingMatrix extracts the routing matrix from the collection's
// attributes, trying each known key in order.
func (f *Factory) routingMatrix(coll *domain.Collection) [][]any {
	for _, key := range routingMatrixKeys {
		value := coll.Attributes.Get(key)
		if value == nil {
			continue
		}
		f.log.Debug("collection has routing evidence", "collection", coll.ID, "key", key)
		if key == "part_data" {
			return asMatrix(value)
		}
		wrapper, ok := value.(map[string]any)
		if !ok {
			continue
		}
		return asMatrix(wrapper["rows"])
	}
	return nil
}

// uploadMatrix extracts the per-well upload layout. Newer protocols store
// a matrix under "SAMPLE_UPLOADs"; older ones store a flat upload list
// under "SAMPLE_uploads", which is sorted by file name and folded into
// rows of twelve.
func (f *Factory) uploadMatrix(coll *domain.Collection) [][]string {
	if wrapper, ok := coll.Attributes.Get("SAMPLE_UPLOADs").(map[string]any); ok {
		var out [][]string
		for _, row := range asMatrix(wrapper["upload_matrix"]) {
			cells := make([]string, len(row))
			for j, cell := range row {
				cells[j] = anyToString(cell)
			}
			out = append(out, cells)
		}
		return out
	}

	uploads, ok := coll.Attributes.Get("SAMPLE_uploads").([]any)
	if !ok {
		return nil
	}
	type upload struct {
		name string
		id   string
	}
	list := make([]upload, 0, len(uploads))
	for _, raw := range uploads {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		list = append(list, upload{
			name: anyToString(entry["upload_file_name"]),
			id:   anyToString(entry["id"]),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })

	var matrix [][]string
	var row []string
	for _, u := range list {
		row = append(row, u.id)
		if len(row) == 12 {
			matrix = append(matrix, row)
			row = nil
		}
	}
	if len(row) > 0 {
		matrix = append(matrix, row)
	}
	return matrix
}
