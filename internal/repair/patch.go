package repair

import (
	"tracecore/pkg/domain"
)

// newPatch builds the structural patch pass applied after the rule battery:
// announce, prune file sources, infer collection sources from parts, then
// prefix file names. Pruning must precede inference so inferred collection
// sources reflect the pruned graph, and prefixing runs last because the
// pruner matches on the original file names.
func newPatch(pass *Pass) domain.Visitor {
	return domain.NewBatchVisitor(
		&patchAnnounce{pass: pass},
		&fileSourcePruner{pass: pass},
		&collectionSourceInference{pass: pass},
		&filePrefixer{pass: pass},
	)
}

type patchAnnounce struct {
	domain.NoopVisitor
	pass *Pass
}

func (a *patchAnnounce) VisitPlan(plan *domain.Plan) {
	a.pass.Log.Info("applying structural patches to plan", "plan", plan.ID)
}

// fileSourcePruner reduces a file's sources to the item whose ID is
// embedded in the file name. Association sweeps can attach several
// candidate sources to one file; the filename is the authoritative signal.
type fileSourcePruner struct {
	domain.NoopVisitor
	pass *Pass
}

func (v *fileSourcePruner) VisitFile(file domain.FileEntity) {
	if len(file.Sources()) == 0 {
		return
	}
	itemID := fileItemID(file.FileName())
	if itemID == "" {
		return
	}

	found := false
	for _, id := range file.SourceIDs() {
		if id == itemID {
			found = true
		}
	}
	if !found {
		v.pass.Log.Error("item from filename is not a file source",
			"item", itemID, "name", file.FileName(),
			"sources", file.SourceIDs(), "file", file.EntityID())
	}
	if !v.pass.Trace.HasItem(itemID) {
		v.pass.Log.Error("item from filename does not exist in trace", "item", itemID)
		return
	}

	source := v.pass.Trace.Item(itemID)
	for _, id := range file.SourceIDs() {
		if id != itemID {
			file.RemoveSource(id)
		}
	}
	file.AddSource(source)
}

// collectionSourceInference lifts part-level sources onto a collection that
// has none: each part source contributes its collection (or itself when not
// a part) as a collection-level source.
type collectionSourceInference struct {
	domain.NoopVisitor
	pass *Pass
}

func (v *collectionSourceInference) VisitCollection(coll *domain.Collection) {
	if len(coll.Sources()) > 0 {
		return
	}
	if !coll.HasParts() {
		v.pass.Log.Debug("collection has no parts", "collection", coll.ID)
		return
	}

	added := false
	for _, part := range coll.Parts() {
		for _, source := range part.Sources() {
			if sourcePart, ok := source.(*domain.Part); ok {
				source = sourcePart.Collection
			}
			v.pass.Log.Info("using part routing to add collection source",
				"source", source.EntityID(), "collection", coll.ID)
			coll.AddSource(source)
			added = true
		}
	}
	if !added {
		v.pass.Log.Debug("no sources inferred for collection", "collection", coll.ID)
	}
}

// filePrefixer prefixes each file name with its upload ID so files sharing
// a base name can land in one destination directory. Calibration bead
// measurements, for example, are all named after the first well read.
type filePrefixer struct {
	domain.NoopVisitor
	pass *Pass
}

func (v *filePrefixer) VisitFile(file domain.FileEntity) {
	if file.External() {
		v.pass.Log.Debug("file is external, keeping name", "file", file.EntityID())
		return
	}
	upload, ok := file.(*domain.File)
	if !ok {
		return
	}
	file.Rename(upload.UploadID + "-" + file.FileName())
}
