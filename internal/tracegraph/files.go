package tracegraph

import (
	"context"
	"strings"

	"tracecore/internal/lims"
	"tracecore/pkg/domain"
)

// Bead-file association keys. Uploads associated to a plan under these keys
// are calibration bead files, collected into the plan's "bead_files"
// attribute for downstream calibration.
const (
	beadUploadKeySuffix = "BEAD_UPLOAD"
	beadUploadKeyPrefix = "BEADS_"
)

// attachFiles discovers uploaded files from the metadata associations of
// plans, operations, jobs, items, collections, and parts. How a discovered
// file is linked depends on where it was found: operation associations set
// the operation as the file's generator, item-side associations add the
// item as a source, and job uploads merely ensure the file exists.
func (f *Factory) attachFiles(ctx context.Context) {
	for _, plan := range f.trace.Plans() {
		rec := f.planRecords[plan.ID]
		if rec == nil {
			continue
		}
		f.filesFrom(ctx, rec.DataAssociations, func(key string, file domain.FileEntity) {
			f.recordBeadFile(plan, key, file)
		})
	}
	for _, op := range f.trace.Operations() {
		rec := f.opRecords[op.ID]
		if rec == nil {
			continue
		}
		f.filesFrom(ctx, rec.DataAssociations, func(key string, file domain.FileEntity) {
			file.SetGenerator(op)
		})
	}
	for _, job := range f.trace.Jobs() {
		rec := f.jobRecords[job.ID]
		if rec == nil {
			continue
		}
		for _, upload := range rec.Uploads {
			f.ResolveFile(ctx, upload.ID.String())
		}
	}
	for _, entity := range f.trace.Entities() {
		rec := f.itemRecords[entity.EntityID()]
		if rec == nil {
			if coll, ok := f.collRecords[entity.EntityID()]; ok {
				f.attachEntityFiles(ctx, coll.DataAssociations, entity)
			}
			continue
		}
		f.attachEntityFiles(ctx, rec.DataAssociations, entity)
	}
}

func (f *Factory) attachEntityFiles(ctx context.Context, associations []lims.Association, entity domain.Entity) {
	f.filesFrom(ctx, associations, func(key string, file domain.FileEntity) {
		file.AddSource(entity)
	})
}

// filesFrom resolves every upload referenced by the associations and hands
// each resulting file to the sink together with its association key.
func (f *Factory) filesFrom(ctx context.Context, associations []lims.Association, sink func(key string, file domain.FileEntity)) {
	for _, a := range associations {
		uploadID := a.UploadID()
		if uploadID == "" {
			continue
		}
		file := f.ResolveFile(ctx, uploadID.String())
		if file != nil {
			sink(a.Key, file)
		}
	}
}

// recordBeadFile appends calibration bead files to the plan's bead_files
// attribute, deduplicated, in discovery order.
func (f *Factory) recordBeadFile(plan *domain.Plan, key string, file domain.FileEntity) {
	if !isBeadKey(key) {
		return
	}
	var ids []string
	if existing, ok := plan.Attributes.Get("bead_files").([]string); ok {
		ids = existing
	}
	for _, id := range ids {
		if id == file.EntityID() {
			return
		}
	}
	plan.Attributes.Add(map[string]any{"bead_files": append(ids, file.EntityID())})
}

func isBeadKey(key string) bool {
	return strings.HasSuffix(key, beadUploadKeySuffix) || strings.HasPrefix(key, beadUploadKeyPrefix)
}

// ResolveFile returns the file entity for an upload ID, creating it on
// first use. A file requires its owning job to already be in the trace;
// uploads whose job falls outside the plan are dropped with a logged
// message. Returns nil when the file cannot be created.
func (f *Factory) ResolveFile(ctx context.Context, uploadID string) domain.FileEntity {
	if file, ok := f.files[uploadID]; ok {
		return file
	}
	rec, err := f.client.Upload(ctx, uploadID)
	if err != nil {
		f.log.Error("upload not available", "upload", uploadID, "err", err)
		return nil
	}
	jobID := rec.JobID.String()
	if jobID == "" {
		f.log.Error("upload has no job", "upload", uploadID)
		return nil
	}
	if !f.trace.HasJob(jobID) {
		f.log.Debug("job of upload is not in plan", "upload", uploadID, "job", jobID)
		return nil
	}
	file := domain.NewFile(f.fileIDs.Next(), rec.Name, uploadID, rec.Size, f.trace.Job(jobID))
	f.trace.AddFile(file)
	f.files[uploadID] = file
	return file
}

// ResolveJobFile resolves the first upload of the given job into a file
// entity. Returns nil when the job record is unknown or has no uploads.
func (f *Factory) ResolveJobFile(ctx context.Context, jobID string) domain.FileEntity {
	rec := f.jobRecords[jobID]
	if rec == nil || len(rec.Uploads) == 0 {
		return nil
	}
	return f.ResolveFile(ctx, rec.Uploads[0].ID.String())
}

// ResolveExternalFile returns the external file entity with the given
// name, creating it on first use.
func (f *Factory) ResolveExternalFile(name string) *domain.ExternalFile {
	if file, ok := f.externals[name]; ok {
		return file
	}
	file := domain.NewExternalFile(f.fileIDs.Next(), name)
	f.trace.AddFile(file)
	f.externals[name] = file
	return file
}
