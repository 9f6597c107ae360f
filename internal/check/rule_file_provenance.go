package check

import (
	"context"
	"fmt"

	"tracecore/pkg/domain"
)

// FileProvenanceRule checks every inventory file: a registered generator is
// required, and the file must derive from exactly one entity. Zero sources
// is an error; more than one is reported at warn severity since exporters
// pick the first. External files sit outside the inventory and are exempt.
func FileProvenanceRule() domain.Rule {
	return fileProvenanceRule{}
}

type fileProvenanceRule struct{}

func (fileProvenanceRule) Name() string { return "file_provenance" }

func (fileProvenanceRule) Evaluate(_ context.Context, trace *domain.Trace) (domain.Result, error) {
	res := domain.Result{}
	for _, file := range trace.Files() {
		if file.External() {
			continue
		}
		if file.Generator() == nil {
			res.Violations = append(res.Violations, fileViolation(file, domain.SeverityBlock,
				fmt.Sprintf("file %s (%s) has no generator", file.EntityID(), file.FileName())))
		} else {
			res.Violations = append(res.Violations, generatorViolations(trace, file, "file_provenance")...)
		}

		switch ids := file.SourceIDs(); len(ids) {
		case 0:
			res.Violations = append(res.Violations, fileViolation(file, domain.SeverityBlock,
				fmt.Sprintf("file %s (%s) has no sources", file.EntityID(), file.FileName())))
		case 1:
			res.Violations = append(res.Violations, sourceViolations(trace, file, "file_provenance")...)
		default:
			res.Violations = append(res.Violations, fileViolation(file, domain.SeverityWarn,
				fmt.Sprintf("file %s (%s) has more than one source", file.EntityID(), file.FileName())))
			res.Violations = append(res.Violations, sourceViolations(trace, file, "file_provenance")...)
		}
	}
	return res, nil
}

func fileViolation(file domain.FileEntity, severity domain.Severity, message string) domain.Violation {
	return domain.Violation{
		Rule:     "file_provenance",
		Severity: severity,
		Message:  message,
		Entity:   domain.KindFile,
		EntityID: file.EntityID(),
	}
}
