package check

import (
	"context"
	"fmt"

	"tracecore/pkg/domain"
)

// PartLineageRule checks parts outside the stop list. Parts are held to a
// looser standard than standalone items: a generator is required only when
// the owning collection has one, and a part with no sources is only
// suspicious (warn severity) when the collection records sources of its own,
// since repairs routinely resolve derivation at the collection level only.
func PartLineageRule(stop StopList) domain.Rule {
	return partLineageRule{stop: stop}
}

type partLineageRule struct {
	stop StopList
}

func (partLineageRule) Name() string { return "part_lineage" }

func (r partLineageRule) Evaluate(_ context.Context, trace *domain.Trace) (domain.Result, error) {
	res := domain.Result{}
	for _, part := range trace.Parts() {
		if r.stop.Contains(part.ID) {
			continue
		}

		if part.Sample == nil {
			res.Violations = append(res.Violations, partViolation(part, domain.SeverityBlock,
				fmt.Sprintf("part %s has no sample", part.ID)))
		}

		if part.Generator() == nil {
			if part.Collection != nil && part.Collection.Generator() != nil {
				res.Violations = append(res.Violations, partViolation(part, domain.SeverityBlock,
					fmt.Sprintf("part %s has no generator", part.ID)))
			}
		} else {
			res.Violations = append(res.Violations, generatorViolations(trace, part, "part_lineage")...)
		}

		if len(part.SourceIDs()) == 0 {
			if part.Collection == nil {
				continue
			}
			if !trace.HasItem(part.Collection.ID) {
				res.Violations = append(res.Violations, partViolation(part, domain.SeverityBlock,
					fmt.Sprintf("part %s has collection %s not in trace", part.ID, part.Collection.ID)))
			}
			if len(part.Collection.SourceIDs()) > 0 {
				res.Violations = append(res.Violations, partViolation(part, domain.SeverityWarn,
					fmt.Sprintf("part %s has no sources, but collection %s does", part.ID, part.Collection.ID)))
			}
		} else {
			res.Violations = append(res.Violations, sourceViolations(trace, part, "part_lineage")...)
		}
	}
	return res, nil
}

func partViolation(part *domain.Part, severity domain.Severity, message string) domain.Violation {
	return domain.Violation{
		Rule:     "part_lineage",
		Severity: severity,
		Message:  message,
		Entity:   domain.KindPart,
		EntityID: part.ID,
	}
}
