package check

import (
	"context"
	"fmt"

	"tracecore/pkg/domain"
)

// EntityLineageRule checks items and collections outside the stop list:
// each needs a registered generator and at least one registered source,
// items need a sample, and collections must have all their parts registered
// in the trace. Placeholder entities for unfetchable records are reported at
// warn severity and then held to the same lineage requirements.
func EntityLineageRule(stop StopList) domain.Rule {
	return entityLineageRule{stop: stop}
}

type entityLineageRule struct {
	stop StopList
}

func (entityLineageRule) Name() string { return "entity_lineage" }

func (r entityLineageRule) Evaluate(_ context.Context, trace *domain.Trace) (domain.Result, error) {
	res := domain.Result{}
	for _, entity := range trace.Entities() {
		if entity.Kind() == domain.KindPart {
			continue
		}
		if r.stop.Contains(entity.EntityID()) {
			continue
		}

		switch e := entity.(type) {
		case *domain.Item:
			if e.Sample.ID == "" {
				res.Violations = append(res.Violations, entityViolation(e, domain.SeverityBlock,
					fmt.Sprintf("item %s has no sample", e.ID)))
			}
		case *domain.Collection:
			for _, part := range e.Parts() {
				if !trace.HasItem(part.EntityID()) {
					res.Violations = append(res.Violations, entityViolation(e, domain.SeverityBlock,
						fmt.Sprintf("part %s of collection %s is not in trace", part.EntityID(), e.ID)))
				}
			}
		default:
			if entity.Missing() {
				res.Violations = append(res.Violations, entityViolation(entity, domain.SeverityWarn,
					fmt.Sprintf("record for %s %s could not be fetched", entity.Kind(), entity.EntityID())))
			}
		}

		if entity.Generator() == nil {
			res.Violations = append(res.Violations, entityViolation(entity, domain.SeverityBlock,
				fmt.Sprintf("%s %s has no generator", entity.Kind(), entity.EntityID())))
		} else {
			res.Violations = append(res.Violations, generatorViolations(trace, entity, "entity_lineage")...)
		}

		if len(entity.SourceIDs()) == 0 {
			res.Violations = append(res.Violations, entityViolation(entity, domain.SeverityBlock,
				fmt.Sprintf("%s %s has no sources", entity.Kind(), entity.EntityID())))
		} else {
			res.Violations = append(res.Violations, sourceViolations(trace, entity, "entity_lineage")...)
		}
	}
	return res, nil
}

func entityViolation(entity domain.Entity, severity domain.Severity, message string) domain.Violation {
	return domain.Violation{
		Rule:     "entity_lineage",
		Severity: severity,
		Message:  message,
		Entity:   entity.Kind(),
		EntityID: entity.EntityID(),
	}
}
