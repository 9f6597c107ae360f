// Package check validates that a provenance trace is well constructed.
//
// The checker runs after all repairs are applied. Entities named in the stop
// list are accepted as workflow inputs and exempt from lineage requirements;
// when no stop list is given the trace's own computed inputs are used. A
// trace passes when no block-severity violations are reported; warn-severity
// findings flag suspicious but exportable structure.
package check

import (
	"context"
	"fmt"
	"log/slog"

	"tracecore/pkg/domain"
)

// StopList is the set of entity IDs accepted as workflow inputs.
type StopList map[string]struct{}

// NewStopList builds a stop list from explicit entity IDs.
func NewStopList(ids ...string) StopList {
	stop := make(StopList, len(ids))
	for _, id := range ids {
		stop[id] = struct{}{}
	}
	return stop
}

// DefaultStopList builds a stop list from the trace's computed inputs.
func DefaultStopList(trace *domain.Trace) StopList {
	inputs := trace.Inputs()
	stop := make(StopList, len(inputs))
	for _, entity := range inputs {
		stop[entity.EntityID()] = struct{}{}
	}
	return stop
}

// Contains reports whether the entity ID is in the stop list.
func (s StopList) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Rules returns the full consistency battery bound to the stop list.
func Rules(stop StopList) []domain.Rule {
	return []domain.Rule{
		EntityLineageRule(stop),
		PartLineageRule(stop),
		FileProvenanceRule(),
		OperationInputsRule(),
	}
}

// Check evaluates the full battery against the trace, logging each violation
// as it is reported. An empty stop list defaults to the trace inputs. The
// trace is consistent when the returned result has no block-severity
// violations.
func Check(ctx context.Context, log *slog.Logger, trace *domain.Trace, stop StopList) (domain.Result, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(stop) == 0 {
		stop = DefaultStopList(trace)
	}

	engine := domain.NewRulesEngine()
	for _, rule := range Rules(stop) {
		engine.Register(rule)
	}
	result, err := engine.Evaluate(ctx, trace)
	if err != nil {
		return domain.Result{}, err
	}

	for _, v := range result.Violations {
		switch v.Severity {
		case domain.SeverityBlock:
			log.Error(v.Message, "rule", v.Rule, "entity", v.EntityID)
		case domain.SeverityWarn:
			log.Warn(v.Message, "rule", v.Rule, "entity", v.EntityID)
		default:
			log.Info(v.Message, "rule", v.Rule, "entity", v.EntityID)
		}
	}
	if result.HasBlocking() {
		log.Info("trace errors found",
			"errors", result.Count(domain.SeverityBlock),
			"warnings", result.Count(domain.SeverityWarn))
	} else {
		log.Info("no trace errors found",
			"warnings", result.Count(domain.SeverityWarn))
	}
	return result, nil
}

// generatorViolations verifies that the entity's generator is registered in
// the trace: the generating job and each of its operations, or the
// generating operation itself.
func generatorViolations(trace *domain.Trace, entity domain.Entity, rule string) []domain.Violation {
	var out []domain.Violation
	kind := entity.Kind()
	id := entity.EntityID()
	switch gen := entity.Generator().(type) {
	case *domain.Job:
		if !trace.HasJob(gen.ID) {
			out = append(out, domain.Violation{
				Rule:     rule,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("job %s generates %s %s but is not in trace", gen.ID, kind, id),
				Entity:   kind,
				EntityID: id,
			})
		}
		for _, op := range gen.Operations {
			if !trace.HasOperation(op.ID) {
				out = append(out, domain.Violation{
					Rule:     rule,
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("operation %s in generating job %s of %s %s is not in trace", op.ID, gen.ID, kind, id),
					Entity:   kind,
					EntityID: id,
				})
			}
		}
	case *domain.Operation:
		if !trace.HasOperation(gen.ID) {
			out = append(out, domain.Violation{
				Rule:     rule,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("operation %s generates %s %s but is not in trace", gen.ID, kind, id),
				Entity:   kind,
				EntityID: id,
			})
		}
	}
	return out
}

// sourceViolations verifies that every recorded source ID is registered in
// the trace.
func sourceViolations(trace *domain.Trace, entity domain.Entity, rule string) []domain.Violation {
	var out []domain.Violation
	for _, id := range entity.SourceIDs() {
		if !trace.HasItem(id) {
			out = append(out, domain.Violation{
				Rule:     rule,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("source %s of %s %s is not in trace", id, entity.Kind(), entity.EntityID()),
				Entity:   entity.Kind(),
				EntityID: entity.EntityID(),
			})
		}
	}
	return out
}
