package check

import (
	"context"
	"fmt"

	"tracecore/pkg/domain"
)

// OperationInputsRule checks that every item-valued argument of every
// operation references an entity registered in the trace.
func OperationInputsRule() domain.Rule {
	return operationInputsRule{}
}

type operationInputsRule struct{}

func (operationInputsRule) Name() string { return "operation_inputs" }

func (operationInputsRule) Evaluate(_ context.Context, trace *domain.Trace) (domain.Result, error) {
	res := domain.Result{}
	for _, op := range trace.Operations() {
		for _, in := range op.InputItems() {
			if in.Item == nil || !trace.HasItem(in.ItemID()) {
				id := ""
				if in.Item != nil {
					id = in.ItemID()
				}
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "operation_inputs",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("argument %s of operation %s references item %s not in trace", in.Name, op.ID, id),
					Entity:   domain.KindItem,
					EntityID: id,
				})
			}
		}
	}
	return res, nil
}
