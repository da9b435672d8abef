package extract

import (
	"testing"
	"time"

	"github.com/finagent-ai/finagent"
)

func newTestValidator() *Validator {
	extractor := NewExtractor(WithNow(fixedNow(2024, time.July, 15)))
	return NewValidator(extractor)
}

func TestValidateAndFix_EmployeeLookupSwapsNameIntoRightSlot(t *testing.T) {
	v := newTestValidator()

	got := v.ValidateAndFix("query_employee_info",
		map[string]any{"employee_id": "张三"}, finagent.ExecutionContext{})

	if _, exists := got["employee_id"]; exists {
		t.Error("employee_id should have been removed")
	}
	if got["name"] != "张三" {
		t.Errorf("name = %v, want 张三", got["name"])
	}
}

func TestValidateAndFix_EmployeeLookupNormalizesID(t *testing.T) {
	v := newTestValidator()

	got := v.ValidateAndFix("query_employee_info",
		map[string]any{"employee_id": " e001 "}, finagent.ExecutionContext{})

	if got["employee_id"] != "E001" {
		t.Errorf("employee_id = %v, want E001", got["employee_id"])
	}
}

func TestValidateAndFix_ReimbursementFillsIDFromContext(t *testing.T) {
	v := newTestValidator()
	execCtx := finagent.ExecutionContext{"employee_id": "E007"}

	got := v.ValidateAndFix("query_reimbursement_summary",
		map[string]any{"start_date": "2024/03/01"}, execCtx)

	if got["employee_id"] != "E007" {
		t.Errorf("employee_id = %v, want E007", got["employee_id"])
	}
	if got["start_date"] != "2024-03-01" {
		t.Errorf("start_date = %v, want 2024-03-01", got["start_date"])
	}
}

func TestValidateAndFix_MonthPhraseExpandsToRange(t *testing.T) {
	v := newTestValidator()

	got := v.ValidateAndFix("query_reimbursement_records",
		map[string]any{"employee_id": "E001", "start_date": "3月份"},
		finagent.ExecutionContext{})

	if got["start_date"] != "2024-03-01" {
		t.Errorf("start_date = %v, want 2024-03-01", got["start_date"])
	}
	if got["end_date"] != "2024-03-31" {
		t.Errorf("end_date = %v, want 2024-03-31", got["end_date"])
	}
}

func TestValidateAndFix_WorkOrderAssignee(t *testing.T) {
	v := newTestValidator()

	got := v.ValidateAndFix("create_work_order",
		map[string]any{"assignee_id": "e002"}, finagent.ExecutionContext{})
	if got["assignee_id"] != "E002" {
		t.Errorf("assignee_id = %v, want E002", got["assignee_id"])
	}

	// A non-ID value defers to the context.
	execCtx := finagent.ExecutionContext{"assignee_id": "E003"}
	got = v.ValidateAndFix("create_work_order",
		map[string]any{"assignee_id": "财务部张经理"}, execCtx)
	if got["assignee_id"] != "E003" {
		t.Errorf("assignee_id = %v, want E003 from context", got["assignee_id"])
	}
}

func TestValidateAndFix_DoesNotMutateInput(t *testing.T) {
	v := newTestValidator()
	args := map[string]any{"employee_id": "张三"}

	v.ValidateAndFix("query_employee_info", args, finagent.ExecutionContext{})

	if args["employee_id"] != "张三" {
		t.Errorf("input map was mutated: %v", args)
	}
}
