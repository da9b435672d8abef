package extract

import (
	"fmt"
	"strings"

	"github.com/finagent-ai/finagent"
)

// Validator repairs tool arguments before execution using the recognized
// entities and the run context. It never fails: arguments it cannot repair
// pass through unchanged and the tool's own validation reports them.
type Validator struct {
	extractor *Extractor
}

// NewValidator creates a parameter validator over the given extractor.
func NewValidator(extractor *Extractor) *Validator {
	return &Validator{extractor: extractor}
}

// ValidateAndFix returns a repaired copy of args for toolName. The input map
// is never mutated.
func (v *Validator) ValidateAndFix(toolName string, args map[string]any, execCtx finagent.ExecutionContext) map[string]any {
	fixed := make(map[string]any, len(args))
	for k, val := range args {
		fixed[k] = val
	}

	switch toolName {
	case "query_employee_info":
		v.fixEmployeeLookup(fixed)
	case "query_reimbursement_summary", "query_reimbursement_records", "query_reimbursement_status":
		v.fixReimbursementQuery(fixed, execCtx)
	case "create_work_order":
		v.fixWorkOrder(fixed, execCtx)
	}

	return fixed
}

// fixEmployeeLookup normalizes the employee_id argument. A value that does
// not look like an ID is treated as a name the planner put in the wrong slot.
func (v *Validator) fixEmployeeLookup(args map[string]any) {
	raw := stringArg(args, "employee_id")
	if raw == "" {
		return
	}
	empID := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(empID, "E") {
		args["employee_id"] = empID
		return
	}
	if stringArg(args, "name") == "" {
		args["name"] = raw
		delete(args, "employee_id")
	}
}

// fixReimbursementQuery fills employee_id from the run context and
// normalizes date arguments, resolving month phrases to concrete ranges.
func (v *Validator) fixReimbursementQuery(args map[string]any, execCtx finagent.ExecutionContext) {
	if stringArg(args, "employee_id") == "" && execCtx.Has("employee_id") {
		args["employee_id"] = execCtx.Get("employee_id")
	}

	if start := stringArg(args, "start_date"); start != "" {
		args["start_date"] = ParseDate(start)
	}
	if end := stringArg(args, "end_date"); end != "" {
		args["end_date"] = ParseDate(end)
	}

	// A month phrase in start_date ("3月份") expands to the full range.
	if start := stringArg(args, "start_date"); strings.Contains(start, "月") || strings.Contains(start, "month") {
		dateRange := v.extractor.ExtractDateRange(start)
		if dateRange.StartDate != "" {
			args["start_date"] = dateRange.StartDate
		}
		if dateRange.EndDate != "" {
			args["end_date"] = dateRange.EndDate
		}
	}
}

// fixWorkOrder normalizes assignee_id, falling back to the run context when
// the planner produced something that is not an employee ID.
func (v *Validator) fixWorkOrder(args map[string]any, execCtx finagent.ExecutionContext) {
	raw := stringArg(args, "assignee_id")
	if raw == "" {
		return
	}
	assigneeID := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(assigneeID, "E") {
		args["assignee_id"] = assigneeID
	} else if execCtx.Has("assignee_id") {
		args["assignee_id"] = execCtx.Get("assignee_id")
	}
}

// stringArg reads args[key] as a string, rendering non-string scalars.
func stringArg(args map[string]any, key string) string {
	val, exists := args[key]
	if !exists || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", val)
}
