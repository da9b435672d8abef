package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/finagent-ai/finagent"
)

// PlanValidator repairs an LLM-authored plan against the tool catalog and
// dependency graph. Validation never blocks execution: it drops what it
// must, synthesizes what it can, and reports the rest as advisory issues.
type PlanValidator struct {
	registry *finagent.Registry
}

// NewPlanValidator creates a plan validator over the tool catalog.
func NewPlanValidator(registry *finagent.Registry) *PlanValidator {
	return &PlanValidator{registry: registry}
}

var _ finagent.Validator = (*PlanValidator)(nil)

// ValidatePlan walks the proposed steps in order:
//   - steps naming unknown tools are dropped
//   - exact duplicate (tool, arguments) steps are dropped
//   - an unmet employee-lookup dependency is synthesized when the intent
//     carries an employee name without an ID and no earlier step already
//     looks up that name
//   - required-argument gaps are reported but do not block
//
// The surviving steps are renumbered sequentially from 1.
func (v *PlanValidator) ValidatePlan(plan finagent.Plan, intent finagent.Intent) (finagent.Plan, []string) {
	if len(plan.Steps) == 0 {
		return plan, nil
	}

	var issues []string
	executedTools := make(map[string]bool)
	seenSteps := make(map[string]bool)
	var fixedSteps []finagent.PlanStep

	for i, step := range plan.Steps {
		if step.ToolName == "" {
			issues = append(issues, fmt.Sprintf("步骤%d缺少工具名称", i+1))
			continue
		}
		if !v.registry.Has(step.ToolName) {
			issues = append(issues, fmt.Sprintf("步骤%d使用了未知工具: %s", i+1, step.ToolName))
			continue
		}

		stepKey := step.ToolName + "|" + canonicalArgs(step.Arguments)
		if seenSteps[stepKey] {
			issues = append(issues, fmt.Sprintf("步骤%d与之前的步骤重复: %s", i+1, step.ToolName))
			continue
		}
		seenSteps[stepKey] = true

		for _, dep := range v.registry.Dependencies(step.ToolName) {
			if executedTools[dep] || dep != "query_employee_info" {
				continue
			}
			employeeName := intent.Entities["employee_name"]
			employeeID := intent.Entities["employee_id"]
			if employeeName == "" || employeeID != "" {
				continue
			}
			if hasEmployeeLookup(fixedSteps, employeeName) {
				continue
			}
			fixedSteps = append(fixedSteps, finagent.PlanStep{
				StepID:    len(fixedSteps) + 1,
				ToolName:  "query_employee_info",
				Arguments: map[string]any{"name": employeeName},
				Reason:    fmt.Sprintf("获取员工工号，为 %s 做准备", step.ToolName),
			})
			executedTools["query_employee_info"] = true
			issues = append(issues, fmt.Sprintf("自动添加依赖步骤: query_employee_info (为 %s 准备)", step.ToolName))
		}

		if step.ToolName == "query_reimbursement_summary" {
			if _, hasID := step.Arguments["employee_id"]; !hasID {
				if _, hasName := step.Arguments["name"]; !hasName {
					issues = append(issues, fmt.Sprintf("步骤%d (%s) 缺少必需参数: employee_id 或 name", i+1, step.ToolName))
				}
			}
		}

		fixedSteps = append(fixedSteps, step)
		executedTools[step.ToolName] = true
	}

	for i := range fixedSteps {
		fixedSteps[i].StepID = i + 1
	}

	return finagent.Plan{Steps: fixedSteps}, issues
}

// hasEmployeeLookup reports whether an accepted step already looks up the
// given employee name.
func hasEmployeeLookup(steps []finagent.PlanStep, name string) bool {
	for _, s := range steps {
		if s.ToolName != "query_employee_info" {
			continue
		}
		if existing, ok := s.Arguments["name"].(string); ok && existing == name {
			return true
		}
	}
	return false
}

// canonicalArgs renders arguments in sorted-key order so duplicate detection
// is insensitive to map iteration order.
func canonicalArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, args[k])
	}
	return b.String()
}
