package executor

import (
	"testing"
)

func testResults() map[string]map[string]any {
	return map[string]map[string]any{
		"step1": {"employee_id": "E001", "employee_name": "张三"},
		"step2": {"total": 1250.5, "summary": map[string]any{"count": 3.0}},
	}
}

func TestResolveArguments_BareReference(t *testing.T) {
	args := ResolveArguments(map[string]any{
		"employee_id": "$step1.employee_id",
		"query":       "差旅费标准",
	}, testResults())

	if args["employee_id"] != "E001" {
		t.Errorf("employee_id = %v, want E001", args["employee_id"])
	}
	if args["query"] != "差旅费标准" {
		t.Errorf("literal argument changed: %v", args["query"])
	}
}

func TestResolveArguments_NestedField(t *testing.T) {
	args := ResolveArguments(map[string]any{
		"count": "$step2.summary.count",
	}, testResults())

	if args["count"] != 3.0 {
		t.Errorf("count = %v, want 3", args["count"])
	}
}

func TestResolveArguments_Arithmetic(t *testing.T) {
	args := ResolveArguments(map[string]any{
		"limit": "$step2.total * 2",
	}, testResults())

	got, ok := args["limit"].(float64)
	if !ok || got != 2501.0 {
		t.Errorf("limit = %v, want 2501", args["limit"])
	}
}

func TestResolveArguments_TextInterpolation(t *testing.T) {
	args := ResolveArguments(map[string]any{
		"title": "$step1.employee_name 的报销问题",
	}, testResults())

	if args["title"] != "张三 的报销问题" {
		t.Errorf("title = %v", args["title"])
	}
}

func TestResolveArguments_UnknownReference(t *testing.T) {
	args := ResolveArguments(map[string]any{
		"employee_id": "$step9.employee_id",
	}, testResults())

	if args["employee_id"] != nil {
		t.Errorf("unresolvable reference = %v, want nil", args["employee_id"])
	}
}

func TestResolveArguments_WholeStepData(t *testing.T) {
	args := ResolveArguments(map[string]any{
		"payload": "$step1",
	}, testResults())

	data, ok := args["payload"].(map[string]any)
	if !ok || data["employee_id"] != "E001" {
		t.Errorf("payload = %v", args["payload"])
	}
}
