package llm

import (
	"testing"
)

func TestExtractJSON_Plain(t *testing.T) {
	got, err := ExtractJSON(`{"intent_type": "simple_query"}`)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"intent_type": "simple_query"}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_WrappedInProse(t *testing.T) {
	text := "好的，分析结果如下：\n```json\n{\"steps\": [{\"step_id\": 1}]}\n```\n以上就是计划。"
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"steps": [{"step_id": 1}]}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_NestedAndStrings(t *testing.T) {
	text := `prefix {"a": {"b": "brace } in string"}, "c": 1} suffix`
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"a": {"b": "brace } in string"}, "c": 1}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	if _, err := ExtractJSON("没有任何结构化内容"); err == nil {
		t.Error("expected error for text without an object")
	}
	if _, err := ExtractJSON(`{"unbalanced": true`); err == nil {
		t.Error("expected error for unbalanced braces")
	}
}

func TestUnmarshalObject(t *testing.T) {
	var out struct {
		IntentType string `json:"intent_type"`
		Steps      int    `json:"estimated_steps"`
	}
	text := "分类结果：{\"intent_type\": \"complex_task\", \"estimated_steps\": 3}"
	if err := UnmarshalObject(text, &out); err != nil {
		t.Fatalf("UnmarshalObject failed: %v", err)
	}
	if out.IntentType != "complex_task" || out.Steps != 3 {
		t.Errorf("decoded %+v", out)
	}
}

func TestUnmarshalObject_InvalidJSON(t *testing.T) {
	var out map[string]any
	if err := UnmarshalObject(`{"a": }`, &out); err == nil {
		t.Error("expected decode error")
	}
}
