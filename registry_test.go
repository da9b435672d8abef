package finagent

import (
	"context"
	"reflect"
	"testing"
)

// fakeTool is a minimal Tool for registry tests.
type fakeTool struct {
	name string
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	return &ToolResult{Success: true, Message: "ok"}, nil
}
func (f *fakeTool) Schema() map[string]any {
	return map[string]any{"description": f.name}
}

func (f *fakeTool) Validate(args map[string]any) error { return nil }

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Category() string { return CategoryDB }

func fakeTools(names ...string) []Tool {
	tools := make([]Tool, len(names))
	for i, name := range names {
		tools[i] = &fakeTool{name: name}
	}
	return tools
}

func TestNewRegistry_RejectsDuplicateName(t *testing.T) {
	_, err := NewRegistry(fakeTools("alpha", "alpha"))
	if err == nil {
		t.Fatal("expected error for duplicate tool name")
	}
	if codeOf(err) != ErrCodeConfiguration {
		t.Errorf("code = %q", codeOf(err))
	}
}

func TestNewRegistry_RejectsUnknownDependency(t *testing.T) {
	_, err := NewRegistry(fakeTools("alpha"),
		WithDependencies(map[string][]string{"alpha": {"ghost"}}))
	if err == nil {
		t.Fatal("expected error for unknown dependency target")
	}

	_, err = NewRegistry(fakeTools("alpha"),
		WithDependencies(map[string][]string{"ghost": {"alpha"}}))
	if err == nil {
		t.Fatal("expected error for unknown dependency key")
	}
}

func TestNewRegistry_RejectsCycle(t *testing.T) {
	_, err := NewRegistry(fakeTools("alpha", "beta", "gamma"),
		WithDependencies(map[string][]string{
			"alpha": {"beta"},
			"beta":  {"gamma"},
			"gamma": {"alpha"},
		}))
	if err == nil {
		t.Fatal("expected error for dependency cycle")
	}
	if codeOf(err) != ErrCodeConfiguration {
		t.Errorf("code = %q", codeOf(err))
	}
}

func TestRegistry_ListOrdersByPriority(t *testing.T) {
	r, err := NewRegistry(fakeTools("zeta", "alpha", "mid"),
		WithPriorities(map[string]int{"zeta": 1, "mid": 2}))
	if err != nil {
		t.Fatal(err)
	}

	// alpha has no explicit priority and sorts last.
	want := []string{"zeta", "mid", "alpha"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if r.Priority("alpha") != 99 {
		t.Errorf("default priority = %d", r.Priority("alpha"))
	}
}

func TestRegistry_GetAndHas(t *testing.T) {
	r, err := NewRegistry(fakeTools("alpha"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Get("alpha"); err != nil {
		t.Errorf("Get(alpha): %v", err)
	}
	if !r.Has("alpha") || r.Has("ghost") {
		t.Error("Has gave wrong answers")
	}

	_, err = r.Get("ghost")
	if err == nil || codeOf(err) != ErrCodeToolNotFound {
		t.Errorf("Get(ghost) = %v", err)
	}
}

func TestRegistry_ResolveClosure(t *testing.T) {
	r, err := NewRegistry(fakeTools("lookup", "summary", "email"),
		WithDependencies(map[string][]string{
			"summary": {"lookup"},
			"email":   {"summary"},
		}))
	if err != nil {
		t.Fatal(err)
	}

	// Dependencies come first, transitively, without the tool itself.
	want := []string{"lookup", "summary"}
	if got := r.Resolve("email"); !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve(email) = %v, want %v", got, want)
	}
	if got := r.Resolve("lookup"); len(got) != 0 {
		t.Errorf("Resolve(lookup) = %v", got)
	}
}

func TestRegistry_Schemas(t *testing.T) {
	r, err := NewRegistry(fakeTools("alpha", "beta"))
	if err != nil {
		t.Fatal(err)
	}

	schemas := r.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("schemas = %v", schemas)
	}
	if schemas["alpha"]["description"] != "alpha" {
		t.Errorf("alpha schema = %v", schemas["alpha"])
	}
}
