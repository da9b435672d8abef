package finagent

import (
	"sort"
)

// Registry holds the fixed tool catalog together with the dependency graph
// and planner priorities. It is immutable after construction and safe for
// concurrent use.
type Registry struct {
	tools      map[string]Tool
	deps       map[string][]string
	priorities map[string]int
}

// RegistryOption configures a Registry during construction.
type RegistryOption func(*Registry)

// WithDependencies sets the tool dependency graph. Keys and values are tool
// names; a tool depends on every tool in its value list.
func WithDependencies(deps map[string][]string) RegistryOption {
	return func(r *Registry) {
		r.deps = deps
	}
}

// WithPriorities sets planner ordering hints. Lower numbers run earlier.
func WithPriorities(priorities map[string]int) RegistryOption {
	return func(r *Registry) {
		r.priorities = priorities
	}
}

// NewRegistry builds a registry over the given tools. It fails with a
// configuration error when a dependency references an unknown tool or when
// the dependency graph contains a cycle.
func NewRegistry(tools []Tool, options ...RegistryOption) (*Registry, error) {
	r := &Registry{
		tools:      make(map[string]Tool, len(tools)),
		deps:       make(map[string][]string),
		priorities: make(map[string]int),
	}

	for _, tool := range tools {
		name := tool.Name()
		if _, exists := r.tools[name]; exists {
			return nil, NewConfigurationError("duplicate tool name: "+name, nil)
		}
		r.tools[name] = tool
	}

	for _, option := range options {
		option(r)
	}

	for name, depList := range r.deps {
		if _, exists := r.tools[name]; !exists {
			return nil, NewConfigurationError("dependency graph references unknown tool: "+name, nil)
		}
		for _, dep := range depList {
			if _, exists := r.tools[dep]; !exists {
				return nil, NewConfigurationError("tool "+name+" depends on unknown tool: "+dep, nil)
			}
		}
	}

	if cycle := r.findCycle(); cycle != "" {
		return nil, NewConfigurationError("dependency cycle involving tool: "+cycle, nil)
	}

	return r, nil
}

// findCycle runs a three-color DFS over the dependency graph and returns the
// name of a tool on a cycle, or "" when the graph is acyclic.
func (r *Registry) findCycle() string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(r.tools))

	var visit func(name string) string
	visit = func(name string) string {
		color[name] = gray
		for _, dep := range r.deps[name] {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if found := visit(dep); found != "" {
					return found
				}
			}
		}
		color[name] = black
		return ""
	}

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if color[name] == white {
			if found := visit(name); found != "" {
				return found
			}
		}
	}
	return ""
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	tool, exists := r.tools[name]
	if !exists {
		return nil, NewToolNotFoundError("registry", name)
	}
	return tool, nil
}

// Has reports whether name is a registered tool.
func (r *Registry) Has(name string) bool {
	_, exists := r.tools[name]
	return exists
}

// List returns all tool names ordered by priority, then alphabetically for
// stable output.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.Priority(names[i]), r.Priority(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// Priority returns the planner priority for name. Tools without an explicit
// priority sort last.
func (r *Registry) Priority(name string) int {
	if p, exists := r.priorities[name]; exists {
		return p
	}
	return 99
}

// Dependencies returns the direct dependencies of name.
func (r *Registry) Dependencies(name string) []string {
	return r.deps[name]
}

// Resolve returns the full dependency closure of name in execution order
// (dependencies first), excluding name itself. Construction guarantees the
// graph is acyclic, so the visited set only prevents duplicate entries.
func (r *Registry) Resolve(name string) []string {
	var order []string
	visited := make(map[string]bool)

	var visit func(n string)
	visit = func(n string) {
		for _, dep := range r.deps[n] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			visit(dep)
			order = append(order, dep)
		}
	}
	visit(name)
	return order
}

// Schemas returns every tool's schema keyed by tool name, for planner
// prompts.
func (r *Registry) Schemas() map[string]map[string]any {
	schemas := make(map[string]map[string]any, len(r.tools))
	for name, tool := range r.tools {
		schemas[name] = tool.Schema()
	}
	return schemas
}
