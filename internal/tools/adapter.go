// Package tools builds the agent's tool catalog: knowledge-base search,
// finance data lookups, work-order creation, and email.
package tools

import (
	"context"
	"fmt"

	"github.com/finagent-ai/finagent"
)

// FuncTool adapts a plain Go function to the finagent.Tool interface.
type FuncTool struct {
	toolFunc  func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error)
	schema    map[string]any
	name      string
	category  string
	validator func(map[string]any) error
}

// ToolOption configures a FuncTool.
type ToolOption func(*FuncTool)

// WithValidator sets a custom argument validator.
func WithValidator(validator func(map[string]any) error) ToolOption {
	return func(t *FuncTool) {
		t.validator = validator
	}
}

// WithCategory sets the tool's category.
func WithCategory(category string) ToolOption {
	return func(t *FuncTool) {
		t.category = category
		t.schema["category"] = category
	}
}

// WithDescription sets the description shown to the planner.
func WithDescription(description string) ToolOption {
	return func(t *FuncTool) {
		t.schema["description"] = description
	}
}

// WithParameters sets the parameter descriptions in the schema.
func WithParameters(parameters map[string]string) ToolOption {
	return func(t *FuncTool) {
		t.schema["parameters"] = parameters
	}
}

// NewFuncTool creates a tool from a Go function.
func NewFuncTool(
	name string,
	toolFunc func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error),
	options ...ToolOption) *FuncTool {

	t := &FuncTool{
		toolFunc: toolFunc,
		schema:   map[string]any{"name": name},
		name:     name,
		validator: func(args map[string]any) error {
			if args == nil {
				return fmt.Errorf("arguments cannot be nil")
			}
			return nil
		},
	}
	for _, option := range options {
		option(t)
	}
	return t
}

var _ finagent.Tool = (*FuncTool)(nil)

// Execute implements the finagent.Tool interface.
func (t *FuncTool) Execute(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
	if t.toolFunc == nil {
		return nil, fmt.Errorf("tool function is nil")
	}
	return t.toolFunc(ctx, args)
}

// Schema implements the finagent.Tool interface.
func (t *FuncTool) Schema() map[string]any {
	return t.schema
}

// Validate implements the finagent.Tool interface.
func (t *FuncTool) Validate(args map[string]any) error {
	if t.validator != nil {
		return t.validator(args)
	}
	return nil
}

// Name implements the finagent.Tool interface.
func (t *FuncTool) Name() string {
	return t.name
}

// Category implements the finagent.Tool interface.
func (t *FuncTool) Category() string {
	return t.category
}

// stringArg returns args[key] as a trimmed string.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
