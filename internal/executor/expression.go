package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
)

// Plans reference earlier step outputs with $stepN.field expressions, e.g.
// {"employee_id": "$step1.employee_id"} or {"amount": "$step2.total * 0.8"}.
var stepRefPattern = regexp.MustCompile(`\$(step[0-9]+)((?:\.[a-zA-Z0-9_]+)*)`)

// bareRefPattern matches an argument that is exactly one reference.
var bareRefPattern = regexp.MustCompile(`^\$(step[0-9]+)((?:\.[a-zA-Z0-9_]+)*)$`)

// ResolveArguments returns a copy of args with $stepN.field references
// replaced by values from earlier step results. Unresolvable references
// resolve to nil so the tool's own validation reports the gap.
func ResolveArguments(args map[string]any, results map[string]map[string]any) map[string]any {
	resolved := make(map[string]any, len(args))
	for name, value := range args {
		str, ok := value.(string)
		if !ok || !strings.Contains(str, "$step") {
			resolved[name] = value
			continue
		}
		resolved[name] = resolveExpression(str, results)
	}
	return resolved
}

// resolveExpression evaluates one argument string against prior results.
// A bare reference returns the value directly; anything else goes through
// govaluate for arithmetic, falling back to string interpolation for text
// the expression engine cannot parse.
func resolveExpression(expr string, results map[string]map[string]any) any {
	if m := bareRefPattern.FindStringSubmatch(expr); m != nil {
		return lookupRef(m[1], m[2], results)
	}

	variables := map[string]any{}
	replaced := stepRefPattern.ReplaceAllStringFunc(expr, func(matched string) string {
		m := stepRefPattern.FindStringSubmatch(matched)
		varName := m[1] + strings.ReplaceAll(m[2], ".", "_")
		variables[varName] = lookupRef(m[1], m[2], results)
		return varName
	})

	evalExpr, err := govaluate.NewEvaluableExpression(replaced)
	if err == nil {
		if result, evalErr := evalExpr.Evaluate(variables); evalErr == nil {
			return result
		}
	}

	// Not a valid expression (e.g. a Chinese sentence embedding a ref):
	// interpolate the resolved values as text.
	return stepRefPattern.ReplaceAllStringFunc(expr, func(matched string) string {
		m := stepRefPattern.FindStringSubmatch(matched)
		val := lookupRef(m[1], m[2], results)
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
}

// lookupRef walks a dotted accessor path into a step's result data.
func lookupRef(stepID, accessors string, results map[string]map[string]any) any {
	data, exists := results[stepID]
	if !exists {
		return nil
	}
	if accessors == "" {
		return data
	}

	var val any = data
	for _, field := range strings.Split(strings.TrimPrefix(accessors, "."), ".") {
		m, ok := val.(map[string]any)
		if !ok {
			return nil
		}
		val, ok = m[field]
		if !ok {
			return nil
		}
	}
	return val
}
