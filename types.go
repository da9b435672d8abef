package finagent

// IntentType classifies what kind of request the user made.
type IntentType string

const (
	// IntentComplexTask indicates a multi-tool task (query data, create work orders, send email).
	IntentComplexTask IntentType = "complex_task"
	// IntentSimpleQuery indicates a single lookup, usually against the knowledge base.
	IntentSimpleQuery IntentType = "simple_query"
	// IntentContentGeneration indicates the user wants content drafted (e.g. an email body).
	IntentContentGeneration IntentType = "content_generation"
)

// Intent is the result of classifying a user question. It is produced once
// per run and consumed immediately by plan generation.
type Intent struct {
	Type               IntentType        `json:"intent_type"`
	RequiresPolicy     bool              `json:"requires_policy"`
	RequiresData       bool              `json:"requires_data"`
	RequiresGeneration bool              `json:"requires_generation"`
	Entities           map[string]string `json:"entities"`
	EstimatedSteps     int               `json:"estimated_steps"`
}

// DefaultIntent is the deterministic fallback used when intent
// classification cannot be parsed from the model output.
func DefaultIntent() Intent {
	return Intent{
		Type:           IntentSimpleQuery,
		RequiresPolicy: true,
		Entities:       map[string]string{},
		EstimatedSteps: 2,
	}
}

// PlanStep is a single tool call proposed by the planner.
type PlanStep struct {
	StepID    int            `json:"step_id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Reason    string         `json:"reason,omitempty"`
}

// Plan is an ordered list of tool calls. Steps execute strictly in order;
// later steps may rely on context written by earlier ones.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// StepStatus tracks the lifecycle of an execution step within one run.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
)

// ToolResult is the structured return value of every tool. Message carries
// the human-readable rendering used in the final aggregation prompt; Data
// carries machine-readable fields (employee_id, employee_name, ...) that
// the executor copies into the run context.
type ToolResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message"`
}

// ExecutionStep records one executed plan step, including its outcome.
// Instances live only for the duration of a single run.
type ExecutionStep struct {
	StepID     int            `json:"step_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	Status     StepStatus     `json:"status"`
	Result     *ToolResult    `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Attempts   int            `json:"attempts"`
}

// ExecutionContext carries identity resolved by earlier steps (employee_id,
// employee_name, assignee_id, ...) to later ones. One instance per run;
// never shared across concurrent requests.
type ExecutionContext map[string]string

// Get returns the value for key, or "" when absent.
func (c ExecutionContext) Get(key string) string { return c[key] }

// Set stores a non-empty value under key.
func (c ExecutionContext) Set(key, value string) {
	if value != "" {
		c[key] = value
	}
}

// Has reports whether key holds a non-empty value.
func (c ExecutionContext) Has(key string) bool { return c[key] != "" }

// RetrievedSource is one text chunk returned by the retriever.
type RetrievedSource struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source is a citation attached to the final answer.
type Source struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// RunResult is the terminal output of a run. Answer is always non-empty:
// every failure mode degrades to a best-effort answer.
type RunResult struct {
	Answer  string          `json:"answer"`
	Steps   []ExecutionStep `json:"steps"`
	Sources []Source        `json:"sources"`
	Intent  Intent          `json:"intent"`
}

// UserContext identifies the requesting user so that first-person pronouns
// ("我", "我的") can be resolved to a concrete employee.
type UserContext struct {
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id"`
	Department string `json:"department"`
}

// IsZero reports whether no user identity is configured.
func (u UserContext) IsZero() bool {
	return u.Name == "" && u.EmployeeID == "" && u.Department == ""
}

// Tool categories, fixed at registration time.
const (
	CategoryRAG   = "rag"
	CategoryDB    = "mcp_db"
	CategoryAPI   = "mcp_api"
	CategoryEmail = "mcp_email"
)
