package finagent

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for specific failure types.
const (
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeIndexNotReady = "INDEX_NOT_READY"
	ErrCodeToolNotFound  = "TOOL_NOT_FOUND"
	ErrCodeToolArgument  = "TOOL_ARGUMENT_ERROR"
	ErrCodeDataNotFound  = "TOOL_DATA_NOT_FOUND"
	ErrCodeToolExecution = "TOOL_EXECUTION_ERROR"
	ErrCodeLLMParse      = "LLM_PARSE_ERROR"
	ErrCodeCancelled     = "EXECUTION_CANCELLED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// AgentError is the error type used throughout the agent core.
type AgentError struct {
	Code    string // machine-readable code (e.g. ErrCodeDataNotFound)
	Stage   string // pipeline stage where the error occurred
	Message string // human-readable message
	Cause   error  // underlying error, if any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause, allowing errors.Is/As chaining.
func (e *AgentError) Unwrap() error { return e.Cause }

// NewError creates a new AgentError.
func NewError(code, stage, message string, cause error) *AgentError {
	return &AgentError{Code: code, Stage: stage, Message: message, Cause: cause}
}

func NewConfigurationError(message string, cause error) *AgentError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewIndexNotReadyError() *AgentError {
	return NewError(ErrCodeIndexNotReady, "retrieval",
		"知识库索引未初始化，请先运行: finagent index", nil)
}

func NewToolNotFoundError(stage, toolName string) *AgentError {
	return NewError(ErrCodeToolNotFound, stage, fmt.Sprintf("未知工具: %s", toolName), nil)
}

func NewToolArgumentError(toolName, message string) *AgentError {
	return NewError(ErrCodeToolArgument, "execution",
		fmt.Sprintf("参数错误: %s (%s)", message, toolName), nil)
}

func NewDataNotFoundError(toolName, message string) *AgentError {
	return NewError(ErrCodeDataNotFound, "execution",
		fmt.Sprintf("数据不存在: %s (%s)", message, toolName), nil)
}

func NewToolExecutionError(toolName string, cause error) *AgentError {
	return NewError(ErrCodeToolExecution, "execution",
		fmt.Sprintf("调用工具失败: %s", toolName), cause)
}

func NewLLMParseError(stage string, cause error) *AgentError {
	return NewError(ErrCodeLLMParse, stage, "模型输出无法解析为 JSON", cause)
}

func NewInternalError(stage, message string, cause error) *AgentError {
	return NewError(ErrCodeInternal, stage, message, cause)
}

// IsAgentError reports whether err is (or wraps) an *AgentError.
func IsAgentError(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// codeOf extracts the AgentError code, or "" for foreign errors.
func codeOf(err error) string {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsParameterShaped reports whether an execution error should take the
// parameter-repair retry path. Tools backed by loosely-typed call sites
// surface these as messages containing "参数错误" or "missing".
func IsParameterShaped(err error) bool {
	if err == nil {
		return false
	}
	if codeOf(err) == ErrCodeToolArgument {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "参数错误") || strings.Contains(msg, "missing")
}

// IsNotFoundShaped reports whether an execution error refers to data that
// does not exist. These are never retried.
func IsNotFoundShaped(err error) bool {
	if err == nil {
		return false
	}
	if codeOf(err) == ErrCodeDataNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "数据不存在") || strings.Contains(msg, "不存在")
}
