package tools

// Status marks a tool result as success or error.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Error codes returned inside tool results. Tools report failures through the
// Result payload, not Go errors, so the model can read and react to them.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeExecution  = "execution_error"
	ErrCodeScope      = "scope_error"
)

// Error is a structured failure the model can understand and correct.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform payload every local tool returns.
type Result struct {
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Error  *Error         `json:"error,omitempty"`
}

func errorResult(code, message string) Result {
	return Result{Status: StatusError, Error: &Error{Code: code, Message: message}}
}

func successResult(data map[string]any) Result {
	return Result{Status: StatusSuccess, Data: data}
}
