package bridge

import "context"

// ToolCall is one function call requested by the model.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string // raw JSON as produced by the model
}

// ToolHandler executes model-requested function calls. Implementations
// talk to the platform backend; the session only relays the call and
// returns the output to the conversation. Invoke runs off the session
// loop and must honor ctx.
type ToolHandler interface {
	Invoke(ctx context.Context, call ToolCall) (string, error)
}
