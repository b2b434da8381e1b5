package domain

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleSystem carries operator instructions that precede the first user turn.
	RoleSystem Role = "system"

	// RoleUser carries the task prompt.
	RoleUser Role = "user"

	// RoleModel carries provider output: prose, tool invocations, or both.
	RoleModel Role = "model"

	// RoleToolResult carries the outcome of one tool invocation, keyed back
	// to the originating request by ToolCallID.
	RoleToolResult Role = "tool_result"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned correlation token for this invocation.
	ID string `json:"id"`

	// Name is the tool the model asked for.
	Name string `json:"name"`

	// Arguments is the raw JSON argument object exactly as the model
	// produced it, preserved verbatim for replay and audit.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Turn is one entry in a conversation transcript.
type Turn struct {
	Role Role `json:"role"`

	// Content holds prose for system, user, and model turns, and the tool
	// output payload for tool_result turns.
	Content string `json:"content,omitempty"`

	// ToolCalls lists the invocations a model turn requested, in the order
	// the provider emitted them.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool_result turn to the model turn's ToolCall.ID.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Clone returns a deep copy of the turn, including tool call arguments.
func (t Turn) Clone() Turn {
	clone := t
	if len(t.ToolCalls) > 0 {
		calls := make([]ToolCall, len(t.ToolCalls))
		for i, call := range t.ToolCalls {
			calls[i] = call
			if len(call.Arguments) > 0 {
				calls[i].Arguments = append(json.RawMessage(nil), call.Arguments...)
			}
		}
		clone.ToolCalls = calls
	}
	return clone
}

// Transcript is an append-only conversation history in strict turn order.
// Operations never mutate the receiver: Append returns a fresh slice, so a
// snapshot taken before a round stays valid after it. Each round's input is
// therefore exactly the prior rounds' output plus the new turns, which is
// what makes individual rounds replayable.
type Transcript []Turn

// NewTranscript seeds a transcript with optional system instructions and the
// opening user prompt. An empty system string produces no system turn.
func NewTranscript(system, prompt string) Transcript {
	turns := make(Transcript, 0, 2)
	if system != "" {
		turns = append(turns, Turn{Role: RoleSystem, Content: system})
	}
	return append(turns, Turn{Role: RoleUser, Content: prompt})
}

// Append returns a new transcript with the given turns added. The receiver
// is left untouched; appended turns are deep-copied to prevent aliasing.
func (t Transcript) Append(turns ...Turn) Transcript {
	next := make(Transcript, len(t), len(t)+len(turns))
	copy(next, t)
	for _, turn := range turns {
		next = append(next, turn.Clone())
	}
	return next
}

// Clone returns a deep copy of the transcript.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	next := make(Transcript, len(t))
	for i, turn := range t {
		next[i] = turn.Clone()
	}
	return next
}

// Last returns the final turn, or a zero Turn and false when empty.
func (t Transcript) Last() (Turn, bool) {
	if len(t) == 0 {
		return Turn{}, false
	}
	return t[len(t)-1], true
}

// ModelTurns counts turns authored by the model.
func (t Transcript) ModelTurns() int {
	n := 0
	for _, turn := range t {
		if turn.Role == RoleModel {
			n++
		}
	}
	return n
}
