// Package event defines the real-time events a session emits and the SSE
// hub that delivers them to connected clients.
package event

import "github.com/GoCodeAlone/sprocket/graph"

// Event is a typed real-time event delivered to a session's clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Event type identifiers.
const (
	TypeChatResponse        = "chat_response"
	TypeTaskGraphCreated    = "task_graph_created"
	TypeSubtaskStatusUpdate = "subtask_status_update"
	TypeTaskCompleted       = "task_completed"
	TypeError               = "error"
)

// ChatResponse carries an ordinary assistant reply.
type ChatResponse struct {
	Content string `json:"content"`
}

// TaskGraphCreated announces a new task graph awaiting confirmation.
type TaskGraphCreated struct {
	Graph *graph.TaskGraph `json:"graph"`
}

// SubtaskStatusUpdate reports one subtask's transition.
type SubtaskStatusUpdate struct {
	TaskID    string       `json:"task_id"`
	SubtaskID string       `json:"subtask_id"`
	Status    graph.Status `json:"status"`
	Result    string       `json:"result,omitempty"`
}

// TaskCompleted carries the synthesized summary of a finished graph.
type TaskCompleted struct {
	TaskID  string `json:"task_id"`
	Summary string `json:"summary"`
}

// Error reports a user-visible failure.
type Error struct {
	Message string `json:"message"`
}
