// Package graph defines the task graph model: subtasks, their statuses, and
// dependency edges produced when a chat message is decomposed.
package graph

// Status represents the lifecycle state of a subtask.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal returns true if the status is succeeded or failed.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Executor identifies who performs a subtask.
type Executor string

const (
	// ExecutorSystem subtasks are run autonomously by the agent loop.
	ExecutorSystem Executor = "system"
	// ExecutorUser subtasks wait for a human to supply the result out of band.
	ExecutorUser Executor = "user"
)

// Valid returns true if the executor kind is a known value.
func (e Executor) Valid() bool {
	return e == ExecutorSystem || e == ExecutorUser
}

// Subtask is one node of a task graph.
type Subtask struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Executor    Executor `json:"executor"`
	// Dependencies lists subtask IDs that must succeed before this
	// subtask is eligible to run.
	Dependencies []string `json:"dependencies"`
	// Tools restricts which tools the system executor may use.
	// Empty means the full toolset. Always empty for user subtasks.
	Tools  []string `json:"tools,omitempty"`
	Status Status   `json:"status"`
	Result string   `json:"result,omitempty"`
}

// TaskGraph is one decomposition of a user request into a DAG of subtasks.
type TaskGraph struct {
	TaskID string `json:"task_id"`
	// UserMessage is the literal chat message that triggered decomposition.
	// Kept for the final synthesis step.
	UserMessage string     `json:"user_message"`
	Subtasks    []*Subtask `json:"subtasks"`
}

// ByID returns the subtask with the given ID, or nil if absent.
func (g *TaskGraph) ByID(id string) *Subtask {
	for _, s := range g.Subtasks {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Complete reports whether every subtask has reached a terminal status.
func (g *TaskGraph) Complete() bool {
	for _, s := range g.Subtasks {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

// Dependents returns the IDs of subtasks that list id among their dependencies.
func (g *TaskGraph) Dependents(id string) []string {
	var out []string
	for _, s := range g.Subtasks {
		for _, dep := range s.Dependencies {
			if dep == id {
				out = append(out, s.ID)
				break
			}
		}
	}
	return out
}
