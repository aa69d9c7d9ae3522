package graph

import (
	"errors"

	"github.com/google/uuid"
)

// ErrCyclicGraph indicates the proposed subtask specs contain a dependency cycle.
var ErrCyclicGraph = errors.New("cyclic dependency graph")

// ErrEmptyGraph indicates an empty spec list was proposed.
var ErrEmptyGraph = errors.New("empty subtask list")

// Spec is the LLM-proposed shape of a single subtask, before IDs are assigned.
// Dependencies are expressed by name and resolved to IDs during Build.
type Spec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Executor    Executor `json:"executor"`
	DependsOn   []string `json:"depends_on"`
	Tools       []string `json:"tools"`
}

// Build turns a list of proposed specs into a validated task graph.
//
// Each spec gets a fresh opaque ID. Dependency names that don't match any spec
// are silently dropped. If two specs share a name, the later one wins during
// resolution. Tool restrictions are kept only for system subtasks. The
// dependency relation must be acyclic; Build returns ErrCyclicGraph otherwise.
func Build(userMessage string, specs []Spec) (*TaskGraph, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyGraph
	}

	nameToID := make(map[string]string, len(specs))
	for _, spec := range specs {
		nameToID[spec.Name] = uuid.New().String()
	}

	subtasks := make([]*Subtask, 0, len(specs))
	for _, spec := range specs {
		var deps []string
		for _, depName := range spec.DependsOn {
			if depID, ok := nameToID[depName]; ok {
				deps = append(deps, depID)
			}
		}

		executor := spec.Executor
		if !executor.Valid() {
			executor = ExecutorUser
		}
		var tools []string
		if executor == ExecutorSystem {
			tools = append(tools, spec.Tools...)
		}

		subtasks = append(subtasks, &Subtask{
			ID:           nameToID[spec.Name],
			Name:         spec.Name,
			Description:  spec.Description,
			Executor:     executor,
			Dependencies: deps,
			Tools:        tools,
			Status:       StatusPending,
		})
	}

	if !isAcyclic(subtasks) {
		return nil, ErrCyclicGraph
	}

	return &TaskGraph{
		TaskID:      uuid.New().String(),
		UserMessage: userMessage,
		Subtasks:    subtasks,
	}, nil
}

// isAcyclic validates the dependency relation with Kahn's algorithm: repeatedly
// remove zero-in-degree nodes; the graph is acyclic iff every node is removed.
func isAcyclic(subtasks []*Subtask) bool {
	ids := make(map[string]bool, len(subtasks))
	for _, s := range subtasks {
		ids[s.ID] = true
	}

	inDegree := make(map[string]int, len(subtasks))
	adjacent := make(map[string][]string, len(subtasks))
	for _, s := range subtasks {
		for _, dep := range s.Dependencies {
			if !ids[dep] {
				continue
			}
			adjacent[dep] = append(adjacent[dep], s.ID)
			inDegree[s.ID]++
		}
	}

	var queue []string
	for _, s := range subtasks {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	removed := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		removed++
		for _, next := range adjacent[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return removed == len(subtasks)
}
