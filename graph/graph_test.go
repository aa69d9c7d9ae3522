package graph

import "testing"

func chainGraph() *TaskGraph {
	return &TaskGraph{
		TaskID: "t1",
		Subtasks: []*Subtask{
			{ID: "a", Name: "A", Status: StatusPending},
			{ID: "b", Name: "B", Status: StatusPending, Dependencies: []string{"a"}},
			{ID: "c", Name: "C", Status: StatusPending, Dependencies: []string{"b"}},
		},
	}
}

func TestTaskGraph_ByID(t *testing.T) {
	g := chainGraph()
	if s := g.ByID("b"); s == nil || s.Name != "B" {
		t.Errorf("ByID(b) = %v, want subtask B", s)
	}
	if s := g.ByID("zzz"); s != nil {
		t.Errorf("ByID(zzz) = %v, want nil", s)
	}
}

func TestTaskGraph_Complete(t *testing.T) {
	g := chainGraph()
	if g.Complete() {
		t.Error("Complete() = true for all-pending graph")
	}
	g.Subtasks[0].Status = StatusSucceeded
	g.Subtasks[1].Status = StatusFailed
	if g.Complete() {
		t.Error("Complete() = true with one pending subtask")
	}
	g.Subtasks[2].Status = StatusFailed
	if !g.Complete() {
		t.Error("Complete() = false with all subtasks terminal")
	}
}

func TestTaskGraph_Dependents(t *testing.T) {
	g := &TaskGraph{
		Subtasks: []*Subtask{
			{ID: "root"},
			{ID: "x", Dependencies: []string{"root"}},
			{ID: "y", Dependencies: []string{"root", "x"}},
			{ID: "z", Dependencies: []string{"y"}},
		},
	}
	deps := g.Dependents("root")
	if len(deps) != 2 {
		t.Fatalf("Dependents(root) = %v, want [x y]", deps)
	}
}

func TestStatus_Terminal(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}
