// Package orchestrator implements the coordinator of spec §4.1: task
// lifecycle, the analyze->decompose->execute->finalize pipeline, and the
// public submit/get/cancel/retry/subscribe surface. Grounded on the
// phase-loop shape of PedroCLI's pkg/agents/phased_executor.go (Phase,
// PhaseResult, PhasedExecutor.Execute), generalized from one-agent-per-phase
// sequential execution to the spec's dependency-ordered parallel/sequential
// subtask DAG, retries, and cost-cap enforcement.
package orchestrator

import (
	"time"

	"orchestrator/internal/agent"
	"orchestrator/internal/modes"
)

// Status is the closed Task state machine of spec §3/§4.1.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// PhaseStatus is the closed Phase state machine of spec §3.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
	PhaseStatusSkipped   PhaseStatus = "skipped"
)

// SubtaskStatus is the closed PhaseTask state machine.
type SubtaskStatus string

const (
	SubtaskPending   SubtaskStatus = "pending"
	SubtaskRunning   SubtaskStatus = "running"
	SubtaskCompleted SubtaskStatus = "completed"
	SubtaskFailed    SubtaskStatus = "failed"
)

// TaskError is one entry in a failed task's error list, per spec §7.
type TaskError struct {
	Type    string
	Message string
	Phase   int
	Agent   string
}

// Subtask is spec §3's PhaseTask.
type Subtask struct {
	ID          string
	Description string
	AgentType   agent.Type
	Status      SubtaskStatus
	DependsOn   []string
	Input       map[string]interface{}
	Output      *agent.Result
}

// Phase is spec §3's Phase.
type Phase struct {
	Ordinal    int
	Name       string
	Parallel   bool
	Required   bool
	Status     PhaseStatus
	Subtasks   []Subtask
	DurationMs int64
}

// Task is spec §3's Task.
type Task struct {
	ID            string
	Description   string
	ProjectID     string
	Status        Status
	Priority      int
	Mode          modes.Name
	Phases        []Phase
	CurrentPhase  int
	Results       map[int]map[string]agent.Result // phase ordinal -> subtaskID -> result
	FilesModified []string
	TokensUsed    int
	Cost          float64
	Errors        []TaskError
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// IsActive reports whether the task is past pending but not yet terminal.
func (s Status) IsActive() bool {
	switch s {
	case StatusAnalyzing, StatusRunning, StatusPaused:
		return true
	}
	return false
}

// Clone returns a deep-enough copy for safe external return from Get.
func (t *Task) Clone() *Task {
	c := *t
	c.Phases = append([]Phase(nil), t.Phases...)
	for i := range c.Phases {
		c.Phases[i].Subtasks = append([]Subtask(nil), t.Phases[i].Subtasks...)
	}
	c.Results = make(map[int]map[string]agent.Result, len(t.Results))
	for k, v := range t.Results {
		inner := make(map[string]agent.Result, len(v))
		for k2, v2 := range v {
			inner[k2] = v2
		}
		c.Results[k] = inner
	}
	c.FilesModified = append([]string(nil), t.FilesModified...)
	c.Errors = append([]TaskError(nil), t.Errors...)
	return &c
}
