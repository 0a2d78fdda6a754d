package rest

import (
	"time"

	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/worker"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// InstanceCountsResponse mirrors engine.InstanceCounts for JSON.
type InstanceCountsResponse struct {
	Total     int `json:"total"`
	Idle      int `json:"idle"`
	Busy      int `json:"busy"`
	Unhealthy int `json:"unhealthy"`
}

// TaskCountsResponse mirrors queue.Counts for JSON.
type TaskCountsResponse struct {
	Pending   int `json:"pending"`
	Ready     int `json:"ready"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// LatencyResponse summarizes a percentile histogram, in milliseconds.
type LatencyResponse struct {
	P50 float64 `json:"p50_ms"`
	P95 float64 `json:"p95_ms"`
	P99 float64 `json:"p99_ms"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Instances  InstanceCountsResponse `json:"instances"`
	Tasks      TaskCountsResponse     `json:"tasks"`
	QueueDepth map[string]int         `json:"queue_depth"`
	Latency    LatencyResponse        `json:"task_latency"`
}

// SpawnRequest is the body of POST /instances/spawn.
type SpawnRequest struct {
	Count            int    `json:"count"`
	ModelProfile     string `json:"model_profile,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

// SpawnResponse is the body returned by POST /instances/spawn.
type SpawnResponse struct {
	WorkerIDs []string `json:"worker_ids"`
}

// ScaleRequest is the body of POST /instances/scale.
type ScaleRequest struct {
	Target       int    `json:"target"`
	ModelProfile string `json:"model_profile,omitempty"`
}

// ScaleResponse is the body returned by POST /instances/scale.
type ScaleResponse struct {
	Current int `json:"current"`
}

// TerminateResponse is the body returned by DELETE /instances/{id}.
type TerminateResponse struct {
	Terminated bool `json:"terminated"`
}

// WorkerResponse is the JSON view of a worker.Snapshot.
type WorkerResponse struct {
	ID            string    `json:"id"`
	State         string    `json:"state"`
	CurrentTaskID string    `json:"current_task_id,omitempty"`
	WorkDir       string    `json:"working_directory,omitempty"`
	ModelProfile  string    `json:"model_profile,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	LastActiveAt  time.Time `json:"last_active_at"`
}

func toWorkerResponse(s worker.Snapshot) WorkerResponse {
	return WorkerResponse{
		ID:            s.ID,
		State:         s.State.String(),
		CurrentTaskID: s.CurrentTaskID,
		WorkDir:       s.WorkDir,
		ModelProfile:  s.ModelProfile,
		StartedAt:     s.StartedAt,
		LastActiveAt:  s.LastActiveAt,
	}
}

// TaskRequest is the body of POST /tasks, and one element of POST
// /tasks/batch.
type TaskRequest struct {
	Name            string        `json:"name,omitempty"`
	Prompt          string        `json:"prompt,omitempty"`
	Command         string        `json:"command,omitempty"`
	Directory       string        `json:"directory,omitempty"`
	Priority        string        `json:"priority,omitempty"`
	DependsOn       []string      `json:"depends_on,omitempty"`
	PinnedInstance  string        `json:"pinned_instance,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
}

func (r TaskRequest) toTask() *queue.Task {
	return &queue.Task{
		Name:           r.Name,
		Priority:       priorityFromString(r.Priority),
		DependsOn:      r.DependsOn,
		PinnedInstance: r.PinnedInstance,
		Timeout:        r.Timeout,
		Payload: worker.Payload{
			Prompt:           r.Prompt,
			Command:          r.Command,
			WorkingDirectory: r.Directory,
		},
	}
}

func priorityFromString(s string) queue.Priority {
	switch s {
	case "critical":
		return queue.PriorityCritical
	case "high":
		return queue.PriorityHigh
	case "low":
		return queue.PriorityLow
	default:
		return queue.PriorityNormal
	}
}

// TaskIDResponse is the body returned by POST /tasks.
type TaskIDResponse struct {
	TaskID string `json:"task_id"`
}

// TaskIDsResponse is the body returned by POST /tasks/batch.
type TaskIDsResponse struct {
	TaskIDs []string `json:"task_ids"`
}

// TaskResponse is the JSON view of a queue.Task.
type TaskResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	State          string          `json:"state"`
	Priority       string          `json:"priority"`
	DependsOn      []string        `json:"depends_on,omitempty"`
	PinnedInstance string          `json:"pinned_instance,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Result         *ResultResponse `json:"result,omitempty"`
}

// ResultResponse is the JSON view of a worker.Result.
type ResultResponse struct {
	Output   string        `json:"output"`
	ExitCode int           `json:"exit_code"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

func toTaskResponse(t *queue.Task) TaskResponse {
	resp := TaskResponse{
		ID:             t.ID,
		Name:           t.Name,
		State:          t.State.String(),
		Priority:       t.Priority.String(),
		DependsOn:      t.DependsOn,
		PinnedInstance: t.PinnedInstance,
		SubmittedAt:    t.SubmittedAt,
	}
	if !t.CompletedAt.IsZero() {
		resp.CompletedAt = &t.CompletedAt
	}
	if t.Result != nil {
		resp.Result = &ResultResponse{
			Output:   t.Result.Output,
			ExitCode: t.Result.ExitCode,
			Error:    t.Result.Error,
			Duration: t.Result.Duration,
		}
	}
	return resp
}

// CancelResponse is the body returned by DELETE /tasks/{id}.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// WorkflowResponse is the body returned by POST /workflows/execute.
type WorkflowResponse struct {
	WorkflowID string                     `json:"workflow_id"`
	TaskIDs    []string                   `json:"task_ids"`
	Tasks      map[string]TaskOutcomeJSON `json:"tasks"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// TaskOutcomeJSON is the JSON view of a workflow.TaskOutcome.
type TaskOutcomeJSON struct {
	TaskID string          `json:"task_id"`
	State  string          `json:"state"`
	Result *ResultResponse `json:"result,omitempty"`
}
