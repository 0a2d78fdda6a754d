package rest

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/workflowdoc"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{OK: true})
}

func (s *Server) status(c *fiber.Ctx) error {
	st := s.orch.Status()

	depth := make(map[string]int, len(st.QueueDepth))
	for p, n := range st.QueueDepth {
		depth[p.String()] = n
	}

	return c.JSON(StatusResponse{
		Instances: InstanceCountsResponse{
			Total:     st.Instances.Total,
			Idle:      st.Instances.Idle,
			Busy:      st.Instances.Busy,
			Unhealthy: st.Instances.Unhealthy,
		},
		Tasks: TaskCountsResponse{
			Pending:   st.Tasks.Pending,
			Ready:     st.Tasks.Ready,
			Running:   st.Tasks.Running,
			Completed: st.Tasks.Completed,
			Failed:    st.Tasks.Failed,
			Cancelled: st.Tasks.Cancelled,
		},
		QueueDepth: depth,
		Latency: LatencyResponse{
			P50: st.Latency.P50,
			P95: st.Latency.P95,
			P99: st.Latency.P99,
		},
	})
}

func (s *Server) spawnInstances(c *fiber.Ctx) error {
	var req SpawnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid", Message: err.Error()})
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	ids, err := s.orch.Pool().Spawn(context.Background(), req.Count, pool.SpawnOptions{
		ModelProfile:     req.ModelProfile,
		WorkingDirectory: req.WorkingDirectory,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(SpawnResponse{WorkerIDs: ids})
}

func (s *Server) listInstances(c *fiber.Ctx) error {
	snaps := s.orch.Pool().Snapshot()
	out := make([]WorkerResponse, len(snaps))
	for i, snap := range snaps {
		out[i] = toWorkerResponse(snap)
	}
	return c.JSON(out)
}

func (s *Server) getInstance(c *fiber.Ctx) error {
	snap, ok := s.orch.Pool().Get(c.Params("id"))
	if !ok {
		return writeError(c, pool.ErrUnknownWorker)
	}
	return c.JSON(toWorkerResponse(snap))
}

func (s *Server) terminateInstance(c *fiber.Ctx) error {
	err := s.orch.TerminateInstance(c.Params("id"), 5*time.Second)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(TerminateResponse{Terminated: true})
}

func (s *Server) scaleInstances(c *fiber.Ctx) error {
	var req ScaleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid", Message: err.Error()})
	}

	current, err := s.orch.Pool().ScaleTo(context.Background(), req.Target, pool.SpawnOptions{
		ModelProfile: req.ModelProfile,
	}, 5*time.Second)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ScaleResponse{Current: current})
}

func (s *Server) submitTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid", Message: err.Error()})
	}

	id, err := s.orch.Submit(req.toTask())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(TaskIDResponse{TaskID: id})
}

func (s *Server) submitTaskBatch(c *fiber.Ctx) error {
	var reqs []TaskRequest
	if err := c.BodyParser(&reqs); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid", Message: err.Error()})
	}

	tasks := make([]*queue.Task, len(reqs))
	for i, r := range reqs {
		tasks[i] = r.toTask()
	}

	ids, err := s.orch.SubmitBatch(tasks)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(TaskIDsResponse{TaskIDs: ids})
}

func (s *Server) listTasks(c *fiber.Ctx) error {
	stateFilter := c.Query("state")

	all := s.orch.Queue().List()
	out := make([]TaskResponse, 0, len(all))
	for _, t := range all {
		if stateFilter != "" && t.State.String() != stateFilter {
			continue
		}
		out = append(out, toTaskResponse(t))
	}
	return c.JSON(out)
}

func (s *Server) getTask(c *fiber.Ctx) error {
	t, ok := s.orch.Queue().Get(c.Params("id"))
	if !ok {
		return writeError(c, queue.ErrUnknownID)
	}
	return c.JSON(toTaskResponse(t))
}

func (s *Server) cancelTask(c *fiber.Ctx) error {
	cancelled := s.orch.Cancel(c.Params("id"))
	return c.JSON(CancelResponse{Cancelled: cancelled})
}

func (s *Server) executeWorkflow(c *fiber.Ctx) error {
	if s.wfExec == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal", Message: "workflow executor not configured"})
	}

	doc, err := workflowdoc.Parse(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid", Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), workflowTimeout(c))
	defer cancel()

	result, err := s.wfExec.Execute(ctx, doc)
	if err != nil {
		if result == nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal", Message: err.Error()})
	}

	tasks := make(map[string]TaskOutcomeJSON, len(result.Tasks))
	for name, o := range result.Tasks {
		outcome := TaskOutcomeJSON{TaskID: o.TaskID, State: o.State.String()}
		if o.Result != nil {
			outcome.Result = &ResultResponse{
				Output:   o.Result.Output,
				ExitCode: o.Result.ExitCode,
				Error:    o.Result.Error,
				Duration: o.Result.Duration,
			}
		}
		tasks[name] = outcome
	}

	return c.Status(fiber.StatusCreated).JSON(WorkflowResponse{
		WorkflowID: result.WorkflowID,
		TaskIDs:    result.TaskIDs,
		Tasks:      tasks,
		Warnings:   result.Warnings,
	})
}

// workflowTimeout reads an optional ?timeout_seconds= query parameter,
// defaulting to five minutes for the whole workflow run.
func workflowTimeout(c *fiber.Ctx) time.Duration {
	const defaultTimeout = 5 * time.Minute
	raw := c.Query("timeout_seconds")
	if raw == "" {
		return defaultTimeout
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return defaultTimeout
	}
	return time.Duration(secs) * time.Second
}
