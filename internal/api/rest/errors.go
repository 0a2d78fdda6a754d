package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/worker"
	"github.com/chrisarseno/claude-swarm/internal/workflow"
)

// statusFor maps an orchestrator-layer error to an HTTP status code, per the
// invalid/cycle/workflow -> 400, unknown-id -> 404, capacity -> 409,
// everything else -> 500 taxonomy.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrCycleDetected),
		errors.Is(err, queue.ErrAlreadyExists),
		errors.Is(err, workflow.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, queue.ErrUnknownID),
		errors.Is(err, pool.ErrUnknownWorker):
		return fiber.StatusNotFound
	case errors.Is(err, pool.ErrCapacityExceeded),
		errors.Is(err, pool.ErrNoWorkerAvailable):
		return fiber.StatusConflict
	case errors.Is(err, worker.ErrNotIdle):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	return c.Status(code).JSON(ErrorResponse{
		Error:   errorTag(code),
		Message: err.Error(),
	})
}

func errorTag(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "invalid"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusConflict:
		return "conflict"
	default:
		return "internal"
	}
}
