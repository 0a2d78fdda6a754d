package engine

import (
	"github.com/chrisarseno/claude-swarm/internal/metrics"
	"github.com/chrisarseno/claude-swarm/internal/queue"
)

// InstanceCounts tallies pool workers by lifecycle state.
type InstanceCounts struct {
	Total     int
	Idle      int
	Busy      int
	Unhealthy int
}

// Status is the aggregate view returned by GET /status.
type Status struct {
	Instances  InstanceCounts
	Tasks      queue.Counts
	QueueDepth map[queue.Priority]int
	Latency    metrics.Percentiles
}
