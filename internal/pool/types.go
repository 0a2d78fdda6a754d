// Package pool implements the InstancePool: lifecycle, health, affinity, and
// scaling for the set of Workers an Orchestrator dispatches tasks onto.
package pool

import "time"

// Config configures a Pool.
type Config struct {
	MaxInstances int // hard ceiling on pool cardinality

	// IdleTimeout reaps a worker that has sat IDLE this long, bounding
	// resource usage when load drops. Zero disables idle reaping.
	IdleTimeout time.Duration

	// AutoHeal respawns a replacement worker for every one the health
	// sweep demotes to UNHEALTHY or reaps for idling too long.
	AutoHeal bool

	// SpawnMaxRetries bounds the backoff-retried spawn attempts per worker
	// before giving up on that slot.
	SpawnMaxRetries uint64
}

// SpawnOptions customizes workers created by Spawn.
type SpawnOptions struct {
	ModelProfile     string
	Command          string
	Model            string
	SystemPrompt     string
	WorkingDirectory string
	OutputBufferSize int
	StartupGrace     time.Duration
}
