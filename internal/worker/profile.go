package worker

// newDriver selects a driver implementation for cfg.ModelProfile. "claude",
// "codex", and "goose" are session-resuming CLI profiles; "shell" is a
// persistent shell process reading commands from a pipe.
func newDriver(cfg Config, procMgr *ProcessManager) (driver, error) {
	switch cfg.ModelProfile {
	case "claude", "codex", "goose":
		return newSessionDriver(cfg, procMgr)
	case "shell":
		return newShellDriver(cfg, procMgr), nil
	default:
		return nil, ErrUnknownProfile
	}
}
