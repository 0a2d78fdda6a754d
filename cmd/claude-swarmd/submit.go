package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/chrisarseno/claude-swarm/internal/api/rest"
)

var (
	submitServerAddr string
	submitName       string
	submitCommand    string
	submitPrompt     string
	submitDirectory  string
	submitPriority   string
	submitPinned     string
	submitTimeout    time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a single task to a running orchestrator",
	RunE:  runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitServerAddr, "server", "http://localhost:8080", "orchestrator base URL")
	submitCmd.Flags().StringVar(&submitName, "name", "", "task name")
	submitCmd.Flags().StringVar(&submitCommand, "command", "", "shell command to run")
	submitCmd.Flags().StringVar(&submitPrompt, "prompt", "", "prompt to run (mutually exclusive with --command)")
	submitCmd.Flags().StringVar(&submitDirectory, "directory", "", "working directory for --command")
	submitCmd.Flags().StringVar(&submitPriority, "priority", "normal", "critical|high|normal|low")
	submitCmd.Flags().StringVar(&submitPinned, "pinned-instance", "", "pin to a specific worker id")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 0, "task timeout (0 uses the server's default)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if submitCommand == "" && submitPrompt == "" {
		return withCode(exitUsage, fmt.Errorf("exactly one of --command or --prompt is required"))
	}
	if submitCommand != "" && submitPrompt != "" {
		return withCode(exitUsage, fmt.Errorf("--command and --prompt are mutually exclusive"))
	}

	body, err := json.Marshal(rest.TaskRequest{
		Name:           submitName,
		Prompt:         submitPrompt,
		Command:        submitCommand,
		Directory:      submitDirectory,
		Priority:       submitPriority,
		PinnedInstance: submitPinned,
		Timeout:        submitTimeout,
	})
	if err != nil {
		return withCode(exitFailure, err)
	}

	agent := fiber.AcquireClient()
	defer fiber.ReleaseClient(agent)

	req := agent.Post(submitServerAddr + "/tasks")
	req.Body(body)
	req.Set("Content-Type", "application/json")

	statusCode, respBody, errs := req.Bytes()
	if len(errs) > 0 {
		return withCode(exitFailure, fmt.Errorf("submitting task: %w", errs[0]))
	}
	if statusCode != fiber.StatusCreated {
		var errResp rest.ErrorResponse
		json.Unmarshal(respBody, &errResp)
		return withCode(exitFailure, fmt.Errorf("submit failed (%d): %s", statusCode, errResp.Message))
	}

	var resp rest.TaskIDResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return withCode(exitFailure, fmt.Errorf("decoding response: %w", err))
	}

	fmt.Println(resp.TaskID)
	return nil
}
