// Package workflowdoc parses the declarative YAML workflow document format
// into an in-memory Document, ready for the workflow executor to expand
// into a batch of tasks.
package workflowdoc

import "time"

// TaskSpec is one task entry in a workflow document. Exactly one of Prompt
// or Command should be set; Instance, DependsOn, and Timeout are optional.
type TaskSpec struct {
	Name          string        `yaml:"name"`
	Prompt        string        `yaml:"prompt,omitempty"`
	Command       string        `yaml:"command,omitempty"`
	Directory     string        `yaml:"directory,omitempty"`
	Instance      int           `yaml:"instance,omitempty"` // 1-based, per-workflow
	DependsOn     []string      `yaml:"depends_on,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Priority      string        `yaml:"priority,omitempty"`
}

// Document is a parsed workflow file: a name, how many worker instances it
// wants, and an ordered list of task specs referencing each other by name.
type Document struct {
	Name      string     `yaml:"name"`
	Instances int        `yaml:"instances"`
	Tasks     []TaskSpec `yaml:"tasks"`
}
