package workflowdoc

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a workflow document from YAML bytes, strictly: any key not
// named in Document/TaskSpec fails decoding rather than being silently
// ignored.
func Parse(data []byte) (*Document, error) {
	var doc Document

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and parses a workflow document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow document %s: %w", path, err)
	}
	return Parse(data)
}

// validate checks structural invariants the YAML schema alone cannot
// express: a non-empty task list, unique task names, and exactly one
// payload kind per task.
func validate(doc *Document) error {
	if doc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(doc.Tasks) == 0 {
		return fmt.Errorf("%w: at least one task is required", ErrInvalid)
	}

	seen := make(map[string]bool, len(doc.Tasks))
	for i, t := range doc.Tasks {
		if t.Name == "" {
			return fmt.Errorf("%w: tasks[%d].name is required", ErrInvalid, i)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate task name %q", ErrInvalid, t.Name)
		}
		seen[t.Name] = true

		if t.Prompt == "" && t.Command == "" {
			return fmt.Errorf("%w: task %q must set prompt or command", ErrInvalid, t.Name)
		}
		if t.Prompt != "" && t.Command != "" {
			return fmt.Errorf("%w: task %q sets both prompt and command", ErrInvalid, t.Name)
		}
	}

	for _, t := range doc.Tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("%w: task %q depends on unknown task %q", ErrInvalid, t.Name, dep)
			}
		}
	}

	return nil
}
