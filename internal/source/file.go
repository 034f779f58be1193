package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nlowell/chainsignal/internal/signal"
)

// FileSource loads signals from a YAML seed file. It exists mainly to
// preload demo or replay data; the manager polls it like any other source,
// so edits to the file show up on the next cycle.
type FileSource struct {
	name string
	path string
}

// seedFile mirrors the HTTP envelope so one fixture serves both sources.
type seedFile struct {
	Signals []*signal.Signal `yaml:"signals"`
}

// NewFileSource creates a file source.
func NewFileSource(name, path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("file source path is required")
	}
	if name == "" {
		name = "file"
	}
	return &FileSource{name: name, path: path}, nil
}

// Name returns the configured source identifier.
func (s *FileSource) Name() string {
	return s.name
}

// Fetch parses the seed file.
func (s *FileSource) Fetch(ctx context.Context) ([]*signal.Signal, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", s.path, err)
	}
	return seed.Signals, nil
}

// HealthCheck verifies the seed file is still readable.
func (s *FileSource) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("seed file unavailable: %w", err)
	}
	return nil
}
