package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

// RunConfig holds the settings of a converge run.
type RunConfig struct {
	// Node names the node being converged. Defaults to the hostname.
	Node string `yaml:"node" validate:"required"`

	// WhyRun reports what would change without changing anything.
	WhyRun bool `yaml:"why_run"`

	// StatePath is the SQLite database runs are recorded in. Empty disables
	// the audit trail.
	StatePath string `yaml:"state_path"`

	// GuardTimeout bounds each only_if/not_if evaluation.
	GuardTimeout time.Duration `yaml:"guard_timeout" validate:"gte=0"`

	// PolicyPaths are .rego/.json files or directories evaluated on top of
	// the built-in policies before a run.
	PolicyPaths []string `yaml:"policy_paths,omitempty"`

	Report    ReportConfig     `yaml:"report"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ReportConfig selects what the end-of-run summary contains.
type ReportConfig struct {
	// Format is yaml or json.
	Format string `yaml:"format" validate:"oneof=yaml json"`

	// Output is a file path, "-" for stdout, or empty to disable the summary.
	Output string `yaml:"output"`

	// MaxNesting is the deepest nesting level included.
	MaxNesting int `yaml:"max_nesting" validate:"gte=0"`

	// Statuses are the record statuses included. Empty means all.
	Statuses []string `yaml:"statuses,omitempty" validate:"dive,oneof=up_to_date skipped updated failed unprocessed"`
}

// StatusFilter returns the configured statuses, or every status when none
// are configured.
func (r ReportConfig) StatusFilter() []actions.Status {
	if len(r.Statuses) == 0 {
		return actions.AllStatuses()
	}
	out := make([]actions.Status, len(r.Statuses))
	for i, s := range r.Statuses {
		out[i] = actions.Status(s)
	}
	return out
}

// DefaultRunConfig returns the default run configuration.
func DefaultRunConfig() *RunConfig {
	node, err := os.Hostname()
	if err != nil || node == "" {
		node = "localhost"
	}
	return &RunConfig{
		Node:         node,
		StatePath:    "froyo.db",
		GuardTimeout: 5 * time.Second,
		Report: ReportConfig{
			Format:     "yaml",
			Output:     "-",
			MaxNesting: 0,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid run config: %w", err)
	}
	return nil
}

// LoadRunConfig reads a YAML run configuration over the defaults. An empty
// path returns the defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}
	if err := cfg.merge(data); err != nil {
		return nil, fmt.Errorf("failed to parse run config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RunConfig) merge(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
