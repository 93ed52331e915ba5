package config

import (
	"testing"
	"time"

	"github.com/openfroyo/actiontracker/pkg/actions"
)

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Node == "" {
		t.Error("expected a node name")
	}
	if cfg.Report.Format != "yaml" || cfg.Report.Output != "-" {
		t.Errorf("unexpected report defaults %+v", cfg.Report)
	}
	if got := cfg.Report.StatusFilter(); len(got) != len(actions.AllStatuses()) {
		t.Errorf("empty status list should select every status, got %v", got)
	}
}

func TestLoadRunConfig(t *testing.T) {
	path := writeFile(t, "run.yaml", `
node: web-01
why_run: true
guard_timeout: 2s
report:
  format: json
  max_nesting: 1
  statuses: [failed, unprocessed]
telemetry:
  logging:
    level: debug
`)

	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig failed: %v", err)
	}

	if cfg.Node != "web-01" || !cfg.WhyRun || cfg.GuardTimeout != 2*time.Second {
		t.Errorf("unexpected run config %+v", cfg)
	}
	if cfg.Report.Format != "json" || cfg.Report.MaxNesting != 1 {
		t.Errorf("unexpected report config %+v", cfg.Report)
	}
	if cfg.Report.Output != "-" {
		t.Errorf("unset fields should keep defaults, got output %q", cfg.Report.Output)
	}
	statuses := cfg.Report.StatusFilter()
	if len(statuses) != 2 || statuses[0] != actions.StatusFailed || statuses[1] != actions.StatusUnprocessed {
		t.Errorf("unexpected statuses %v", statuses)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("unexpected logging config %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadRunConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad format", "report:\n  format: xml\n"},
		{"bad status", "report:\n  statuses: [pending]\n"},
		{"negative nesting", "report:\n  max_nesting: -1\n"},
		{"unknown field", "nodes: web-01\n"},
		{"empty node", "node: \"\"\n"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadRunConfig(writeFile(t, "run.yaml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRunConfigEmpty(t *testing.T) {
	cfg, err := LoadRunConfig("")
	if err != nil {
		t.Fatalf("LoadRunConfig(\"\") failed: %v", err)
	}
	if cfg.StatePath != "froyo.db" {
		t.Errorf("expected default state path, got %q", cfg.StatePath)
	}

	cfg, err = LoadRunConfig(writeFile(t, "run.yaml", ""))
	if err != nil {
		t.Fatalf("empty file should load defaults: %v", err)
	}
	if cfg.GuardTimeout != 5*time.Second {
		t.Errorf("unexpected guard timeout %v", cfg.GuardTimeout)
	}
}
