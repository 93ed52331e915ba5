package reporters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/errormapper"
	"github.com/openfroyo/actiontracker/pkg/events"
	"github.com/openfroyo/actiontracker/pkg/resources"
	"github.com/openfroyo/actiontracker/pkg/stores"
	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

type unreached []actions.PlannedAction

func (u unreached) UnreachedActions() []actions.PlannedAction { return u }

var errDiskFull = engine.NewPermanentError("disk full", nil).WithCode(engine.ErrCodeProviderFailed)

// setupBus wires a collection ahead of the given reporters, the way a
// converge run does.
func setupBus(t *testing.T, reporters ...events.Handler) (*actions.ActionCollection, *events.Dispatcher) {
	t.Helper()

	c := actions.New(actions.WithErrorMapper(errormapper.New()))
	d := events.NewDispatcher(c)
	for _, r := range reporters {
		d.Register(r)
	}
	c.SetAnnouncer(d)
	return c, d
}

// failedRun replays a run whose nested file action fails:
//
//	composite[app]
//	  file[/a]       updated
//	  file[/secret]  failed (sensitive)
//	log[done]        never reached
func failedRun(d *events.Dispatcher) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &engine.Run{ID: "run-1", Node: "web-01", Started: start}

	app := resources.New("composite", "app")
	a := resources.New("file", "/a")
	secret := resources.New("file", "/secret").WithAttribute("content", "hunter2").MarkSensitive()
	done := resources.New("log", "done")

	d.RunStarted(run)
	d.RunListExpanded([]string{app.Identity(), done.Identity()})
	d.ConvergeStart(unreached{{Resource: done, Action: "write"}})

	d.ResourceActionStart(app, "converge")
	d.ResourceActionStart(a, "create")
	a.SetElapsedTime(2 * time.Second)
	d.ResourceUpdated(a, "create")
	d.ResourceCompleted(a)
	d.ResourceActionStart(secret, "create")
	d.ResourceFailed(secret, "create", errDiskFull)

	run.Ended = start.Add(5 * time.Second)
	d.ConvergeFailed(errDiskFull)
	d.RunFailed(errDiskFull)
}

func TestReportersRegisterAtConvergeStart(t *testing.T) {
	summary := NewSummaryReporter(&bytes.Buffer{})
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	c, d := setupBus(t, summary, NewMetricsReporter(metrics))

	d.RunStarted(engine.NewRun("web-01"))
	if c.Tracking() || summary.Collection() != nil {
		t.Fatal("reporters should not register before converge start")
	}

	d.ConvergeStart(unreached{})
	if !c.Tracking() || c.Consumers() != 2 {
		t.Errorf("expected 2 consumers, got %d", c.Consumers())
	}
	if summary.Collection() != c {
		t.Error("summary reporter did not keep the collection")
	}
}

func TestSummaryReporter(t *testing.T) {
	tests := []struct {
		name   string
		format string
		decode func([]byte, interface{}) error
	}{
		{name: "yaml", format: "yaml", decode: yaml.Unmarshal},
		{name: "json", format: "json", decode: json.Unmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			summary := NewSummaryReporter(&out, WithFormat(tt.format), WithFilter(1, actions.AllStatuses()...))
			_, d := setupBus(t, summary)
			failedRun(d)

			if err := summary.Err(); err != nil {
				t.Fatalf("summary failed: %v", err)
			}

			var got Summary
			if err := tt.decode(out.Bytes(), &got); err != nil {
				t.Fatalf("failed to decode summary: %v\n%s", err, out.String())
			}
			if got.RunID != "run-1" || got.Node != "web-01" || got.Status != "failure" {
				t.Errorf("unexpected run fields %+v", got)
			}
			if got.Duration != "5s" || got.TotalResources != 2 {
				t.Errorf("unexpected duration %s or total %d", got.Duration, got.TotalResources)
			}
			if got.Totals["unprocessed"] != 2 || got.Totals["failed"] != 1 || got.Totals["updated"] != 1 {
				t.Errorf("unexpected totals %v", got.Totals)
			}
			if got.ErrorDescription == nil || got.Exception == "" {
				t.Error("failure not described")
			}

			want := []string{
				"file[/a] updated 1",
				"file[/secret] failed 1",
				"composite[app] unprocessed 0",
				"log[done] unprocessed 0",
			}
			if len(got.Records) != len(want) {
				t.Fatalf("expected %d records, got %d", len(want), len(got.Records))
			}
			for i, r := range got.Records {
				line := fmt.Sprintf("%s %s %d", r.Resource, r.Status, r.NestingLevel)
				if line != want[i] {
					t.Errorf("record %d = %q, want %q", i, line, want[i])
				}
			}
			if got.Records[0].Elapsed != "2s" || got.Records[2].Elapsed != "" {
				t.Errorf("unexpected elapsed times %q %q", got.Records[0].Elapsed, got.Records[2].Elapsed)
			}
			if !got.Records[1].Sensitive || got.Records[1].Error == "" {
				t.Errorf("unexpected failed record %+v", got.Records[1])
			}
			if strings.Contains(out.String(), "hunter2") {
				t.Error("sensitive attribute leaked into the summary")
			}
		})
	}
}

func TestSummaryReporterFilter(t *testing.T) {
	var out bytes.Buffer
	summary := NewSummaryReporter(&out, WithFilter(0, actions.StatusFailed, actions.StatusUnprocessed))
	c, d := setupBus(t, summary)
	failedRun(d)

	s := BuildSummary(c, 0, actions.StatusFailed, actions.StatusUnprocessed)
	if len(s.Records) != 2 || s.Records[0].Resource != "composite[app]" || s.Records[1].Resource != "log[done]" {
		t.Errorf("unexpected filtered records %+v", s.Records)
	}
	if s.Totals["updated"] != 1 {
		t.Error("totals should count every record regardless of the filter")
	}
	if !strings.Contains(out.String(), "composite[app]") || strings.Contains(out.String(), "file[/a]") {
		t.Errorf("written summary does not honor the filter:\n%s", out.String())
	}
}

func TestSummaryReporterSkipsRunsThatNeverConverged(t *testing.T) {
	var out bytes.Buffer
	summary := NewSummaryReporter(&out)
	_, d := setupBus(t, summary)

	d.RunStarted(engine.NewRun("web-01"))
	d.RunListExpandFailed("web-01", errDiskFull)
	d.RunFailed(errDiskFull)

	if out.Len() != 0 {
		t.Errorf("expected no summary, got:\n%s", out.String())
	}
}

func TestSummaryEncodeUnknownFormat(t *testing.T) {
	if err := (Summary{}).Encode(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestAuditReporter(t *testing.T) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(t.TempDir(), "froyo.db")})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	audit := NewAuditReporter(store, zerolog.Nop())
	_, d := setupBus(t, audit)
	failedRun(d)

	if err := audit.Err(); err != nil {
		t.Fatalf("audit failed: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != "failure" || run.TotalResources != 2 || run.Exception == nil {
		t.Errorf("unexpected run %+v", run)
	}
	if run.ErrorDescription["title"] == nil || run.ErrorDescription["code"] != engine.ErrCodeProviderFailed {
		t.Errorf("error description not stored: %v", run.ErrorDescription)
	}

	records, err := store.ListActionRecords(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0].Elapsed == nil || *records[0].Elapsed != 2*time.Second {
		t.Errorf("elapsed not stored: %v", records[0].Elapsed)
	}
	if !records[1].Sensitive || records[1].Exception == nil {
		t.Errorf("unexpected failed record %+v", records[1])
	}
	if records[3].Identity != "log[done]" || records[3].Status != "unprocessed" {
		t.Errorf("unexpected last record %+v", records[3])
	}
}

func TestMetricsReporter(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "froyo"})
	if err != nil {
		t.Fatal(err)
	}
	_, d := setupBus(t, NewMetricsReporter(metrics))
	failedRun(d)

	expected := `
# HELP froyo_actions_recorded_total Total number of finalized action records by status
# TYPE froyo_actions_recorded_total counter
froyo_actions_recorded_total{resource_type="composite",status="unprocessed"} 1
froyo_actions_recorded_total{resource_type="file",status="failed"} 1
froyo_actions_recorded_total{resource_type="file",status="updated"} 1
froyo_actions_recorded_total{resource_type="log",status="unprocessed"} 1
# HELP froyo_active_runs Current number of converge runs in progress
# TYPE froyo_active_runs gauge
froyo_active_runs 0
# HELP froyo_errors_total Total number of failures by error class and code
# TYPE froyo_errors_total counter
froyo_errors_total{class="permanent",code="PROVIDER_FAILED"} 1
# HELP froyo_runs_total Total number of converge runs by outcome
# TYPE froyo_runs_total counter
froyo_runs_total{status="failure"} 1
`
	if err := testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"froyo_actions_recorded_total", "froyo_active_runs", "froyo_errors_total", "froyo_runs_total"); err != nil {
		t.Error(err)
	}
	count, err := testutil.GatherAndCount(metrics.Registry(), "froyo_action_duration_seconds")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected one measured duration series, got %d", count)
	}
}

func TestEventReporter(t *testing.T) {
	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	var got []telemetry.Event
	publisher.Subscribe(func(e telemetry.Event) { got = append(got, e) }, nil)

	_, d := setupBus(t, NewEventReporter(publisher, zerolog.Nop()))
	failedRun(d)

	wantTypes := []string{
		telemetry.EventTypeRunStarted,
		telemetry.EventTypeActionRecorded,
		telemetry.EventTypeActionRecorded,
		telemetry.EventTypeActionRecorded,
		telemetry.EventTypeActionRecorded,
		telemetry.EventTypeRunFailed,
	}
	if len(got) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(got))
	}
	for i, e := range got {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, e.Type, wantTypes[i])
		}
		if e.RunID != "run-1" {
			t.Errorf("event %d run id = %q", i, e.RunID)
		}
	}
	if got[2].Resource != "file[/secret]" || got[2].Level != telemetry.EventLevelError {
		t.Errorf("unexpected failed action event %+v", got[2])
	}
	totals, ok := got[5].Data["totals"].(map[string]int)
	if !ok || totals["unprocessed"] != 2 {
		t.Errorf("unexpected run totals %v", got[5].Data["totals"])
	}
}
