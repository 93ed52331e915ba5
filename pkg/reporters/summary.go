package reporters

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/events"
)

// Summary is the end-of-run document.
type Summary struct {
	RunID            string              `json:"run_id" yaml:"run_id"`
	Node             string              `json:"node" yaml:"node"`
	Status           string              `json:"status" yaml:"status"`
	StartTime        time.Time           `json:"start_time" yaml:"start_time"`
	EndTime          time.Time           `json:"end_time" yaml:"end_time"`
	Duration         string              `json:"duration" yaml:"duration"`
	TotalResources   int                 `json:"total_resources" yaml:"total_resources"`
	Totals           map[string]int      `json:"totals" yaml:"totals"`
	Exception        string              `json:"exception,omitempty" yaml:"exception,omitempty"`
	ErrorDescription actions.Description `json:"error_description,omitempty" yaml:"error_description,omitempty"`
	Records          []SummaryRecord     `json:"records" yaml:"records"`
}

// SummaryRecord is one action in the summary.
type SummaryRecord struct {
	Resource     string `json:"resource" yaml:"resource"`
	Action       string `json:"action" yaml:"action"`
	Status       string `json:"status" yaml:"status"`
	NestingLevel int    `json:"nesting_level" yaml:"nesting_level"`
	Elapsed      string `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	Conditional  string `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	Sensitive    bool   `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
}

// BuildSummary assembles the summary of c. Totals count every record; the
// record list holds only those nested no deeper than maxNesting with a
// listed status.
func BuildSummary(c *actions.ActionCollection, maxNesting int, statuses ...actions.Status) Summary {
	s := Summary{
		RunID:            c.RunID(),
		Node:             c.NodeName(),
		Status:           string(c.RunStatus()),
		StartTime:        c.StartTime(),
		EndTime:          c.EndTime(),
		Duration:         runDuration(c).String(),
		TotalResources:   c.TotalResourceCount(),
		Totals:           totals(c),
		Exception:        errString(c.Exception()),
		ErrorDescription: c.ErrorDescription(),
		Records:          []SummaryRecord{},
	}
	for _, r := range c.Filtered(maxNesting, statuses...) {
		rec := SummaryRecord{
			Resource:     r.Resource.Identity(),
			Action:       r.Action,
			Status:       string(r.Status),
			NestingLevel: r.NestingLevel,
			Error:        errString(r.Exception),
			Conditional:  conditionalString(r.Conditional),
			Sensitive:    r.Resource.IsSensitive(),
		}
		if d, ok := r.ElapsedTime(); ok {
			rec.Elapsed = d.String()
		}
		s.Records = append(s.Records, rec)
	}
	return s
}

// Encode writes s in format, yaml or json.
func (s Summary) Encode(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported summary format %q", format)
	}
}

// SummaryReporter writes the run summary when the run ends.
type SummaryReporter struct {
	events.NopHandler
	subscription

	out        io.Writer
	format     string
	maxNesting int
	statuses   []actions.Status
	logger     zerolog.Logger
	err        error
}

// SummaryOption configures a SummaryReporter.
type SummaryOption func(*SummaryReporter)

// WithFormat selects yaml or json output.
func WithFormat(format string) SummaryOption {
	return func(r *SummaryReporter) { r.format = format }
}

// WithFilter limits the listed records.
func WithFilter(maxNesting int, statuses ...actions.Status) SummaryOption {
	return func(r *SummaryReporter) {
		r.maxNesting = maxNesting
		r.statuses = statuses
	}
}

// WithSummaryLogger sets the reporter logger.
func WithSummaryLogger(logger zerolog.Logger) SummaryOption {
	return func(r *SummaryReporter) {
		r.logger = logger.With().Str("component", "summary_reporter").Logger()
	}
}

// NewSummaryReporter creates a reporter writing YAML summaries of every
// status at nesting level 0 to out.
func NewSummaryReporter(out io.Writer, opts ...SummaryOption) *SummaryReporter {
	r := &SummaryReporter{
		out:      out,
		format:   "yaml",
		statuses: actions.AllStatuses(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ActionCollectionRegistration registers the reporter as a consumer.
func (r *SummaryReporter) ActionCollectionRegistration(c *actions.ActionCollection) {
	r.subscribe(c, r)
}

func (r *SummaryReporter) RunCompleted(string) { r.write() }
func (r *SummaryReporter) RunFailed(error)     { r.write() }

// Err returns the error of the last write, if any.
func (r *SummaryReporter) Err() error {
	return r.err
}

func (r *SummaryReporter) write() {
	if r.collection == nil {
		return
	}
	s := BuildSummary(r.collection, r.maxNesting, r.statuses...)
	if err := s.Encode(r.out, r.format); err != nil {
		r.err = fmt.Errorf("failed to write run summary: %w", err)
		r.logger.Error().Err(err).Str("run_id", s.RunID).Msg("failed to write run summary")
		return
	}
	r.logger.Debug().Str("run_id", s.RunID).Int("records", len(s.Records)).Msg("run summary written")
}
