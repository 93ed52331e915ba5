package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/events"
	"github.com/openfroyo/actiontracker/pkg/resources"
	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

// SpanStarter opens the run and resource spans. *telemetry.Tracer
// implements it.
type SpanStarter interface {
	StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span)
	StartResourceSpan(ctx context.Context, identity, resourceType, action string) (context.Context, trace.Span)
}

// Engine converges declared resources sequentially and reports every step
// to an events.Handler.
type Engine struct {
	registry     *Registry
	handler      events.Handler
	logger       zerolog.Logger
	tracer       SpanStarter
	whyRun       bool
	guardTimeout time.Duration
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "engine").Logger()
	}
}

// WithTracer sets the span starter used for run and resource spans.
func WithTracer(tracer SpanStarter) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithWhyRun makes the engine predict changes instead of making them.
func WithWhyRun(whyRun bool) Option {
	return func(e *Engine) {
		e.whyRun = whyRun
	}
}

// WithGuardTimeout bounds the evaluation of each guard expression.
func WithGuardTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.guardTimeout = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine using registry to find providers.
func New(registry *Registry, handler events.Handler, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		handler:  handler,
		logger:   zerolog.Nop(),
		tracer:   telemetry.WrapTracer(otel.Tracer("github.com/openfroyo/actiontracker/pkg/engine")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Converge runs every declaration in order. It returns the error that failed
// the run, or nil when the run completed.
func (e *Engine) Converge(ctx context.Context, run *Run, declared []*resources.Declared) error {
	run.Started = e.now()

	ctx, span := e.tracer.StartRunSpan(ctx, run.ID)
	defer span.End()
	span.SetAttributes(
		attribute.String("run.node", run.Node),
		attribute.Bool("run.why_run", e.whyRun),
		attribute.Int("run.resources", len(declared)),
	)

	lc := e.logger.With().Str("run_id", run.ID).Str("node", run.Node)
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		lc = lc.Str("trace_id", traceID)
	}
	log := lc.Logger()

	e.handler.RunStarted(run)
	e.handler.RunListExpanded(identities(declared))

	rc := newRunContext(e.registry, declared)
	e.handler.ConvergeStart(rc)
	log.Info().Int("resources", len(declared)).Bool("why_run", e.whyRun).Msg("converge started")

	guards := NewGuardEvaluator(e.guardTimeout, run.Node)
	var err error
	for _, res := range declared {
		if cerr := ctx.Err(); cerr != nil {
			err = abortError(cerr)
			break
		}
		rc.markStarted(res)
		if _, err = e.convergeResource(ctx, guards, res); err != nil {
			break
		}
	}

	run.Ended = e.now()
	if err != nil {
		telemetry.RecordError(span, err)
		span.SetAttributes(telemetry.AttrRunStatus.String(string(actions.RunStatusFailure)))
		e.handler.ConvergeFailed(err)
		e.handler.RunFailed(err)
		log.Error().Err(err).Dur("duration", run.Duration()).Msg("converge failed")
		return err
	}

	telemetry.RecordSuccess(span)
	span.SetAttributes(telemetry.AttrRunStatus.String(string(actions.RunStatusSuccess)))
	e.handler.ConvergeComplete()
	e.handler.RunCompleted(run.Node)
	log.Info().Dur("duration", run.Duration()).Msg("converge completed")
	return nil
}

// FailRun reports a run that failed before converge could start, e.g.
// because its declarations could not be loaded.
func (e *Engine) FailRun(run *Run, err error) {
	run.Started = e.now()
	e.handler.RunStarted(run)
	e.handler.RunListExpandFailed(run.Node, err)
	run.Ended = e.now()
	e.handler.RunFailed(err)
	e.logger.Error().Err(err).Str("run_id", run.ID).Msg("run failed before converge")
}

// convergeResource emits the action production for res and its children.
// It returns whether res was updated. A non-nil error aborts the run.
func (e *Engine) convergeResource(ctx context.Context, guards *GuardEvaluator, res *resources.Declared) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, abortError(err)
	}

	provider, action, rerr := e.registry.Resolve(res)
	e.handler.ResourceActionStart(res, action)

	ctx, span := e.tracer.StartResourceSpan(ctx, res.Identity(), res.ResourceType, action)
	defer span.End()

	start := e.now()
	out := e.runAction(ctx, guards, res, provider, action, rerr)
	res.SetElapsedTime(e.now().Sub(start))

	log := e.logger.With().Str("resource", res.Identity()).Str("action", action).Logger()

	// An abort or a failure raised below this resource unwinds it without a
	// terminal event; the failed descendant's record is still on top.
	if out.err != nil && (out.unwound || errors.Is(out.err, ErrAborted)) {
		span.SetStatus(codes.Error, "aborted")
		return false, out.err
	}

	switch {
	case out.err != nil:
		telemetry.RecordError(span, out.err)
		e.handler.ResourceFailed(res, action, out.err)
		if !res.IgnoreFailure {
			log.Error().Err(out.err).Msg("resource action failed")
			return false, out.err
		}
		log.Warn().Err(out.err).Msg("resource action failed, continuing")
	case out.skippedBy != nil:
		e.handler.ResourceSkipped(res, action, out.skippedBy)
		log.Debug().Str("conditional", out.skippedBy.Description()).Msg("resource action skipped")
	case out.updated:
		e.handler.ResourceUpdated(res, action)
		log.Info().Msg("resource updated")
	default:
		e.handler.ResourceUpToDate(res, action)
		log.Debug().Msg("resource up to date")
	}

	if out.err == nil {
		telemetry.RecordSuccess(span)
	}
	e.handler.ResourceCompleted(res)
	return out.updated, nil
}

type outcome struct {
	updated   bool
	skippedBy actions.Conditional
	err       error
	unwound   bool
}

func (e *Engine) runAction(ctx context.Context, guards *GuardEvaluator, res *resources.Declared, provider Provider, action string, rerr error) outcome {
	if rerr != nil {
		return outcome{err: rerr}
	}

	cond, err := guards.FirstBlocking(ctx, res)
	if err != nil {
		return outcome{err: withContext(err, res, action)}
	}
	if cond != nil {
		return outcome{skippedBy: cond}
	}

	whyRun, canWhyRun := provider.(WhyRunSupporter)
	if e.whyRun && !canWhyRun {
		return outcome{skippedBy: WhyRunSkip{ResourceType: res.ResourceType}}
	}

	current, err := provider.LoadCurrentState(ctx, res)
	if err != nil {
		return outcome{err: NewPermanentError("failed to load current state", err).
			WithCode(ErrCodeLoadState).
			WithResource(res.Identity()).
			WithAction(action)}
	}
	if current != nil {
		e.handler.ResourceCurrentStateLoaded(res, action, current)
	}

	var changed bool
	if e.whyRun {
		changed, err = whyRun.WouldConverge(ctx, res, current, action)
	} else {
		changed, err = provider.Converge(ctx, res, current, action)
	}
	if err != nil {
		return outcome{err: withContext(err, res, action)}
	}

	for _, child := range res.Children {
		childUpdated, err := e.convergeResource(ctx, guards, child)
		if err != nil {
			return outcome{err: err, unwound: true}
		}
		changed = changed || childUpdated
	}

	return outcome{updated: changed}
}

// withContext classifies provider errors that are not already classified.
func withContext(err error, res *resources.Declared, action string) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		if ee.Resource == "" {
			ee.Resource = res.Identity()
		}
		if ee.Action == "" {
			ee.Action = action
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return abortError(err)
	}
	return NewPermanentError("provider failed", err).
		WithCode(ErrCodeProviderFailed).
		WithResource(res.Identity()).
		WithAction(action)
}

func identities(declared []*resources.Declared) []string {
	out := make([]string, len(declared))
	for i, res := range declared {
		out[i] = res.Identity()
	}
	return out
}
