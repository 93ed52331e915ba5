package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/actiontracker/pkg/resources"
)

// publicAttributes are passed to policies even for sensitive resources.
var publicAttributes = map[string]bool{
	"path": true,
	"mode": true,
}

const sensitiveValue = "[SENSITIVE]"

// Engine evaluates Rego policies against declared resources before a run.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
	actionOf func(*resources.Declared) string
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy *Policy
	query  rego.PreparedEvalQuery
}

// Option configures an Engine.
type Option func(*Engine)

// WithActionResolver sets how the action of a declaration without an
// explicit action is resolved, typically the provider registry's default.
func WithActionResolver(fn func(*resources.Declared) string) Option {
	return func(e *Engine) {
		e.actionOf = fn
	}
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
		actionOf: func(res *resources.Declared) string { return res.Action },
	}
	for _, opt := range opts {
		opt(e)
	}

	builtins := BuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(context.Background(), &builtins[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}
	e.logger.Debug().Int("count", len(builtins)).Msg("Built-in policies loaded")

	return e, nil
}

// LoadPolicies loads and compiles policy files. A policy with the name of
// an already loaded one replaces it.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded")

	return nil
}

// Evaluate runs every enabled policy against every declaration and its
// sub-declarations.
func (e *Engine) Evaluate(ctx context.Context, declared []*resources.Declared, rc Context) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true}
	for _, cp := range e.sortedPolicies() {
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, cp.policy.Name)

		for _, top := range declared {
			var evalErr error
			walkWithParent(top, "", func(res *resources.Declared, depth int, parent string) {
				if evalErr != nil {
					return
				}
				input := e.input(res, depth, parent, rc)
				violations, err := e.evaluatePolicy(ctx, cp, input)
				if err != nil {
					evalErr = err
					return
				}
				result.add(violations)
			})
			if evalErr != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.logger.Error().Err(evalErr).
					Str("policy", cp.policy.Name).
					Msg("Policy evaluation failed")
				result.Warnings = append(result.Warnings, Violation{
					Policy:   cp.policy.Name,
					Message:  fmt.Sprintf("evaluation failed: %v", evalErr),
					Severity: SeverityWarning,
				})
			}
		}
	}

	for _, w := range result.Warnings {
		e.logger.Warn().Str("policy", w.Policy).Str("resource", w.Resource).Msg(w.Message)
	}
	return result, nil
}

// EvaluateResource runs every enabled policy against a single top-level
// declaration, ignoring its children.
func (e *Engine) EvaluateResource(ctx context.Context, res *resources.Declared, rc Context) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true}
	input := e.input(res, 0, "", rc)
	for _, cp := range e.sortedPolicies() {
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, cp.policy.Name)
		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", cp.policy.Name, err)
		}
		result.add(violations)
	}
	return result, nil
}

func (r *Result) add(violations []Violation) {
	for _, v := range violations {
		if v.Severity.Blocking() {
			r.Allowed = false
			r.Violations = append(r.Violations, v)
		} else {
			r.Warnings = append(r.Warnings, v)
		}
	}
}

func walkWithParent(res *resources.Declared, parent string, fn func(*resources.Declared, int, string)) {
	var walk func(r *resources.Declared, depth int, parent string)
	walk = func(r *resources.Declared, depth int, parent string) {
		fn(r, depth, parent)
		for _, c := range r.Children {
			walk(c, depth+1, r.Identity())
		}
	}
	walk(res, 0, parent)
}

func (e *Engine) input(res *resources.Declared, depth int, parent string, rc Context) *Input {
	action := e.actionOf(res)
	if action == "" {
		action = res.Action
	}

	attrs := make(map[string]interface{}, len(res.Attributes))
	for k, v := range res.Attributes {
		if res.Sensitive && !publicAttributes[k] {
			v = sensitiveValue
		}
		attrs[k] = v
	}

	return &Input{
		Resource: ResourceInput{
			Type:          res.ResourceType,
			Name:          res.ResourceName,
			Identity:      res.Identity(),
			Action:        action,
			Attributes:    attrs,
			Sensitive:     res.Sensitive,
			IgnoreFailure: res.IgnoreFailure,
			Guarded:       res.OnlyIf != "" || res.NotIf != "",
			NestingLevel:  depth,
			Parent:        parent,
			Children:      len(res.Children),
		},
		Context: rc,
	}
}

// evaluatePolicy evaluates a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		// deny is a set, which evaluates to a slice
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d, input))
		}
	}
	return violations, nil
}

// createViolation creates a Violation from a deny entry, which is either a
// message or an object with message, severity and resource.
func createViolation(policy *Policy, result interface{}, input *Input) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Resource: input.Resource.Identity,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if res, ok := v["resource"].(string); ok {
			violation.Resource = res
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy compiles a policy and stores it. The caller holds
// the write lock, except during construction.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}
	if module == nil {
		return fmt.Errorf("policy %s is empty", policy.Name)
	}

	query, err := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy: policy,
		query:  query,
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled")

	return nil
}

func (e *Engine) sortedPolicies() []*compiledPolicy {
	out := make([]*compiledPolicy, 0, len(e.policies))
	for _, cp := range e.policies {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].policy.Name < out[j].policy.Name })
	return out
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.sortedPolicies() {
		policies = append(policies, *cp.policy)
	}
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")
	return nil
}
