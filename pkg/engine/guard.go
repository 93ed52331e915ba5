package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// GuardKind is the kind of a resource guard.
type GuardKind string

const (
	// GuardOnlyIf runs the action only when the expression is true.
	GuardOnlyIf GuardKind = "only_if"

	// GuardNotIf runs the action only when the expression is false.
	GuardNotIf GuardKind = "not_if"
)

// Guard is a Starlark expression deciding whether an action runs. A guard
// that stops an action is reported as the skip conditional.
type Guard struct {
	Kind GuardKind
	Expr string
}

// Description renders the guard as it was declared.
func (g Guard) Description() string {
	return fmt.Sprintf("%s %q", g.Kind, g.Expr)
}

// WhyRunSkip is the conditional reported when why-run mode meets a provider
// that cannot predict its changes.
type WhyRunSkip struct {
	ResourceType string
}

// Description explains the skip.
func (w WhyRunSkip) Description() string {
	return fmt.Sprintf("why-run: %s provider cannot simulate its action", w.ResourceType)
}

var (
	_ actions.Conditional = Guard{}
	_ actions.Conditional = WhyRunSkip{}
)

// guardsFor returns the declared guards, not_if first.
func guardsFor(res *resources.Declared) []Guard {
	var guards []Guard
	if res.NotIf != "" {
		guards = append(guards, Guard{Kind: GuardNotIf, Expr: res.NotIf})
	}
	if res.OnlyIf != "" {
		guards = append(guards, Guard{Kind: GuardOnlyIf, Expr: res.OnlyIf})
	}
	return guards
}

// GuardEvaluator evaluates guards with a bounded execution time.
type GuardEvaluator struct {
	timeout time.Duration
	node    string
}

// NewGuardEvaluator creates an evaluator. A zero timeout means 5 seconds.
func NewGuardEvaluator(timeout time.Duration, node string) *GuardEvaluator {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &GuardEvaluator{timeout: timeout, node: node}
}

// Allows reports whether g lets the action on res run.
func (ge *GuardEvaluator) Allows(ctx context.Context, g Guard, res *resources.Declared) (bool, error) {
	v, err := ge.eval(ctx, g.Expr, res)
	if err != nil {
		return false, NewPermanentError(fmt.Sprintf("%s guard failed", g.Kind), err).
			WithCode(ErrCodeGuardFailed).
			WithDetail("expression", g.Expr)
	}
	truth := bool(v.Truth())
	if g.Kind == GuardNotIf {
		return !truth, nil
	}
	return truth, nil
}

// FirstBlocking evaluates the guards of res in order and returns the first
// one that stops the action, or nil.
func (ge *GuardEvaluator) FirstBlocking(ctx context.Context, res *resources.Declared) (actions.Conditional, error) {
	for _, g := range guardsFor(res) {
		ok, err := ge.Allows(ctx, g, res)
		if err != nil {
			return nil, err
		}
		if !ok {
			return g, nil
		}
	}
	return nil, nil
}

func (ge *GuardEvaluator) eval(ctx context.Context, expr string, res *resources.Declared) (starlark.Value, error) {
	thread := &starlark.Thread{
		Name:  "guard",
		Print: func(_ *starlark.Thread, _ string) {},
	}

	ctx, cancel := context.WithTimeout(ctx, ge.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(fmt.Sprintf("guard evaluation stopped: %v", context.Cause(ctx)))
	})
	defer stop()

	env, err := ge.environment(res)
	if err != nil {
		return nil, err
	}
	return starlark.Eval(thread, res.Identity(), expr, env)
}

// environment exposes the resource, the node, and a few host probes.
func (ge *GuardEvaluator) environment(res *resources.Declared) (starlark.StringDict, error) {
	attrs := starlark.NewDict(len(res.Attributes))
	for _, k := range res.AttributeKeys() {
		v, err := toStarlark(res.Attributes[k])
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		if err := attrs.SetKey(starlark.String(k), v); err != nil {
			return nil, err
		}
	}
	attrs.Freeze()

	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"attrs":  attrs,
		"name":   starlark.String(res.ResourceName),
		"type":   starlark.String(res.ResourceType),
		"node":   starlark.String(ge.node),
		"path_exists": starlark.NewBuiltin("path_exists", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var path string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &path); err != nil {
				return nil, err
			}
			_, err := os.Stat(path)
			return starlark.Bool(err == nil), nil
		}),
		"env": starlark.NewBuiltin("env", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var key string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key); err != nil {
				return nil, err
			}
			return starlark.String(os.Getenv(key)), nil
		}),
	}, nil
}

func toStarlark(v interface{}) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case []string:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			items[i] = starlark.String(item)
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := toStarlark(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
