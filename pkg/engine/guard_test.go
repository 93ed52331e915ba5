package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/actiontracker/pkg/resources"
)

func TestGuardBuiltins(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FROYO_GUARD_TEST", "enabled")

	res := resources.New("file", present).
		WithAttribute("owners", []interface{}{"root", "www"}).
		WithAttribute("size", 42)

	tests := []struct {
		expr string
		want bool
	}{
		{expr: `path_exists(name)`, want: true},
		{expr: `path_exists(name + ".missing")`, want: false},
		{expr: `env("FROYO_GUARD_TEST") == "enabled"`, want: true},
		{expr: `"www" in attrs["owners"]`, want: true},
		{expr: `attrs["size"] > 100`, want: false},
		{expr: `type == "file" and node == "web-01"`, want: true},
	}

	ge := NewGuardEvaluator(time.Second, "web-01")
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ge.Allows(context.Background(), Guard{Kind: GuardOnlyIf, Expr: tt.expr}, res)
			if err != nil {
				t.Fatalf("Allows failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGuardTimeout(t *testing.T) {
	ge := NewGuardEvaluator(10*time.Millisecond, "node")
	_, err := ge.Allows(context.Background(), Guard{Kind: GuardOnlyIf, Expr: `len([x for x in range(100000000)]) > 0`}, resources.New("log", "x"))
	if CodeOf(err) != ErrCodeGuardFailed {
		t.Fatalf("expected guard failure, got %v", err)
	}
}

func TestGuardUnsupportedAttribute(t *testing.T) {
	ge := NewGuardEvaluator(0, "node")
	res := resources.New("file", "x").WithAttribute("bad", struct{}{})
	if _, err := ge.Allows(context.Background(), Guard{Kind: GuardNotIf, Expr: "True"}, res); err == nil {
		t.Fatal("expected unsupported attribute to fail")
	}
}
