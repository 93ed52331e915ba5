package providers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

func converge(t *testing.T, p engine.Provider, res *resources.Declared, action string) bool {
	t.Helper()
	ctx := context.Background()
	current, err := p.LoadCurrentState(ctx, res)
	if err != nil {
		t.Fatalf("LoadCurrentState failed: %v", err)
	}
	changed, err := p.Converge(ctx, res, current, action)
	if err != nil {
		t.Fatalf("Converge failed: %v", err)
	}
	return changed
}

func TestFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "motd")
	p := NewFile()
	res := resources.New("file", path).WithAttribute("content", "hello\n").WithAttribute("mode", "0600")

	if !converge(t, p, res, "create") {
		t.Fatal("first create should change the file")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("unexpected mode %o", info.Mode().Perm())
	}

	if converge(t, p, res, "create") {
		t.Error("second create should be up to date")
	}

	res.WithAttribute("content", "changed\n")
	if !converge(t, p, res, "create") {
		t.Error("content change should update the file")
	}

	if !converge(t, p, res, "delete") {
		t.Error("delete should change an existing file")
	}
	if converge(t, p, res, "delete") {
		t.Error("delete of a missing file should be up to date")
	}
}

func TestFileValidation(t *testing.T) {
	p := NewFile()
	res := resources.New("file", "/tmp/x").WithAttribute("mode", "rwx")
	_, err := p.LoadCurrentState(context.Background(), res)
	if engine.CodeOf(err) != engine.ErrCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDirectoryLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srv", "app")
	p := NewDirectory()
	res := resources.New("directory", path)

	if !converge(t, p, res, "create") {
		t.Fatal("create should make the directory")
	}
	if converge(t, p, res, "create") {
		t.Error("second create should be up to date")
	}

	if err := os.WriteFile(filepath.Join(path, "f"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	res.WithAttribute("recursive", true)
	if !converge(t, p, res, "delete") {
		t.Error("recursive delete should remove the directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("directory still exists: %v", err)
	}
}

func TestFileWouldConvergeDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	p := NewFile()
	res := resources.New("file", path).WithAttribute("content", "x")

	changed, err := p.WouldConverge(context.Background(), res, nil, "create")
	if err != nil || !changed {
		t.Fatalf("expected predicted change, got %v (%v)", changed, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("why-run must not create the file")
	}
}

func TestLogWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	p := NewLog(zerolog.New(&buf))
	res := resources.New("log", "deploy").WithAttribute("message", "deploy finished").WithAttribute("level", "warn")

	if !converge(t, p, res, "write") {
		t.Error("log should always update")
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"deploy finished"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("unexpected log output %s", out)
	}
}

func TestDefaultRegistryConverge(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing")
	if err := os.WriteFile(existing, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}

	declared := []*resources.Declared{
		resources.New("composite", "unchanged").WithChildren(
			resources.New("file", existing).WithAttribute("content", "same"),
		),
		resources.New("composite", "app").WithChildren(
			resources.New("directory", filepath.Join(dir, "app")),
			resources.New("file", filepath.Join(dir, "app", "secret")).
				WithAttribute("content", "token=abc").
				MarkSensitive(),
		),
	}

	c := actions.New()
	c.Register("test")
	eng := engine.New(Default(zerolog.Nop()), c)
	if err := eng.Converge(context.Background(), engine.NewRun("local"), declared); err != nil {
		t.Fatalf("Converge failed: %v", err)
	}

	want := []struct {
		identity string
		status   actions.Status
		level    int
	}{
		{"file[" + existing + "]", actions.StatusUpToDate, 1},
		{"composite[unchanged]", actions.StatusUpToDate, 0},
		{"directory[" + filepath.Join(dir, "app") + "]", actions.StatusUpdated, 1},
		{"file[" + filepath.Join(dir, "app", "secret") + "]", actions.StatusUpdated, 1},
		{"composite[app]", actions.StatusUpdated, 0},
	}
	records := c.Records()
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, w := range want {
		r := records[i]
		if r.Resource.Identity() != w.identity || r.Status != w.status || r.NestingLevel != w.level {
			t.Errorf("record %d: got %s %s %d, want %s %s %d",
				i, r.Resource.Identity(), r.Status, r.NestingLevel, w.identity, w.status, w.level)
		}
	}

	secret := records[3].Resource
	if _, ok := secret.(resources.Redacted); !ok {
		t.Errorf("sensitive file should be redacted, got %T", secret)
	}
}
