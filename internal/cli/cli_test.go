package cli

import (
	"bytes"
	stdcontext "context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procvisor/internal/config"
	"github.com/Paintersrp/procvisor/internal/signals"
)

func writeManifest(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procvisor.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func isolatedRegistry() *signals.Registry {
	return signals.NewRegistry(
		signals.WithNotify(func(chan<- os.Signal, ...os.Signal) {}),
		signals.WithExit(func(int) {}),
	)
}

func execute(t *testing.T, ctx stdcontext.Context, args ...string) (string, string, error) {
	t.Helper()
	root, cliCtx := newRootCommand()
	cliCtx.registry = isolatedRegistry()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func requireSleep(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
}

func TestConfigLintSuccess(t *testing.T) {
	path := writeManifest(t,
		"version: 0.1",
		"processes:",
		"  api:",
		"    command: [sleep, '1']",
		"    ready:",
		"      tcp:",
		"        address: localhost:8080",
	)
	stdout, stderr, err := execute(t, nil, "config", "lint", "-f", path)
	if err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	if want := path + ": OK (1 processes)\n"; stdout != want {
		t.Fatalf("unexpected stdout: got %q want %q", stdout, want)
	}
	if stderr != "" {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestConfigLintReportsValidationErrors(t *testing.T) {
	path := writeManifest(t,
		"version: 0.1",
		"processes:",
		"  api:",
		"    waitMode: sometimes",
		"    command: [sleep, '1']",
	)
	stdout, stderr, err := execute(t, nil, "config", "lint", path)
	if err == nil {
		t.Fatalf("expected lint error")
	}
	if stdout != "" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	if !strings.Contains(stderr, "processes.api.waitMode") {
		t.Fatalf("expected field path in stderr, got %q", stderr)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, nil, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "procvisor "+Version+" ") {
		t.Fatalf("unexpected version output %q", stdout)
	}
}

func TestRootRejectsUnknownLogLevel(t *testing.T) {
	if _, _, err := execute(t, nil, "--log-level", "loud", "version"); err == nil {
		t.Fatalf("expected log level error")
	}
}

func TestRunRequiresCommand(t *testing.T) {
	if _, _, err := execute(t, nil, "run"); err == nil {
		t.Fatalf("expected missing command error")
	}
}

func TestRunRejectsUnknownWaitMode(t *testing.T) {
	_, _, err := execute(t, nil, "run", "--wait-mode", "sometimes", "--", "sleep", "1")
	if err == nil || !strings.Contains(err.Error(), "wait mode") {
		t.Fatalf("expected wait mode error, got %v", err)
	}
}

func TestRunReturnsAfterCleanExit(t *testing.T) {
	requireSleep(t)
	done := make(chan error, 1)
	go func() {
		_, _, err := execute(t, nil, "run", "--name", "nap", "--", "sleep", "0.1")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after the command exited")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	requireSleep(t)
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := execute(t, ctx, "run", "--always-restart", "--stop-timeout", "5s", "--", "sleep", "30")
		done <- err
	}()
	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop after cancellation")
	}
}

func TestRunFailsWhenSpawnFails(t *testing.T) {
	_, _, err := execute(t, nil, "run", "--", filepath.Join(t.TempDir(), "missing-binary"))
	if err == nil || !strings.Contains(err.Error(), "start missing-binary") {
		t.Fatalf("expected spawn error, got %v", err)
	}
}

func TestUpSupervisesManifest(t *testing.T) {
	requireSleep(t)
	path := writeManifest(t,
		"version: 0.1",
		"processes:",
		"  first:",
		"    command: [sleep, '0.1']",
		"  second:",
		"    command: [sleep, '0.2']",
		"    env:",
		"      MODE: test",
	)
	done := make(chan error, 1)
	go func() {
		_, _, err := execute(t, nil, "up", "-f", path)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("up: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("up did not return after processes exited")
	}
}

func TestUpReportsMissingManifest(t *testing.T) {
	_, _, err := execute(t, nil, "up", "-f", filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestBuildProcessAppliesSpec(t *testing.T) {
	inherit := false
	spec := &config.ProcessSpec{
		Command:       []string{"sleep", "1"},
		Env:           map[string]string{"PORT": "1"},
		InheritEnv:    &inherit,
		AlwaysRestart: true,
		WaitMode:      "poll",
		Ready:         &config.ProbeSpec{TCP: &config.TCPProbeSpec{Address: "127.0.0.1:1"}},
	}
	root := &cobra.Command{}
	logger := (&context{logLevel: "error", logFormat: "json"}).logger(root)
	proc, err := buildProcess("api", spec, logger, isolatedRegistry())
	if err != nil {
		t.Fatalf("buildProcess: %v", err)
	}
	if proc.Name() != "api" || proc.State().String() != "idle" {
		t.Fatalf("unexpected process %s/%s", proc.Name(), proc.State())
	}

	spec.WaitMode = "sometimes"
	if _, err := buildProcess("api", spec, logger, isolatedRegistry()); err == nil {
		t.Fatalf("expected wait mode error")
	}
	if _, err := buildProcess("api", nil, logger, isolatedRegistry()); err == nil {
		t.Fatalf("expected missing spec error")
	}
}

func TestReadyFlagsSpec(t *testing.T) {
	if (readyFlags{}).spec() != nil {
		t.Fatalf("expected nil spec without flags")
	}
	spec := readyFlags{http: "http://127.0.0.1:8080/health", cmd: []string{"true"}}.spec()
	if spec == nil || spec.HTTP == nil || spec.TCP != nil || spec.Command == nil {
		t.Fatalf("unexpected spec %+v", spec)
	}
}
