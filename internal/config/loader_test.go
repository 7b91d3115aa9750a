package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "procvisor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	workdir := filepath.Join(dir, "app")
	if err := os.Mkdir(workdir, 0o755); err != nil {
		t.Fatalf("mkdir workdir: %v", err)
	}
	envFile := filepath.Join(workdir, "vars.env")
	if err := os.WriteFile(envFile, []byte("TOKEN=${FILE_SECRET}\nPORT=1\n# comment\nexport MODE='prod'"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("FILE_SECRET", "alpha")
	t.Setenv("WORKDIR_PATH", "./app")
	t.Setenv("API_PORT", "9005")

	path := writeManifest(t, dir, `version: 0.1
workdir: ${WORKDIR_PATH}
defaults:
  readyTimeout: 3s
  waitMode: poll
processes:
  api:
    command: ["python3", "server.py", "--port", "${API_PORT}"]
    env:
      PORT: ${API_PORT}
    envFromFile: vars.env
    alwaysRestart: true
    ready:
      http:
        url: http://localhost:9005/
        expectStatus: [200]
  worker:
    command: ["sleep", "10"]
    inheritEnv: false
    readyTimeout: 10s
    waitMode: native
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got, want := doc.Workdir, workdir; got != want {
		t.Fatalf("unexpected workdir: got %q want %q", got, want)
	}

	api := doc.Processes["api"]
	if api == nil {
		t.Fatalf("expected api process")
	}
	if got := strings.Join(api.Command, " "); got != "python3 server.py --port 9005" {
		t.Fatalf("unexpected command: %q", got)
	}
	if api.ResolvedWorkdir != workdir {
		t.Fatalf("expected resolved workdir %q, got %q", workdir, api.ResolvedWorkdir)
	}
	if api.Env["PORT"] != "9005" {
		t.Fatalf("inline env should win over env file, got %q", api.Env["PORT"])
	}
	if api.Env["TOKEN"] != "alpha" || api.Env["MODE"] != "prod" {
		t.Fatalf("unexpected env from file: %v", api.Env)
	}
	if !api.AlwaysRestart || !api.InheritsEnv() {
		t.Fatalf("unexpected api flags: %+v", api)
	}
	if api.ReadyTimeout.Duration != 3*time.Second {
		t.Fatalf("expected default ready timeout, got %v", api.ReadyTimeout.Duration)
	}
	if api.WaitMode != "poll" {
		t.Fatalf("expected default wait mode, got %q", api.WaitMode)
	}
	if api.Ready == nil || api.Ready.HTTP == nil || api.Ready.HTTP.URL != "http://localhost:9005/" {
		t.Fatalf("unexpected ready probe: %+v", api.Ready)
	}

	worker := doc.Processes["worker"]
	if worker.InheritsEnv() {
		t.Fatalf("expected worker to replace the host environment")
	}
	if worker.ReadyTimeout.Duration != 10*time.Second || worker.WaitMode != "native" {
		t.Fatalf("worker overrides lost: %+v", worker)
	}

	if names := doc.ProcessNames(); strings.Join(names, ",") != "api,worker" {
		t.Fatalf("unexpected process order: %v", names)
	}
}

func TestLoadRejectsInvalidManifests(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"missing version": {
			body: "processes:\n  a:\n    command: [sleep, '1']\n",
			want: "version: is required",
		},
		"no processes": {
			body: "version: 1\n",
			want: "processes: must define at least one process",
		},
		"missing command": {
			body: "version: 1\nprocesses:\n  a:\n    alwaysRestart: true\n",
			want: "processes.a.command: is required",
		},
		"bad wait mode": {
			body: "version: 1\nprocesses:\n  a:\n    command: [sleep, '1']\n    waitMode: spin\n",
			want: "processes.a.waitMode",
		},
		"negative timeout": {
			body: "version: 1\nprocesses:\n  a:\n    command: [sleep, '1']\n    readyTimeout: -1s\n",
			want: "processes.a.readyTimeout: must be non-negative",
		},
		"empty probe": {
			body: "version: 1\nprocesses:\n  a:\n    command: [sleep, '1']\n    ready: {}\n",
			want: "processes.a.ready: must define http, tcp or cmd",
		},
		"bad probe url": {
			body: "version: 1\nprocesses:\n  a:\n    command: [sleep, '1']\n    ready:\n      http:\n        url: localhost:80\n",
			want: "processes.a.ready.http.url: must be an http or https URL",
		},
		"unknown field": {
			body: "version: 1\nprocesses:\n  a:\n    command: [sleep, '1']\n    image: nginx\n",
			want: "image",
		},
		"null process": {
			body: "version: 1\nprocesses:\n  a:\n",
			want: `process "a" is null`,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tc.body)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadReportsSchemaViolations(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "version: 1\nprocesses:\n  web:\n    command: sleep\n    alwaysRestart: maybe\n")
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "schema validation failed") {
		t.Fatalf("expected schema failure, got %v", err)
	}
	for _, field := range []string{"processes.web.command", "processes.web.alwaysRestart"} {
		if !strings.Contains(msg, field) {
			t.Fatalf("expected %s in error, got:\n%s", field, msg)
		}
	}
}

func TestFormatInstanceLocation(t *testing.T) {
	tests := map[string]string{
		"":                         "manifest",
		"/":                        "manifest",
		"/processes/web/command/0": "processes.web.command[0]",
		"/processes/a~1b/env":      "processes.a/b.env",
	}
	for in, want := range tests {
		if got := formatInstanceLocation(in); got != want {
			t.Errorf("formatInstanceLocation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadEnvFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.env")
	if err := os.WriteFile(path, []byte("NOVALUE\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if _, err := loadEnvFile(path); err == nil || !strings.Contains(err.Error(), "invalid line 1") {
		t.Fatalf("expected invalid line error, got %v", err)
	}
	if _, err := loadEnvFile(filepath.Join(dir, "missing.env")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestProcessSpecCloneIsDeep(t *testing.T) {
	inherit := false
	spec := &ProcessSpec{
		Command:    []string{"a"},
		Env:        map[string]string{"K": "v"},
		InheritEnv: &inherit,
		Ready:      &ProbeSpec{TCP: &TCPProbeSpec{Address: "127.0.0.1:1"}},
	}
	dup := spec.Clone()
	dup.Command[0] = "b"
	dup.Env["K"] = "x"
	*dup.InheritEnv = true
	dup.Ready.TCP.Address = "changed"
	if spec.Command[0] != "a" || spec.Env["K"] != "v" || *spec.InheritEnv || spec.Ready.TCP.Address != "127.0.0.1:1" {
		t.Fatalf("clone shares state with original: %+v", spec)
	}
}
