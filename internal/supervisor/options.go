package supervisor

import (
	"log/slog"
	"os"
	"time"

	"github.com/Paintersrp/procvisor/internal/runtime"
)

// Option customises a Process.
type Option func(*Process)

// WithEnv sets environment overrides for the child.
func WithEnv(env map[string]string) Option {
	return func(p *Process) {
		if len(env) == 0 {
			p.spec.Env = nil
			return
		}
		p.spec.Env = make(map[string]string, len(env))
		for k, v := range env {
			p.spec.Env[k] = v
		}
	}
}

// WithInheritEnv controls whether overrides are merged over the host
// environment (the default) or replace it.
func WithInheritEnv(inherit bool) Option {
	return func(p *Process) {
		p.spec.InheritEnv = inherit
	}
}

// WithWorkdir sets the child's working directory.
func WithWorkdir(dir string) Option {
	return func(p *Process) {
		p.spec.Workdir = dir
	}
}

// WithAlwaysRestart restarts the child after every exit, including clean
// ones. Non-zero exits are restarted regardless.
func WithAlwaysRestart(always bool) Option {
	return func(p *Process) {
		p.alwaysRestart = always
	}
}

// WithReadyTimeout bounds Ready. Non-positive values keep the default.
func WithReadyTimeout(d time.Duration) Option {
	return func(p *Process) {
		if d > 0 {
			p.readyTimeout = d
		}
	}
}

// WithReadyFunc sets the predicate used when Ready is called with nil.
func WithReadyFunc(fn ReadyFunc) Option {
	return func(p *Process) {
		p.readyFunc = fn
	}
}

// WithLogger sets the logger that receives lifecycle events. Without one
// events are dropped.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Process) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBackend replaces the local process backend.
func WithBackend(backend runtime.Backend) Option {
	return func(p *Process) {
		if backend != nil {
			p.backend = backend
		}
	}
}

// WithSignalRegistry replaces the process-wide signal registry.
func WithSignalRegistry(registry SignalRegistry) Option {
	return func(p *Process) {
		if registry != nil {
			p.registry = registry
		}
	}
}

// WithWaitMode selects how the backend observes child exit.
func WithWaitMode(mode runtime.WaitMode) Option {
	return func(p *Process) {
		p.spec.WaitMode = mode
	}
}

// WithStdio wires the child's standard streams.
func WithStdio(stdin, stdout, stderr *os.File) Option {
	return func(p *Process) {
		p.spec.Stdin = stdin
		p.spec.Stdout = stdout
		p.spec.Stderr = stderr
	}
}
