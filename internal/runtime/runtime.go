package runtime

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// WaitMode selects how a backend observes the exit of a spawned child.
type WaitMode string

const (
	// WaitAuto lets the backend pick the best strategy for the platform.
	WaitAuto WaitMode = "auto"
	// WaitNative blocks on the operating system's wait primitive from a
	// dedicated goroutine.
	WaitNative WaitMode = "native"
	// WaitPoll checks the child for exit on a fixed short interval.
	WaitPoll WaitMode = "poll"
)

// ParseWaitMode converts user input into a WaitMode. The empty string maps to
// WaitAuto.
func ParseWaitMode(value string) (WaitMode, error) {
	switch mode := WaitMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "", WaitAuto:
		return WaitAuto, nil
	case WaitNative, WaitPoll:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown wait mode %q (want auto, native or poll)", value)
	}
}

// Spec describes how to launch one child process. A Spec is treated as
// immutable once handed to a backend.
type Spec struct {
	// Name identifies the child in errors and logs.
	Name string
	// Command holds the executable followed by its arguments.
	Command []string
	// Env contains environment overrides for the child.
	Env map[string]string
	// InheritEnv merges Env over the host environment when true. When false
	// Env replaces the host environment entirely.
	InheritEnv bool
	// Workdir is the working directory of the child. Empty means the
	// supervisor's own working directory.
	Workdir string

	// Stdin, Stdout and Stderr are handed to the child as-is. A nil Stdin
	// reads from the null device; nil Stdout or Stderr inherit the host's
	// streams.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// WaitMode is resolved once per Start call.
	WaitMode WaitMode
}

// Clone returns a deep copy of the spec.
func (s Spec) Clone() Spec {
	dup := s
	if len(s.Command) > 0 {
		dup.Command = append([]string(nil), s.Command...)
	}
	if len(s.Env) > 0 {
		dup.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			dup.Env[k] = v
		}
	}
	return dup
}

// Environ renders the environment handed to the child.
func (s Spec) Environ() []string {
	// A non-nil slice keeps os/exec from falling back to the host
	// environment when nothing is inherited.
	env := make([]string, 0, len(s.Env))
	if s.InheritEnv {
		for _, kv := range os.Environ() {
			key, _, _ := strings.Cut(kv, "=")
			if _, overridden := s.Env[key]; overridden {
				continue
			}
			env = append(env, kv)
		}
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}

// Handle represents a single live (or reaped) child process. Every restart
// of a supervised process produces a new Handle; handles are never reused.
type Handle interface {
	// Pid returns the operating system process identifier.
	Pid() int

	// Wait blocks until the child exits and returns its exit code. Multiple
	// goroutines may wait concurrently. Cancelling ctx abandons the wait
	// without affecting the child.
	Wait(ctx context.Context) (int, error)

	// Signal delivers sig to the child. Signalling a child that already
	// exited is not an error.
	Signal(sig os.Signal) error

	// KillSignal reports the signal used to forcefully stop the child.
	KillSignal() os.Signal

	// ReturnCode reports the exit code once the child has been reaped.
	ReturnCode() (int, bool)
}

// Backend spawns child processes.
type Backend interface {
	// Start launches the child described by spec. Spawn failures are
	// returned unmodified apart from wrapping with the child name.
	Start(ctx context.Context, spec Spec) (Handle, error)
}
