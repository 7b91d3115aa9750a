// Package supervisor keeps a single child process alive.
//
// A Process spawns its child through a runtime.Backend, relays host signals
// to it through a signal registry, and restarts it from a watcher goroutine
// whenever it exits with a non-zero status (or after every exit when
// always-restart is set). Terminate, Kill and a relayed host signal all move
// the Process to Killed, after which it is never started again.
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	plog "github.com/Paintersrp/procvisor/internal/log"
	"github.com/Paintersrp/procvisor/internal/metrics"
	"github.com/Paintersrp/procvisor/internal/probe"
	"github.com/Paintersrp/procvisor/internal/runtime"
	"github.com/Paintersrp/procvisor/internal/runtime/process"
	"github.com/Paintersrp/procvisor/internal/signals"
)

// SignalRegistry is the subset of *signals.Registry a Process depends on.
type SignalRegistry interface {
	Add(h signals.Handler) *signals.Registration
	Remove(reg *signals.Registration) bool
}

// ReadyFunc reports whether p is ready to serve.
type ReadyFunc func(ctx context.Context, p *Process) (bool, error)

// ProbeReady adapts a probe.Prober into a ReadyFunc.
func ProbeReady(prober probe.Prober) ReadyFunc {
	check := probe.Check(prober)
	return func(ctx context.Context, _ *Process) (bool, error) {
		return check(ctx)
	}
}

// Process supervises one child process.
type Process struct {
	name string
	id   string
	spec runtime.Spec

	alwaysRestart bool
	readyTimeout  time.Duration
	readyFunc     ReadyFunc

	logger   *slog.Logger
	backend  runtime.Backend
	registry SignalRegistry

	mu       sync.Mutex
	state    State
	handle   runtime.Handle
	reg      *signals.Registration
	cancel   context.CancelFunc
	done     chan struct{}
	restarts int
	err      error
}

// New constructs a Process in the Idle state. Nothing is spawned until Start.
func New(name string, command []string, opts ...Option) *Process {
	p := &Process{
		name: name,
		id:   uuid.NewString(),
		spec: runtime.Spec{
			Name:       name,
			Command:    append([]string(nil), command...),
			InheritEnv: true,
			WaitMode:   runtime.WaitAuto,
		},
		readyTimeout: probe.DefaultTimeout,
		logger:       plog.Discard(),
		backend:      process.New(),
		registry:     signals.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = plog.WithProcess(p.logger, p.name, p.id).With(
		slog.String(plog.CommandKey, plog.RedactArgs(p.spec.Command)),
		slog.Any(plog.EnvKey, plog.RedactEnv(p.spec.Env)),
	)
	return p
}

// Name returns the name used for log correlation.
func (p *Process) Name() string { return p.name }

// ID returns the unique correlation id of this Process.
func (p *Process) ID() string { return p.id }

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pid returns the pid of the current child, or 0 before the first start.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0
	}
	return p.handle.Pid()
}

// ReturnCode returns the exit code of the current child once it has been
// reaped.
func (p *Process) ReturnCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0, false
	}
	return p.handle.ReturnCode()
}

// Running reports whether the current child is alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return false
	}
	_, exited := p.handle.ReturnCode()
	return !exited
}

// Restarts returns the number of automatic restarts performed so far.
func (p *Process) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// Start spawns the child. Starting a running Process is a no-op; starting a
// killed one returns a *KilledProcessError. Spawn failures are returned as-is.
func (p *Process) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Running:
		return nil
	case Killed:
		return &KilledProcessError{Name: p.name}
	}

	handle, err := p.spawnLocked(ctx)
	if err != nil {
		return err
	}

	// The watcher outlives the caller's context; only Terminate and Kill
	// cancel it.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.err = nil
	go p.watch(watchCtx, handle, done)
	return nil
}

// spawnLocked launches a new child and registers its signal relay. p.mu must
// be held.
func (p *Process) spawnLocked(ctx context.Context) (runtime.Handle, error) {
	p.logger.Debug("try-start", slog.String(plog.ActionKey, "try-start"))
	handle, err := p.backend.Start(ctx, p.spec.Clone())
	if err != nil {
		p.logger.Error("failed to start process", slog.Any("err", err))
		return nil, err
	}
	p.handle = handle
	p.state = Running
	p.reg = p.registry.Add(p.relay(handle))
	metrics.SetProcessRunning(p.name, true)
	p.logger.Debug("started", slog.String(plog.ActionKey, "started"), slog.Int("pid", handle.Pid()))
	return handle, nil
}

// watch waits for each child in turn and applies the restart policy. Restarts
// happen inside this loop so a long-lived always-restart process never grows
// the goroutine or call stack.
func (p *Process) watch(ctx context.Context, handle runtime.Handle, done chan struct{}) {
	defer close(done)
	for {
		code, err := handle.Wait(ctx)
		if err != nil {
			return
		}

		p.mu.Lock()
		if ctx.Err() != nil || p.handle != handle {
			p.mu.Unlock()
			return
		}
		p.registry.Remove(p.reg)
		p.reg = nil
		metrics.SetProcessRunning(p.name, false)
		metrics.ObserveExit(p.name, code)
		p.logger.Debug("exited", slog.String(plog.ActionKey, "exited"), slog.Int("code", code))

		if p.state == Killed {
			p.finishLocked()
			p.mu.Unlock()
			return
		}
		p.state = Idle
		if !p.alwaysRestart && code == 0 {
			p.finishLocked()
			p.mu.Unlock()
			return
		}

		p.restarts++
		metrics.IncrementProcessRestart(p.name)
		next, err := p.spawnLocked(ctx)
		if err != nil {
			p.err = err
			p.finishLocked()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
		handle = next
	}
}

// finishLocked ends the lifecycle owned by the running watcher. p.mu must be
// held.
func (p *Process) finishLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// relay returns the signal handler registered for one child. The Process is
// marked Killed before the signal is forwarded so the watcher never restarts
// a child stopped by the host.
func (p *Process) relay(handle runtime.Handle) signals.Handler {
	return func(sig os.Signal) {
		p.mu.Lock()
		p.state = Killed
		p.mu.Unlock()

		p.logger.Debug("signal", slog.String(plog.ActionKey, "signal"), slog.String("value", sig.String()))
		if err := handle.Signal(sig); err != nil {
			p.logger.Warn("failed to relay signal", slog.String("value", sig.String()), slog.Any("err", err))
		}
		metrics.ObserveSignalRelayed(p.name, sig.String())
	}
}

// Terminate asks the child to exit and waits for it to be reaped. The
// Process is Killed afterwards.
func (p *Process) Terminate(ctx context.Context) (int, error) {
	return p.stop(ctx, func(runtime.Handle) os.Signal { return process.TerminateSignal() })
}

// Kill forcefully stops the child and waits for it to be reaped. The Process
// is Killed afterwards.
func (p *Process) Kill(ctx context.Context) (int, error) {
	return p.stop(ctx, func(h runtime.Handle) os.Signal { return h.KillSignal() })
}

func (p *Process) stop(ctx context.Context, signalFor func(runtime.Handle) os.Signal) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	if p.state == Killed {
		p.mu.Unlock()
		return 0, &KilledProcessError{Name: p.name}
	}

	handle := p.handle
	if handle == nil {
		p.state = Killed
		p.mu.Unlock()
		p.logger.Debug("killed", slog.String(plog.ActionKey, "killed"), slog.Int("code", 0))
		return 0, nil
	}

	sig := signalFor(handle)
	p.logger.Debug("killing", slog.String(plog.ActionKey, "killing"), slog.String("signal", sig.String()))
	if err := handle.Signal(sig); err != nil {
		p.logger.Warn("failed to signal process", slog.String("signal", sig.String()), slog.Any("err", err))
	}
	// Killed must be recorded before the watcher is released so it cannot
	// restart the child.
	p.state = Killed
	p.finishLocked()
	reg := p.reg
	p.reg = nil
	p.mu.Unlock()

	code, err := handle.Wait(ctx)
	p.registry.Remove(reg)
	if err != nil {
		return 0, err
	}
	metrics.SetProcessRunning(p.name, false)
	if reg != nil {
		metrics.ObserveExit(p.name, code)
	}
	p.logger.Debug("killed", slog.String(plog.ActionKey, "killed"), slog.Int("code", code))
	return code, nil
}

// Wait blocks until the current lifecycle ends: the child exited without
// qualifying for a restart, a restart failed to spawn, or the Process was
// terminated. It returns the restart spawn error, if any.
func (p *Process) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Ready polls fn until it reports ready or the ready timeout elapses. A nil
// fn falls back to the WithReadyFunc predicate, and without one the child is
// considered ready once it is running. Polling stops early once the Process
// is Killed or its lifecycle has ended; restarts in between do not stop it.
func (p *Process) Ready(ctx context.Context, fn ReadyFunc) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		fn = p.readyFunc
	}
	if fn == nil {
		fn = func(context.Context, *Process) (bool, error) {
			return p.Running(), nil
		}
	}

	start := time.Now()
	ready := probe.Poll(ctx, probe.Options{Timeout: p.readyTimeout}, p.alive,
		func(ctx context.Context) (bool, error) { return fn(ctx, p) },
		func(a probe.Attempt) {
			attrs := []any{
				slog.String(plog.ActionKey, "ready-wait"),
				slog.Bool("ready", a.Ready),
				slog.Duration("elapsed", a.Elapsed),
				slog.Duration("next", a.Next),
			}
			if a.Err != nil {
				attrs = append(attrs, slog.Any("err", a.Err))
			}
			p.logger.Debug("ready-wait", attrs...)
		})
	metrics.ObserveReadyLatency(p.name, time.Since(start), ready)
	return ready
}

// alive reports whether readiness polling is still worthwhile.
func (p *Process) alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Killed || p.handle == nil {
		return false
	}
	if p.cancel != nil {
		return true
	}
	_, exited := p.handle.ReturnCode()
	return !exited
}
