package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Paintersrp/procvisor/internal/runtime"
)

type backendImpl struct{}

// New constructs a backend that executes children as local processes.
func New() runtime.Backend {
	return &backendImpl{}
}

func (b *backendImpl) Start(ctx context.Context, spec runtime.Spec) (runtime.Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("process %s requires a command", spec.Name)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	switch resolveWaitMode(spec.WaitMode) {
	case runtime.WaitPoll:
		return startPolling(spec)
	default:
		return startNative(spec)
	}
}

func resolveWaitMode(mode runtime.WaitMode) runtime.WaitMode {
	if mode == runtime.WaitPoll {
		return runtime.WaitPoll
	}
	// exec.Cmd.Wait parks a goroutine rather than the caller on every
	// platform Go supports, so auto always resolves to native.
	return runtime.WaitNative
}

// stdio resolves the three standard streams handed to the child.
func stdio(spec runtime.Spec) (stdin, stdout, stderr *os.File) {
	stdin, stdout, stderr = spec.Stdin, spec.Stdout, spec.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdin, stdout, stderr
}

type nativeHandle struct {
	name string
	cmd  *exec.Cmd

	done    chan struct{}
	code    int
	waitErr error
}

func startNative(spec runtime.Spec) (runtime.Handle, error) {
	// The child must outlive the spawn context, so exec.CommandContext is
	// deliberately not used here.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Workdir
	cmd.Env = spec.Environ()
	stdin, stdout, stderr := stdio(spec)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process %s: %w", spec.Name, err)
	}

	h := &nativeHandle{
		name: spec.Name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go h.reap()
	return h, nil
}

func (h *nativeHandle) reap() {
	err := h.cmd.Wait()
	if state := h.cmd.ProcessState; state != nil {
		h.code = exitCode(state)
	} else {
		h.code = -1
		h.waitErr = fmt.Errorf("wait process %s: %w", h.name, err)
	}
	close(h.done)
}

func (h *nativeHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *nativeHandle) Wait(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.done:
		return h.code, h.waitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *nativeHandle) Signal(sig os.Signal) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	return ignoreProcessDone(deliverSignal(h.cmd.Process, sig))
}

func (h *nativeHandle) KillSignal() os.Signal {
	return KillSignal()
}

func (h *nativeHandle) ReturnCode() (int, bool) {
	select {
	case <-h.done:
		return h.code, true
	default:
		return 0, false
	}
}

type pollingHandle struct {
	name string
	pid  int
	proc *os.Process

	mu     sync.Mutex
	exited bool

	done chan struct{}
	code int
}

func startPolling(spec runtime.Spec) (runtime.Handle, error) {
	path, err := exec.LookPath(spec.Command[0])
	if err != nil {
		return nil, fmt.Errorf("start process %s: %w", spec.Name, err)
	}

	stdin, stdout, stderr := stdio(spec)
	if stdin == nil {
		null, err := os.Open(os.DevNull)
		if err != nil {
			return nil, fmt.Errorf("start process %s: %w", spec.Name, err)
		}
		defer null.Close()
		stdin = null
	}

	attr := &os.ProcAttr{
		Dir:   spec.Workdir,
		Env:   spec.Environ(),
		Files: []*os.File{stdin, stdout, stderr},
		Sys:   sysProcAttr(),
	}
	proc, err := os.StartProcess(path, spec.Command, attr)
	if err != nil {
		return nil, fmt.Errorf("start process %s: %w", spec.Name, err)
	}

	h := &pollingHandle{
		name: spec.Name,
		pid:  proc.Pid,
		proc: proc,
		done: make(chan struct{}),
	}
	go h.poll()
	return h, nil
}

// pollInterval is how often the polling strategy checks a child for exit.
var pollInterval = 500 * time.Millisecond

func (h *pollingHandle) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		h.mu.Lock()
		code, exited := pollExit(h.proc)
		if exited {
			h.exited = true
			h.code = code
			h.mu.Unlock()
			_ = h.proc.Release()
			close(h.done)
			return
		}
		h.mu.Unlock()
		<-ticker.C
	}
}

// Pid returns the pid recorded at spawn. Release clears proc.Pid once the
// child is reaped.
func (h *pollingHandle) Pid() int {
	return h.pid
}

func (h *pollingHandle) Wait(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.done:
		return h.code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *pollingHandle) Signal(sig os.Signal) error {
	// Holding the lock keeps the poller from reaping the child (and the
	// pid from being recycled) while the signal is in flight.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	return ignoreProcessDone(deliverSignal(h.proc, sig))
}

func (h *pollingHandle) KillSignal() os.Signal {
	return KillSignal()
}

func (h *pollingHandle) ReturnCode() (int, bool) {
	select {
	case <-h.done:
		return h.code, true
	default:
		return 0, false
	}
}

func ignoreProcessDone(err error) error {
	if err == nil || errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err) {
		return nil
	}
	return err
}

var (
	_ runtime.Handle = (*nativeHandle)(nil)
	_ runtime.Handle = (*pollingHandle)(nil)
)
