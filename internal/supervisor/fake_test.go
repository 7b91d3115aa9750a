package supervisor

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/procvisor/internal/runtime"
	"github.com/Paintersrp/procvisor/internal/signals"
)

type fakeHandle struct {
	pid int

	mu      sync.Mutex
	signals []os.Signal
	code    int
	exited  bool
	done    chan struct{}
	// exitOnSignal makes the child die with -signum when signalled.
	exitOnSignal bool
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{}), exitOnSignal: true}
}

func (h *fakeHandle) Pid() int { return h.pid }

func (h *fakeHandle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	exit := h.exitOnSignal && !h.exited
	h.mu.Unlock()
	if exit {
		code := -1
		if s, ok := sig.(syscall.Signal); ok {
			code = -int(s)
		}
		h.exit(code)
	}
	return nil
}

func (h *fakeHandle) KillSignal() os.Signal { return syscall.SIGKILL }

func (h *fakeHandle) ReturnCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code, h.exited
}

func (h *fakeHandle) exit(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return
	}
	h.code = code
	h.exited = true
	close(h.done)
}

func (h *fakeHandle) received() []os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]os.Signal(nil), h.signals...)
}

type fakeBackend struct {
	mu      sync.Mutex
	handles []*fakeHandle
	specs   []runtime.Spec
	startCh chan *fakeHandle
	err     error
	// failAfter makes every start after the first n fail with err.
	failAfter int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{startCh: make(chan *fakeHandle, 16), failAfter: -1}
}

func (b *fakeBackend) Start(ctx context.Context, spec runtime.Spec) (runtime.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil && (b.failAfter < 0 || len(b.handles) >= b.failAfter) {
		return nil, b.err
	}
	h := newFakeHandle(1000 + len(b.handles))
	b.handles = append(b.handles, h)
	b.specs = append(b.specs, spec)
	b.startCh <- h
	return h, nil
}

func (b *fakeBackend) starts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

func (b *fakeBackend) next(t *testing.T) *fakeHandle {
	t.Helper()
	select {
	case h := <-b.startCh:
		return h
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for spawn")
		return nil
	}
}

func (b *fakeBackend) expectNoStart(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case h := <-b.startCh:
		t.Fatalf("unexpected spawn of pid %d", h.pid)
	case <-time.After(within):
	}
}

type signalHook struct {
	mu sync.Mutex
	ch chan<- os.Signal
}

func (s *signalHook) notify(c chan<- os.Signal, _ ...os.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = c
}

func (s *signalHook) send(t *testing.T, sig os.Signal) {
	t.Helper()
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch == nil {
		t.Fatalf("signal hook not installed")
	}
	ch <- sig
}

type testEnv struct {
	backend  *fakeBackend
	registry *signals.Registry
	hook     *signalHook
	exits    chan int
}

func newTestEnv() *testEnv {
	env := &testEnv{backend: newFakeBackend(), hook: &signalHook{}, exits: make(chan int, 4)}
	env.registry = signals.NewRegistry(
		signals.WithNotify(env.hook.notify),
		signals.WithExit(func(code int) { env.exits <- code }),
	)
	return env
}

func (e *testEnv) process(name string, opts ...Option) *Process {
	opts = append([]Option{WithBackend(e.backend), WithSignalRegistry(e.registry)}, opts...)
	return New(name, []string{"app", "--serve"}, opts...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errSpawn = errors.New("spawn failed")
