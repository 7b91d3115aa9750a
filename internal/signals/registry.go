// Package signals relays host interrupt and terminate signals to every
// registered supervisor before the host process exits.
//
// The registry installs its operating system hook lazily on the first
// registration and is never torn down. Handlers run in registration order on
// the registry's dispatch goroutine; after all of them return, the chained
// handler for the signal (if any) runs, otherwise the process exits with
// status 0.
//
// Handlers receive the host signal unchanged. Platform translation, such as
// turning os.Interrupt into a console CTRL_BREAK event on windows, belongs to
// the process backend that delivers it to a child.
//
// Go offers no way to read a previously installed handler, so a program that
// wants to keep its own shutdown logic declares it with Chain instead of
// relying on implicit discovery.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler receives a relayed signal.
type Handler func(os.Signal)

// Registration identifies one call to Add. Registrations are compared by
// identity, so the same Handler may be registered more than once.
type Registration struct {
	handler Handler
}

// Registry fans intercepted signals out to registered handlers. All methods
// are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	handlers []*Registration
	chained  map[os.Signal]Handler

	installOnce sync.Once
	notify      func(c chan<- os.Signal, sig ...os.Signal)
	exit        func(code int)
	signals     []os.Signal
}

// Option customises a Registry.
type Option func(*Registry)

// WithNotify replaces signal.Notify as the hook used to intercept signals.
func WithNotify(fn func(c chan<- os.Signal, sig ...os.Signal)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.notify = fn
		}
	}
}

// WithExit replaces os.Exit, which is called when no chained handler exists
// for a dispatched signal.
func WithExit(fn func(code int)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.exit = fn
		}
	}
}

// WithSignals overrides the intercepted signal set.
func WithSignals(sigs ...os.Signal) Option {
	return func(r *Registry) {
		if len(sigs) > 0 {
			r.signals = append([]os.Signal(nil), sigs...)
		}
	}
}

// NewRegistry constructs an isolated registry. Most callers want Default.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		chained: make(map[os.Signal]Handler),
		notify:  signal.Notify,
		exit:    os.Exit,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry. It is created on first use and
// lives for the remainder of the process.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Add registers h and installs the operating system hook if this is the
// first registration on r.
func (r *Registry) Add(h Handler) *Registration {
	r.install()
	reg := &Registration{handler: h}
	r.mu.Lock()
	r.handlers = append(r.handlers, reg)
	r.mu.Unlock()
	return reg
}

// Remove unregisters reg. It reports false, without error, when reg is nil or
// was already removed.
func (r *Registry) Remove(reg *Registration) bool {
	if reg == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.handlers {
		if existing == reg {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// Chain sets the handler invoked after the registered handlers for sig. A
// nil handler clears the chain, restoring the exit-with-zero behaviour.
func (r *Registry) Chain(sig os.Signal, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.chained, sig)
		return
	}
	r.chained[sig] = h
}

func (r *Registry) install() {
	r.installOnce.Do(func() {
		ch := make(chan os.Signal, len(r.signals))
		r.notify(ch, r.signals...)
		go func() {
			for sig := range ch {
				r.dispatch(sig)
			}
		}()
	})
}

// dispatch relays sig to a snapshot of the registered handlers. Handlers run
// without the lock held so they may call Remove.
func (r *Registry) dispatch(sig os.Signal) {
	r.mu.Lock()
	snapshot := make([]*Registration, len(r.handlers))
	copy(snapshot, r.handlers)
	prev := r.chained[sig]
	r.mu.Unlock()

	for _, reg := range snapshot {
		reg.handler(sig)
	}

	if prev != nil {
		prev(sig)
		return
	}
	r.exit(0)
}
