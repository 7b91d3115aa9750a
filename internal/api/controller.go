package api

import (
	stdcontext "context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Paintersrp/procvisor/internal/supervisor"
)

// ProcessController serves Controller requests from a fixed set of
// supervised processes.
type ProcessController struct {
	version string

	mu        sync.RWMutex
	processes map[string]*supervisor.Process
}

// NewProcessController indexes processes by name.
func NewProcessController(version string, processes ...*supervisor.Process) *ProcessController {
	c := &ProcessController{
		version:   version,
		processes: make(map[string]*supervisor.Process, len(processes)),
	}
	for _, p := range processes {
		if p != nil {
			c.processes[p.Name()] = p
		}
	}
	return c
}

// Names returns the supervised process names in sorted order.
func (c *ProcessController) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.processes))
	for name := range c.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status snapshots every supervised process.
func (c *ProcessController) Status(ctx stdcontext.Context) (*StatusReport, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := &StatusReport{
		Version:     c.version,
		GeneratedAt: time.Now().UTC(),
		Processes:   make(map[string]ProcessReport, len(c.processes)),
	}
	for name, p := range c.processes {
		entry := ProcessReport{
			Name:     name,
			ID:       p.ID(),
			State:    p.State().String(),
			Pid:      p.Pid(),
			Running:  p.Running(),
			Restarts: p.Restarts(),
		}
		if code, ok := p.ReturnCode(); ok {
			entry.ReturnCode = &code
		}
		report.Processes[name] = entry
	}
	return report, nil
}

// Terminate stops the named process permanently.
func (c *ProcessController) Terminate(ctx stdcontext.Context, name string) (*TerminateResult, error) {
	c.mu.RLock()
	p, ok := c.processes[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	code, err := p.Terminate(ctx)
	if err != nil {
		return nil, err
	}
	return &TerminateResult{Process: name, ExitCode: code, CompletedAt: time.Now().UTC()}, nil
}
