package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownProcess = errors.New("unknown process")
)

// ProcessReport describes the runtime state for a single supervised process.
type ProcessReport struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	State      string `json:"state"`
	Pid        int    `json:"pid"`
	Running    bool   `json:"running"`
	Restarts   int    `json:"restarts"`
	ReturnCode *int   `json:"return_code,omitempty"`
}

// StatusReport aggregates status information for every supervised process.
type StatusReport struct {
	Version     string                   `json:"version"`
	GeneratedAt time.Time                `json:"generated_at"`
	Processes   map[string]ProcessReport `json:"processes"`
}

// TerminateResult captures the outcome of a terminate operation.
type TerminateResult struct {
	Process     string    `json:"process"`
	ExitCode    int       `json:"exit_code"`
	CompletedAt time.Time `json:"completed_at"`
}

// Controller exposes supervisor operations required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	Terminate(stdcontext.Context, string) (*TerminateResult, error)
}
