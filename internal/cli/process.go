package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/Paintersrp/procvisor/internal/config"
	"github.com/Paintersrp/procvisor/internal/probe"
	"github.com/Paintersrp/procvisor/internal/runtime"
	"github.com/Paintersrp/procvisor/internal/supervisor"
)

// buildProcess turns a manifest entry into a supervised process.
func buildProcess(name string, spec *config.ProcessSpec, logger *slog.Logger, registry supervisor.SignalRegistry) (*supervisor.Process, error) {
	if spec == nil {
		return nil, fmt.Errorf("process %s: missing specification", name)
	}
	mode, err := runtime.ParseWaitMode(spec.WaitMode)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", name, err)
	}
	opts := []supervisor.Option{
		supervisor.WithEnv(spec.Env),
		supervisor.WithInheritEnv(spec.InheritsEnv()),
		supervisor.WithWorkdir(spec.ResolvedWorkdir),
		supervisor.WithAlwaysRestart(spec.AlwaysRestart),
		supervisor.WithReadyTimeout(spec.ReadyTimeout.Duration),
		supervisor.WithWaitMode(mode),
		supervisor.WithLogger(logger),
		supervisor.WithSignalRegistry(registry),
		supervisor.WithStdio(nil, os.Stdout, os.Stderr),
	}
	if spec.Ready != nil {
		prober, err := probe.New(spec.Ready)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", name, err)
		}
		opts = append(opts, supervisor.WithReadyFunc(supervisor.ProbeReady(prober)))
	}
	return supervisor.New(name, spec.Command, opts...), nil
}

// readyFlags collects the readiness probe flags of the run command.
type readyFlags struct {
	http    string
	tcp     string
	cmd     []string
	timeout time.Duration
}

func addReadyFlags(flags *pflag.FlagSet, r *readyFlags) {
	flags.StringVar(&r.http, "ready-http", "", "URL polled until it answers 2xx")
	flags.StringVar(&r.tcp, "ready-tcp", "", "Address dialed until it accepts connections")
	flags.StringSliceVar(&r.cmd, "ready-cmd", nil, "Command (comma separated argv) run until it exits 0")
	flags.DurationVar(&r.timeout, "ready-timeout", probe.DefaultTimeout, "Upper bound on readiness polling")
}

func (r readyFlags) spec() *config.ProbeSpec {
	if r.http == "" && r.tcp == "" && len(r.cmd) == 0 {
		return nil
	}
	spec := &config.ProbeSpec{}
	if r.http != "" {
		spec.HTTP = &config.HTTPProbeSpec{URL: r.http}
	}
	if r.tcp != "" {
		spec.TCP = &config.TCPProbeSpec{Address: r.tcp}
	}
	if len(r.cmd) > 0 {
		spec.Command = &config.CommandProbe{Command: append([]string(nil), r.cmd...)}
	}
	return spec
}
