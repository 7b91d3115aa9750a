package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procvisor/internal/config"
	"github.com/Paintersrp/procvisor/internal/supervisor"
)

func newRunCmd(ctx *context) *cobra.Command {
	var (
		name          string
		env           map[string]string
		workdir       string
		inheritEnv    bool
		alwaysRestart bool
		waitMode      string
		apiAddr       string
		stopTimeout   time.Duration
		ready         readyFlags
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Supervise a single command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = filepath.Base(args[0])
			}
			if workdir != "" {
				abs, err := filepath.Abs(workdir)
				if err != nil {
					return fmt.Errorf("resolve workdir: %w", err)
				}
				workdir = abs
			}
			spec := &config.ProcessSpec{
				Command:         append([]string(nil), args...),
				Env:             env,
				InheritEnv:      &inheritEnv,
				AlwaysRestart:   alwaysRestart,
				ReadyTimeout:    config.Duration{Duration: ready.timeout},
				WaitMode:        waitMode,
				Ready:           ready.spec(),
				ResolvedWorkdir: workdir,
			}

			logger := ctx.logger(cmd)
			proc, err := buildProcess(name, spec, logger, ctx.signalRegistry())
			if err != nil {
				return err
			}
			return supervise(cmd, logger, []*supervisor.Process{proc}, superviseOptions{
				apiAddr:     apiAddr,
				stopTimeout: stopTimeout,
				waitReady:   spec.Ready != nil,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Name used in logs and metrics (default: command basename)")
	flags.StringToStringVarP(&env, "env", "e", nil, "Environment override KEY=VALUE (repeatable)")
	flags.StringVar(&workdir, "workdir", "", "Working directory for the command")
	flags.BoolVar(&inheritEnv, "inherit-env", true, "Merge --env over the host environment instead of replacing it")
	flags.BoolVar(&alwaysRestart, "always-restart", false, "Restart the command after clean exits too")
	flags.StringVar(&waitMode, "wait-mode", "auto", "How child exit is observed (auto, native, poll)")
	flags.StringVar(&apiAddr, "api-addr", "", "Serve the status API and /metrics on this address")
	flags.DurationVar(&stopTimeout, "stop-timeout", defaultStopTimeout, "How long to wait for the command to exit on shutdown")
	addReadyFlags(flags, &ready)

	return cmd
}
