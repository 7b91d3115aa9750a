package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procvisor/internal/config"
	"github.com/Paintersrp/procvisor/internal/supervisor"
)

func newUpCmd(ctx *context) *cobra.Command {
	var (
		file        string
		apiAddr     string
		stopTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Supervise every process in a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := config.Load(file)
			if err != nil {
				return err
			}

			logger := ctx.logger(cmd)
			registry := ctx.signalRegistry()
			names := manifest.ProcessNames()
			procs := make([]*supervisor.Process, 0, len(names))
			waitReady := false
			for _, name := range names {
				spec := manifest.Processes[name]
				proc, err := buildProcess(name, spec, logger, registry)
				if err != nil {
					return err
				}
				if spec.Ready != nil {
					waitReady = true
				}
				procs = append(procs, proc)
			}

			return supervise(cmd, logger, procs, superviseOptions{
				apiAddr:     apiAddr,
				stopTimeout: stopTimeout,
				waitReady:   waitReady,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "procvisor.yaml", "Path to the process manifest")
	cmd.Flags().StringVar(&apiAddr, "api-addr", "", "Serve the status API and /metrics on this address")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", defaultStopTimeout, "How long to wait for processes to exit on shutdown")
	return cmd
}
