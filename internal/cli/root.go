package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	plog "github.com/Paintersrp/procvisor/internal/log"
	"github.com/Paintersrp/procvisor/internal/signals"
	"github.com/Paintersrp/procvisor/internal/supervisor"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{}
	env := plog.FromEnv()
	ctx.logLevel = env.Level
	ctx.logFormat = string(env.Format)
	ctx.logSource = env.AddSource

	root := &cobra.Command{
		Use:   "procvisor",
		Short: "Supervise child processes with restart, readiness and signal relay",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.logConfig(cmd.ErrOrStderr())
			return cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&ctx.logLevel, "log-level", ctx.logLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&ctx.logFormat, "log-format", ctx.logFormat, "Log format (auto, json, text)")

	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newUpCmd(ctx))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()

	// Children receive host signals through the registry first; the chained
	// handler then lets the command shut down instead of exiting outright.
	registry := signals.Default()
	shutdown := func(os.Signal) { cancel() }
	registry.Chain(os.Interrupt, shutdown)
	registry.Chain(syscall.SIGTERM, shutdown)

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	logLevel  string
	logFormat string
	logSource bool

	// registry overrides the process-wide signal registry in tests.
	registry supervisor.SignalRegistry
}

func (c *context) logConfig(out io.Writer) *plog.Config {
	return &plog.Config{
		Level:     c.logLevel,
		Format:    plog.Format(c.logFormat),
		Output:    out,
		AddSource: c.logSource,
	}
}

func (c *context) logger(cmd *cobra.Command) *slog.Logger {
	return plog.New(c.logConfig(cmd.ErrOrStderr()))
}

func (c *context) signalRegistry() supervisor.SignalRegistry {
	if c.registry != nil {
		return c.registry
	}
	return signals.Default()
}
