package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Paintersrp/procvisor/internal/api"
	apihttp "github.com/Paintersrp/procvisor/internal/api/http"
	"github.com/Paintersrp/procvisor/internal/supervisor"
)

var newAPIServer = apihttp.NewServer

const defaultStopTimeout = 10 * time.Second

type superviseOptions struct {
	apiAddr     string
	stopTimeout time.Duration
	waitReady   bool
}

// supervise starts every process, reports readiness, optionally serves the
// control API, and blocks until every lifecycle ends or the command context
// is cancelled. Cancellation terminates whatever is still running.
func supervise(cmd *cobra.Command, logger *slog.Logger, procs []*supervisor.Process, opts superviseOptions) error {
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = stdcontext.Background()
	}
	if opts.stopTimeout <= 0 {
		opts.stopTimeout = defaultStopTimeout
	}

	g, gctx := errgroup.WithContext(runCtx)
	for _, p := range procs {
		g.Go(func() error {
			if err := p.Start(gctx); err != nil {
				return fmt.Errorf("start %s: %w", p.Name(), err)
			}
			logger.Info("process started", slog.String("process", p.Name()), slog.Int("pid", p.Pid()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		stopAll(logger, procs, opts.stopTimeout)
		return err
	}

	if opts.waitReady {
		for _, p := range procs {
			go func() {
				if p.Ready(runCtx, nil) {
					logger.Info("process ready", slog.String("process", p.Name()))
					return
				}
				if runCtx.Err() == nil {
					logger.Warn("process not ready before timeout", slog.String("process", p.Name()))
				}
			}()
		}
	}

	stopServer := func() error { return nil }
	if opts.apiAddr != "" {
		stop, err := startAPIServer(cmd, runCtx, opts.apiAddr, procs)
		if err != nil {
			stopAll(logger, procs, opts.stopTimeout)
			return err
		}
		stopServer = stop
	}

	lifecycles := make(chan error, 1)
	go func() {
		var errs []error
		for _, p := range procs {
			if err := p.Wait(stdcontext.Background()); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
		lifecycles <- errors.Join(errs...)
	}()

	var runErr error
	select {
	case runErr = <-lifecycles:
	case <-runCtx.Done():
		logger.Info("shutting down")
		stopAll(logger, procs, opts.stopTimeout)
		select {
		case runErr = <-lifecycles:
		case <-time.After(opts.stopTimeout):
			runErr = errors.New("timed out waiting for processes to exit")
		}
	}

	if err := stopServer(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// stopAll terminates every process concurrently. Processes already killed,
// for example by a relayed host signal, are skipped.
func stopAll(logger *slog.Logger, procs []*supervisor.Process, timeout time.Duration) {
	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), timeout)
	defer cancel()

	var g errgroup.Group
	for _, p := range procs {
		g.Go(func() error {
			code, err := p.Terminate(ctx)
			switch {
			case errors.Is(err, supervisor.ErrKilled):
			case err != nil:
				logger.Warn("failed to terminate process", slog.String("process", p.Name()), slog.Any("err", err))
			default:
				logger.Info("process terminated", slog.String("process", p.Name()), slog.Int("code", code))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func startAPIServer(cmd *cobra.Command, runCtx stdcontext.Context, addr string, procs []*supervisor.Process) (func() error, error) {
	control := api.NewProcessController(Version, procs...)
	server, err := newAPIServer(apihttp.Config{Addr: addr, Controller: control})
	if err != nil {
		return nil, err
	}
	serverCtx, cancel := stdcontext.WithCancel(runCtx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(serverCtx)
	}()
	readyTimer := time.NewTimer(200 * time.Millisecond)
	defer readyTimer.Stop()
	select {
	case err := <-errCh:
		cancel()
		if err == nil {
			err = errors.New("control API stopped unexpectedly")
		}
		return nil, err
	case <-readyTimer.C:
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())
	return func() error {
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, nil
}
