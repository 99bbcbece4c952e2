package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/scheduler"
	"github.com/roach88/cogtask/internal/server"
	"github.com/roach88/cogtask/internal/store"
	"github.com/roach88/cogtask/internal/task"
	"github.com/roach88/cogtask/internal/tui"
	"github.com/roach88/cogtask/internal/ui"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Block       string
	Headless    bool
	Database    string
	MetricsAddr string

	// IDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs scheduler.RunIDGenerator
}

// BlockResult is one block outcome of a headless run.
type BlockResult struct {
	Block  string `json:"block"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run the blocks of a task",
		Long: `Run the blocks of a task and record their logs.

Interactive runs open a terminal session listing the blocks. Headless runs
execute the selected block (or every block in order) with no input,
ticking at the task's frame_rate, and print one result per block.

The log database defaults to the task's db setting.

Example:
  cogtask run ./stroop
  cogtask run ./stroop/task.yaml --block practice --headless --db /tmp/runs.db
  cogtask run ./stroop --headless --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Block, "block", "", "run only the named block")
	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "run without a terminal UI")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite log database (default: task db setting)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runTask(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	t, err := task.Load(path)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load task", err)
	}
	slog.Info("task loaded", "task", t.Title(), "blocks", len(t.Blocks))

	start := -1
	if opts.Block != "" {
		if start, err = t.Find(opts.Block); err != nil {
			return WrapExitError(ExitCommandError, "unknown block", err)
		}
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = t.ResolvedConfig().DB
	}
	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	textures := &tui.Textures{}
	srv := server.New(server.Options{
		Task:      t,
		Resources: resource.NewMap(t.Dir()),
		Textures:  textures,
		Logs:      server.StoreLogs{Store: st},
		IDs:       opts.IDs,
	})
	defer srv.Close()

	if !opts.Headless {
		if err := tui.Run(srv, textures, start); err != nil {
			return WrapExitError(ExitFailure, "terminal session failed", err)
		}
		return nil
	}
	return runHeadless(ctx, srv, start, formatter)
}

func runHeadless(ctx context.Context, srv *server.Server, only int, formatter *OutputFormatter) error {
	t := srv.Task()
	blocks := make([]int, 0, len(t.Blocks))
	if only >= 0 {
		blocks = append(blocks, only)
	} else {
		for i := range t.Blocks {
			blocks = append(blocks, i)
		}
	}

	var results []BlockResult
	failed := 0
	for _, i := range blocks {
		if ctx.Err() != nil {
			break
		}

		cfg := t.Block(i).ResolvedConfig()
		p, err := srv.RunBlock(ctx, i, headlessSurface{}, cfg.TickPeriod())
		if err != nil {
			return WrapExitError(ExitFailure, "failed to start block", err)
		}

		r := BlockResult{Block: t.Block(i).Label(), RunID: srv.LastRun(i), Status: p.Status()}
		if p.Err != nil {
			r.Error = p.Err.Error()
		}
		if p.Kind == server.ProgressFailure || p.Kind == server.ProgressCleanupError {
			failed++
		}
		results = append(results, r)

		if !formatter.JSON() {
			fmt.Fprintf(formatter.Writer, "%s [%s]: %s\n", r.Block, r.RunID, p)
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d block(s) failed", failed))
	}
	return nil
}

// headlessSurface is a surface with no input that draws nothing.
type headlessSurface struct{}

func (headlessSurface) KeysDown() []ui.Key      { return nil }
func (headlessSurface) RequestRepaint()         {}
func (headlessSurface) SetCursorHidden(bool)    {}
func (headlessSurface) Text(string)             {}
func (headlessSurface) Image(ui.Frame, float32) {}

// serveMetrics exposes the default Prometheus registry on addr/metrics.
func serveMetrics(addr string) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
