package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cogtask/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	RunID string
	Group string
	List  bool
}

// RunSummary is a run record in JSON output.
type RunSummary struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Block      string     `json:"block"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
}

// LogEntry is a log entry in JSON output.
type LogEntry struct {
	Seq   int64     `json:"seq"`
	Time  time.Time `json:"time"`
	Group string    `json:"group"`
	Field string    `json:"field"`
	Value any       `json:"value"`
}

// LogResult is the JSON payload of log.
type LogResult struct {
	Run     RunSummary `json:"run"`
	Entries []LogEntry `json:"entries"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <db>",
		Short: "Dump recorded block logs",
		Long: `Dump the entries recorded for a run, ordered by sequence number.

Without --run, the most recently started run is shown. Values are printed
in CBOR diagnostic notation in text mode and as JSON values in JSON mode.

Example:
  cogtask log ./cogtask.db
  cogtask log ./cogtask.db --run 0190c2a4-... --group keypress
  cogtask log ./cogtask.db --list --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "only entries of this group")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list runs instead of entries")

	return cmd
}

func runLog(opts *LogOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open creates missing databases.
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeStore, fmt.Sprintf("database not found: %s", dbPath), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.List {
		return listRuns(ctx, st, formatter)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, "run not found", map[string]string{"run": opts.RunID})
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	entries, err := st.Entries(ctx, run.ID, opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entries", err)
	}
	formatter.VerboseLog("run %s: %d entries", run.ID, len(entries))

	if formatter.JSON() {
		result := LogResult{Run: summarize(run), Entries: make([]LogEntry, 0, len(entries))}
		for _, e := range entries {
			result.Entries = append(result.Entries, LogEntry{
				Seq: e.Seq, Time: e.Time, Group: e.Group, Field: e.Field, Value: e.Value,
			})
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "run %s  %s/%s  %s\n", run.ID, run.Task, run.Block, runStatus(run))
	for _, e := range entries {
		fmt.Fprintf(w, "%d %s %s/%s %s\n", e.Seq, e.Time.Format(time.RFC3339Nano), e.Group, e.Field, e.Diag())
	}
	return nil
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.JSON() {
		out := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			out = append(out, summarize(r))
		}
		return formatter.Success(out)
	}

	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s  %s/%s  %s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Task, r.Block, runStatus(r))
	}
	return nil
}

func summarize(r store.Run) RunSummary {
	s := RunSummary{ID: r.ID, Task: r.Task, Block: r.Block, StartedAt: r.StartedAt, Status: r.Status}
	if !r.FinishedAt.IsZero() {
		at := r.FinishedAt
		s.FinishedAt = &at
	}
	return s
}

func runStatus(r store.Run) string {
	if r.FinishedAt.IsZero() {
		return "running"
	}
	return r.Status
}
