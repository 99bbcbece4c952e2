package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cogtask/internal/action"
	"github.com/roach88/cogtask/internal/task"
)

// ValidationResult is the JSON payload of validate.
type ValidationResult struct {
	Valid     bool          `json:"valid"`
	Task      string        `json:"task,omitempty"`
	Version   string        `json:"version,omitempty"`
	Blocks    []BlockReport `json:"blocks,omitempty"`
	Resources int           `json:"resources"`
}

// BlockReport describes one block of a validated task.
type BlockReport struct {
	Name      string   `json:"name"`
	Tree      string   `json:"tree"`
	Resources []string `json:"resources"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <task>",
		Short: "Check a task definition without running it",
		Long: `Load a task file (or a directory containing task.yaml) and check it.

Checks the YAML structure, block names, block configuration against the
config schema, and every action in every block tree. Resources are listed
but not loaded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	t, err := task.Load(path)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid task", err)
	}

	result := ValidationResult{Valid: true, Task: t.Name, Version: t.Version}
	seen := make(map[string]bool)
	for _, b := range t.Blocks {
		res := b.Resources()
		for _, r := range res {
			seen[r] = true
		}
		result.Blocks = append(result.Blocks, BlockReport{
			Name:      b.Label(),
			Tree:      action.Describe(b.Root()),
			Resources: append([]string{}, res...),
		})
		formatter.VerboseLog("block %s: %d resource(s)", b.Label(), len(res))
	}
	result.Resources = len(seen)

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s: %d block(s), %d resource(s)\n", t.Title(), len(t.Blocks), result.Resources)
	for _, b := range result.Blocks {
		fmt.Fprintf(w, "  %s\n", b.Name)
		for _, line := range strings.Split(strings.TrimRight(b.Tree, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	return nil
}
