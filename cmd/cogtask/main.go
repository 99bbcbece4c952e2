// Command cogtask runs cognitive experiment tasks.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cogtask/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cogtask:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
