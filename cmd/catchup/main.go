// Command catchup ingests chunk history and runs catch-up sessions against it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/chunkcatchup/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
