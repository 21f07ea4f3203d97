// Command wavectl drives the wave engine: it runs the simulated switch
// topology, replays wave scenarios, inspects journals and validates
// configs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/wavectl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wavectl:", err)
		os.Exit(cli.ExitCode(err))
	}
}
