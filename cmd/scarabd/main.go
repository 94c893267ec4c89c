// Command scarabd is the Scarab daemon: it spawns PTY-backed terminal
// sessions and serves their grid state over shared memory and a
// Unix-socket control channel.
package main

import (
	"fmt"
	"os"

	"github.com/raibid-labs/scarab/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
