// Command chatrelay is the process entry point: it wires Settings, every
// store/oracle/transport/service, and the httpserver into either a long-
// running webhook server or the ad-hoc provider-query CLI utility spec.md
// §6 mentions as "out of scope for the core but part of the surface" — here
// it is a thin real consumer of the core search.Client, grounded on the
// teacher's cmd/copilot/main.go (same cobra root-command wiring).
package main

import (
	"fmt"
	"os"

	"github.com/jholhewres/chatrelay/cmd/chatrelay/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
