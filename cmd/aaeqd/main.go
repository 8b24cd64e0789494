// Command aaeqd is the AAEQ node daemon: it loads configuration, wires the
// DSP pipeline and sink manager, and serves the control API and ANP
// listener until terminated.
package main

import (
	"github.com/aaeq-audio/aaeq/cmd"
	"github.com/aaeq-audio/aaeq/internal/conf"
	"github.com/aaeq-audio/aaeq/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("failed to load configuration", "error", err)
	}

	root := cmd.RootCommand(settings)
	if err := root.Execute(); err != nil {
		logging.Fatal("aaeqd exited with error", "error", err)
	}
}
