// crewly is the CLI for the crewly agent orchestrator.
package main

import (
	"os"

	"github.com/crewly-ai/crewly/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
