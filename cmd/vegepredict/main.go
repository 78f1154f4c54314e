package main

import (
	"os"

	"github.com/lorwen/vegepredict/cmd/vegepredict/commands"
)

// main is the entry point for the vegepredict CLI:
// go run ./cmd/vegepredict [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
