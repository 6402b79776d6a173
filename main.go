// The main package for the media-log-ingestor executable.
package main

import (
	"github.com/cloudadoption/media-log-ingestor/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
