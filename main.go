// The main package for the feedwatch executable.
package main

import (
	"github.com/feedwatch/feedwatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
