// The main package for the miles executable.
package main

import (
	"github.com/JakeFAU/miles-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
