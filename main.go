// Cascade - Commit-scoped dependency graphs and change impact analysis.
//
// Cascade parses Java and TypeScript sources into a cross-layer dependency
// graph per commit, diffs consecutive graphs into atomic changes, and walks
// reverse dependencies to report which components each commit puts at risk.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/cascade-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
