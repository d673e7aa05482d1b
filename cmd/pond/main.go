// Command pond runs, edits, and relays shared fish ponds.
package main

import (
	"os"

	"github.com/roach88/fishpond/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
