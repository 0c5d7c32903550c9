package main

import (
	"os"

	"devshell/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
