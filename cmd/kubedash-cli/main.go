package main

import (
	"fmt"
	"os"

	"github.com/kubedash/kubedash-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", command.FormatError(err))
		os.Exit(1)
	}
}
