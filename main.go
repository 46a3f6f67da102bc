package main

import (
	"fmt"
	"os"

	"github.com/ingen-audio/ingen/cmd"
	"github.com/ingen-audio/ingen/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingen: error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
