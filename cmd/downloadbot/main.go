package main

import (
	"os"

	"github.com/SayonaraQ/downloadbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
