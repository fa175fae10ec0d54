package main

import (
	"github.com/bettercallok/chillcall/internal/cli"
	"github.com/bettercallok/chillcall/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cli.Execute()
}
