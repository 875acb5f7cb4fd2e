package main

import (
	"fmt"
	"os"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	app := newApp()
	defer app.close()

	if err := newRootCmd(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		app.close()
		os.Exit(1)
	}
}
