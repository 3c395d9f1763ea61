// stopboard polls a SIRI stop-monitoring feed and rotates the arrivals for
// each route on a board, served to browsers over server-sent events.
package main

import (
	"fmt"
	"os"

	"stopboard.app/internal/buildinfo"
)

func main() {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if err == errHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "stopboard: %v\n", err)
		os.Exit(2)
	}
	if cfg.showVersion {
		buildinfo.Resolve()
		fmt.Printf("stopboard %s (%s)\n", buildinfo.Version, buildinfo.ShortCommit())
		return
	}

	coreApp, err := BuildApplication(cfg.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stopboard: %v\n", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg.Config)
	if err := Run(srv, coreApp, api); err != nil {
		coreApp.Logger.Error("stopboard exited with error", "error", err)
		os.Exit(1)
	}
}
