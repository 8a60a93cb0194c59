// barlsp is the Baranium language server. It speaks LSP over stdio.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/baranium/server"

	_ "github.com/tliron/commonlog/simple"
)

var version = "0.1.0"

func main() {
	verbosity := flag.Int("verbosity", 0, "Log verbosity (logs go to the log file, or stderr)")
	logFile := flag.String("log", "", "Write logs to `path` instead of stderr")
	showVersion := flag.Bool("version", false, "Print the version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("barlsp %s\n", version)
		return
	}

	var path *string
	if *logFile != "" {
		path = logFile
	}
	commonlog.Configure(*verbosity, path)

	if err := server.NewLSP(version).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "barlsp: %v\n", err)
		os.Exit(1)
	}
}
