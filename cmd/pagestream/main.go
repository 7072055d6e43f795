package main

import (
	"fmt"
	"os"
	"runtime"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(dispatchSubcommand(os.Args[1:]))
}

func dispatchSubcommand(args []string) int {
	if len(args) == 0 {
		printHelp()
		return exitConfigError
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return 0
	case "--help", "-h", "help":
		printHelp()
		return 0
	case "serve":
		return runCommand(runServeCommand, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printHelp()
		return exitConfigError
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

func printHelp() {
	fmt.Println("pagestream - interactive page streaming over websockets")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  pagestream <COMMAND> [FLAGS]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  serve [--config path] [--bind host:port] [--engine chrome|fake]")
	fmt.Println("                                   Start the stream server")
	fmt.Println("  version                          Print version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  PAGESTREAM_BIND, PAGESTREAM_ENGINE, PAGESTREAM_SESSION_GRACE_MS, PAGESTREAM_LOG_LEVEL, ...")
	fmt.Println("                                   Override config file values")
}

func printVersion() {
	fmt.Printf("pagestream %s\n", version)
	if commit != "unknown" {
		fmt.Printf("  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Printf("  Built:      %s\n", buildDate)
	}
	fmt.Printf("  Go version: %s\n", runtime.Version())
}
