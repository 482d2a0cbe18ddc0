package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "run":
		return runBatch(args[1:])
	case "serve":
		return runServe(args[1:])
	case "languages":
		return runLanguages(args[1:])
	case "hash-password":
		return runHashPassword(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "presslate CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  presslate <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run            Translate and republish a batch of items")
	fmt.Fprintln(os.Stderr, "  serve          Start the HTTP API server")
	fmt.Fprintln(os.Stderr, "  languages      List supported target languages")
	fmt.Fprintln(os.Stderr, "  hash-password  Produce a bcrypt hash for API_PASSWORD_HASH")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"presslate <command> -h\" for command-specific flags.")
}
