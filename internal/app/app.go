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
	case "health":
		return runHealth(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "match":
		return runMatch(args[1:])
	case "apply-changes":
		return runApplyChanges(args[1:])
	case "show":
		return runShow(args[1:])
	case "create":
		return runCreate(args[1:])
	case "update":
		return runUpdate(args[1:])
	case "transition":
		return runTransition(args[1:])
	case "publish-status":
		return runPublishStatus(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "nightfeed CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  nightfeed <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health          Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest          Ingest scraped record payloads from a JSON file")
	fmt.Fprintln(os.Stderr, "  match           Link unlinked scraped records to unified entities")
	fmt.Fprintln(os.Stderr, "  apply-changes   Fold detected scraped changes into unified entities")
	fmt.Fprintln(os.Stderr, "  show            Print the merged view of one unified entity")
	fmt.Fprintln(os.Stderr, "  create          Create a unified entity by hand")
	fmt.Fprintln(os.Stderr, "  update          Edit fields of a unified entity by hand")
	fmt.Fprintln(os.Stderr, "  transition      Move one event through the publish state machine")
	fmt.Fprintln(os.Stderr, "  publish-status  Bulk-transition events; failures are reported per id")
	fmt.Fprintln(os.Stderr, "  process         Run match + apply-changes for every entity type")
	fmt.Fprintln(os.Stderr, "  run-once        Alias for process")
	fmt.Fprintln(os.Stderr, "  serve           Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"nightfeed <command> -h\" for command-specific flags.")
}
