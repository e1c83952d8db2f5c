// Package main implements the calltrack CLI tool.
//
// The calltrack tool drives the call and object lifecycle tracking core
// from recorded hook traces. It:
//
//  1. Reads a trace of raw hook invocations (one per line)
//  2. Replays every recorded thread on its own goroutine into a session
//  3. Stops the session and writes the captured events as a report
//
// Usage:
//
//	calltrack replay trace.txt                   # Text report on stdout
//	calltrack replay -format json -o out.json t  # JSON report to a file
//	calltrack show out.json                      # Render a saved report
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/calltrack/track"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "replay":
		replayCommand(os.Args[2:])
	case "show":
		showCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("calltrack version %s\n", track.Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`calltrack - Call and Object Lifecycle Tracking Tool

USAGE:
    calltrack <command> [arguments]

COMMANDS:
    replay     Replay a recorded hook trace and report the captured events
    show       Render a saved JSON or YAML report as text
    version    Show version information
    help       Show this help message

REPLAY FLAGS:
    -config <file>   Session configuration (YAML)
    -format <name>   Report format: text, json or yaml (default text)
    -o <file>        Write the report to a file instead of stdout
    -push            Deliver events through a callback instead of buffering
    -v               Log session lifecycle at debug level

EXAMPLES:
    # Replay a trace and print a text report
    calltrack replay trace.txt

    # Replay with a bounded event buffer and save JSON
    calltrack replay -config track.yaml -format json -o report.json trace.txt

    # Look at a saved report
    calltrack show report.json

TRACE FORMAT:
    # comment
    <thread> call    <file> <line> <symbol> [name=object-id[:type] ...]
    <thread> return  <file> <line> <symbol> [object-id [type]] [exc]
    <thread> create  <file> <line> <symbol> <object-id> <type>
    <thread> destroy <file> <line> <symbol> <object-id> <type>

    A file, symbol or argument name of "-" means none (builtins).
    Only the first 8 arguments of a call are kept.

`)
}
