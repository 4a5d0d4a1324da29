// Command termkeep keeps Windows terminal sessions alive: it watches
// terminal windows for inactivity and sends a configurable keystroke
// sequence to windows whose output has stopped changing.
package main

import (
	"fmt"
	"os"
)

const Version = "0.3.1"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("termkeep v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "start":
		handleStart(args[1:])
	case "status":
		handleStatus(args[1:])
	case "validate-keys":
		handleValidateKeys(args[1:])
	case "config":
		handleConfig(args[1:])
	case "doctor":
		handleDoctor(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`termkeep - terminal window inactivity monitor

Usage: termkeep <command> [options]

Commands:
  start            Run the monitor loop
  status           Show monitor statistics and recent actions
  validate-keys    Check a keystroke sequence for problems
  config init      Write a default config file
  config show      Print the effective configuration
  doctor           Run environment and extraction diagnostics
  version          Print version
  help             Show this help

Run 'termkeep <command> --help' for command options.`)
}
