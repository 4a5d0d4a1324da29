package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/dbbuilder/termkeep/internal/config"
	"github.com/dbbuilder/termkeep/internal/history"
)

// handleStatus reads the journal a running monitor writes. It does not talk
// to the monitor process; the web API does that.
func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of recent actions to show")
	jsonOut := fs.Bool("json", false, "Force JSON output")
	fs.Usage = func() {
		fmt.Println("Usage: termkeep status [options]")
		fmt.Println()
		fmt.Println("Show the latest statistics snapshot and recent actions.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	stateDir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot resolve state directory: %v\n", err)
		os.Exit(1)
	}
	dbPath := filepath.Join(stateDir, history.FileName)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "No history found. Is the monitor running with history enabled?")
		os.Exit(1)
	}
	db, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open history: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	snap, hasSnap, err := db.LatestSnapshot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read snapshot: %v\n", err)
		os.Exit(1)
	}
	actions, err := db.RecentActions(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read actions: %v\n", err)
		os.Exit(1)
	}

	// Piped output gets JSON so scripts can consume it.
	if *jsonOut || !term.IsTerminal(int(os.Stdout.Fd())) {
		out := map[string]any{"actions": actions}
		if hasSnap {
			out["snapshot"] = snap
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	if hasSnap {
		fmt.Printf("Last snapshot: %s\n", snap.Time.Format(time.RFC3339))
		var pretty map[string]any
		if json.Unmarshal(snap.Data, &pretty) == nil {
			if ticks, ok := pretty["ticks"]; ok {
				fmt.Printf("  ticks: %v\n", ticks)
			}
			if tr, ok := pretty["track"].(map[string]any); ok {
				fmt.Printf("  tracked windows: %v\n", tr["tracked"])
				fmt.Printf("  inactivity flags: %v\n", tr["inactivity_flags"])
			}
			if in, ok := pretty["inject"].(map[string]any); ok {
				fmt.Printf("  sends ok/failed: %v/%v\n", in["successes"], in["failures"])
			}
		}
	} else {
		fmt.Println("No statistics snapshot recorded yet.")
	}

	if len(actions) == 0 {
		fmt.Println("No actions recorded.")
		return
	}
	fmt.Printf("\nRecent actions (newest first):\n")
	for _, a := range actions {
		line := fmt.Sprintf("  %s  %-14s", a.Time.Format("2006-01-02 15:04:05"), a.Kind)
		if a.Process != "" {
			line += "  " + a.Process
		}
		if a.Duration > 0 {
			line += fmt.Sprintf("  (inactive %s)", a.Duration.Round(time.Second))
		}
		if a.Detail != "" {
			line += "  " + a.Detail
		}
		fmt.Println(line)
	}
}
