package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/dbbuilder/termkeep/internal/config"
	"github.com/dbbuilder/termkeep/internal/inject"
	"github.com/dbbuilder/termkeep/internal/monitor"
	"github.com/dbbuilder/termkeep/internal/platform"
)

// mark renders a pass/fail indicator, colored when stdout is a terminal.
func mark(ok bool) string {
	colored := term.IsTerminal(int(os.Stdout.Fd()))
	switch {
	case ok && colored:
		return "\x1b[32m+\x1b[0m"
	case ok:
		return "+"
	case colored:
		return "\x1b[31m-\x1b[0m"
	default:
		return "-"
	}
}

// handleDoctor checks the environment and runs the discovery and extraction
// pipeline once, reporting what each strategy sees per window. On Windows it
// inspects the live desktop; elsewhere it spins up a shell on a pty behind a
// simulated window so the full pipeline still gets exercised.
func handleDoctor(args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Second, "Overall diagnostics deadline")
	fs.Usage = func() {
		fmt.Println("Usage: termkeep doctor [options]")
		fmt.Println()
		fmt.Println("Run environment and extraction diagnostics.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	p := platform.Detect()
	fmt.Printf("Platform:           %s\n", p)
	fmt.Printf("Window automation:  %v\n", platform.CanAutomateWindows())

	settings, err := config.Load()
	if err != nil {
		fmt.Printf("Config:             ERROR %v (defaults in effect)\n", err)
	} else if path, perr := config.Path(); perr == nil {
		if _, serr := os.Stat(path); serr == nil {
			fmt.Printf("Config:             %s\n", path)
		} else {
			fmt.Printf("Config:             defaults (%s not found)\n", path)
		}
	}
	if dir, derr := config.Dir(); derr == nil {
		if warn := platform.CheckFsnotifySupport(dir); warn != "" {
			fmt.Printf("Config auto-reload: WARNING %s\n", warn)
		} else {
			fmt.Printf("Config auto-reload: ok\n")
		}
	}

	v := inject.ValidateSequence(settings.KeysToSend)
	if v.IsValid {
		fmt.Printf("Keystroke sequence: %q ok (%d tokens)\n", settings.KeysToSend, len(v.Tokens))
	} else {
		fmt.Printf("Keystroke sequence: %q INVALID: %v\n", settings.KeysToSend, v.Errors)
	}
	for _, w := range v.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	sys, cleanup, err := doctorSystem()
	if err != nil {
		fmt.Printf("Window system:      unavailable (%v)\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m := monitor.New(sys, settings)
	res := m.Tick(ctx)
	fmt.Printf("\nDiscovered %d terminal window(s)\n", res.Discovered)

	for _, state := range m.Tracker().Windows() {
		fmt.Printf("\nWindow 0x%X  %s\n", uint64(state.Handle), state.ProcessName)
		results, derr := m.Extractor().Diagnose(ctx, state.Handle)
		if derr != nil {
			fmt.Printf("  diagnose failed: %v\n", derr)
			continue
		}
		for _, r := range results {
			fmt.Printf("  %s %-22s %5d chars  %q\n", mark(r.OK), r.Strategy, r.Length, r.Preview)
		}
	}

	if res.Discovered == 0 {
		fmt.Println("\nNo terminal windows found. Check target_processes in the config.")
		os.Exit(1)
	}
	fmt.Println("\nPipeline ok.")
}
