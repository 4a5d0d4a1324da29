package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/dbbuilder/termkeep/internal/config"
)

func handleConfig(args []string) {
	if len(args) == 0 {
		configUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "init":
		handleConfigInit(args[1:])
	case "show":
		handleConfigShow()
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n\n", args[0])
		configUsage()
		os.Exit(1)
	}
}

func configUsage() {
	fmt.Println("Usage: termkeep config <init|show>")
	fmt.Println()
	fmt.Println("  init [--force]   Write a default config file")
	fmt.Println("  show             Print the effective configuration (file + env)")
}

func handleConfigInit(args []string) {
	force := false
	for _, a := range args {
		if a == "--force" || a == "-f" {
			force = true
		}
	}

	path, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot resolve config path: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(os.Stderr, "Config already exists at %s (use --force to overwrite)\n", path)
		os.Exit(1)
	}

	defaults := config.Default()
	if err := config.Save(&defaults); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

func handleConfigShow() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v (showing defaults)\n", err)
	}
	if path, perr := config.Path(); perr == nil {
		if _, serr := os.Stat(path); serr == nil {
			fmt.Printf("# %s\n", path)
		} else {
			fmt.Printf("# %s (not found, showing defaults)\n", path)
		}
	}
	if err := toml.NewEncoder(os.Stdout).Encode(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot render config: %v\n", err)
		os.Exit(1)
	}
}
