package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dbbuilder/termkeep/internal/inject"
)

func handleValidateKeys(args []string) {
	fs := flag.NewFlagSet("validate-keys", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output the validation result as JSON")
	fs.Usage = func() {
		fmt.Println("Usage: termkeep validate-keys <sequence>")
		fmt.Println()
		fmt.Println("Check a keystroke sequence for problems. Named keys use braces,")
		fmt.Println("e.g. \"continue{ENTER}\" or \"{CTRL}c\".")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	seq := fs.Arg(0)

	v := inject.ValidateSequence(seq)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
	} else {
		for _, e := range v.Errors {
			fmt.Printf("error: %s\n", e)
		}
		for _, w := range v.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if v.IsValid {
			fmt.Printf("OK: %d token(s)\n", len(v.Tokens))
			for i, raw := range v.Tokens {
				parsed := inject.ParseSequence(raw)
				if len(parsed) == 1 && parsed[0].IsNamed() {
					fmt.Printf("  %d: key  {%s}\n", i+1, parsed[0].Name)
				} else {
					fmt.Printf("  %d: text %q\n", i+1, raw)
				}
			}
		}
	}
	if !v.IsValid {
		os.Exit(1)
	}
}
