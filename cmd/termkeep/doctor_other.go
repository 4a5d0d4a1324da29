//go:build !windows

package main

import (
	"fmt"
	"time"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

// doctorSystem has no real terminal windows to inspect off-Windows, so it
// runs a shell on a pty behind a simulated window instead.
func doctorSystem() (winsys.System, func(), error) {
	sys := winsys.NewSimSystem()
	w, err := winsys.StartPtyWindow(sys, "")
	if err != nil {
		return nil, nil, fmt.Errorf("pty self-test window: %w", err)
	}
	fmt.Println("Window system:      simulated (pty-backed shell)")
	// Give the shell a moment to print its prompt.
	time.Sleep(200 * time.Millisecond)
	return sys, func() { _ = w.Close() }, nil
}
