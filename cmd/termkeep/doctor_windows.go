//go:build windows

package main

import "github.com/dbbuilder/termkeep/internal/winsys"

// doctorSystem inspects the live desktop on Windows.
func doctorSystem() (winsys.System, func(), error) {
	sys, err := winsys.Native()
	if err != nil {
		return nil, nil, err
	}
	return sys, func() {}, nil
}
