//go:build windows

package winsys

// Native returns the live Win32 window system.
func Native() (System, error) {
	return NewWin32System(), nil
}
