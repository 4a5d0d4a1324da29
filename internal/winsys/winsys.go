// Package winsys abstracts the OS window surface the monitor runs against:
// enumerating top-level windows, resolving their owning processes, and
// talking to a single window through an automation connection.
//
// The real backend (win32_windows.go) drives the Win32 API via
// golang.org/x/sys/windows. The simulated backend (sim.go) backs tests and
// the doctor self-test without a live window system.
package winsys

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by Native on platforms without a live window
// system backend.
var ErrUnsupported = errors.New("window automation requires Windows")

// Handle is an opaque window identity. On Windows it is the HWND value.
type Handle uintptr

// Rect is a window bounding rectangle in screen pixels.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int32 { return r.Right - r.Left }

// Height returns the rectangle height in pixels.
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// WindowInfo is the per-window metadata snapshot produced by enumeration.
// It is rebuilt every tick and never persisted.
type WindowInfo struct {
	Handle      Handle
	ProcessName string // executable base name, e.g. "cmd.exe"
	Title       string
	Rect        Rect
	Visible     bool
	Enabled     bool
	Class       string
	PID         uint32
	CommandLine string // best-effort; empty without sufficient privileges
}

// System is the window system the monitor runs against.
type System interface {
	// Enumerate returns the handles of all visible top-level windows.
	// A failed enumeration returns an error; the caller treats that as an
	// empty result for the tick.
	Enumerate() ([]Handle, error)

	// Info fetches metadata for one window. ok is false when the window
	// has gone away or its process cannot be resolved; the caller skips
	// the window and continues.
	Info(h Handle) (info WindowInfo, ok bool)

	// Connect establishes an automation connection to a window, bounded
	// by ctx. The returned connection stays valid until Close or until
	// the window dies underneath it.
	Connect(ctx context.Context, h Handle) (Conn, error)
}

// Conn is a live automation connection to one window. Every method is a
// best-effort OS call: failures are reported through ok/error returns and
// never panic across the package boundary.
type Conn interface {
	// Exists probes that the window is still alive, within timeout.
	Exists(timeout time.Duration) bool

	// NamedControlText reads the text of a child control whose name is in
	// names, preferring the legacy Value property over visible text.
	NamedControlText(names []string) (string, bool)

	// EditChildrenText reads the concatenated text of editable-text child
	// controls.
	EditChildrenText() (string, bool)

	// LegacyProperty reads a legacy accessibility property of the window
	// itself (e.g. "Value", "Text", "Name", "LegacyIAccessible.Value").
	LegacyProperty(key string) (string, bool)

	// Title returns the window's title text.
	Title() (string, bool)

	// Focus sets input focus on the window. Best-effort: some targets
	// accept input without focus, so callers log and continue on failure.
	Focus() error

	// SendKeys injects a parsed keystroke sequence into the window.
	SendKeys(tokens []KeyToken) error

	// Close releases the connection.
	Close()
}

// KeyToken is one element of a parsed keystroke sequence: either literal
// text or a symbolic named key such as ENTER.
type KeyToken struct {
	Text string // literal text; used when Name is empty
	Name string // symbolic key name, upper-case, e.g. "ENTER"
}

// IsNamed reports whether the token is a symbolic key rather than text.
func (t KeyToken) IsNamed() bool { return t.Name != "" }
