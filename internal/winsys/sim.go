package winsys

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SimSystem is an in-memory window system. Tests drive the monitor pipeline
// against it, and the doctor self-test wraps a pty shell in one.
type SimSystem struct {
	mu      sync.Mutex
	windows map[Handle]*SimWindow
	nextH   Handle

	// ConnectErr, when set, makes every Connect fail.
	ConnectErr error
	// EnumerateErr, when set, makes Enumerate fail.
	EnumerateErr error
}

// SimWindow is one simulated window. Fields may be mutated between ticks to
// simulate content changes, dying windows, and flaky automation.
type SimWindow struct {
	Info    WindowInfo
	Content string // text served by the named terminal control

	EditText      string            // text served by editable-text children
	LegacyProps   map[string]string // legacy accessibility properties
	NamedControls []string          // control names that serve Content

	ConnectErr error // per-window connect failure
	SendErr    error // key injection failure
	FocusErr   error // focus failure
	DenyExists bool  // existence probe fails even though the window is mapped

	Sent [][]KeyToken // sequences received, in order

	// KeySink, when set, additionally receives every injected sequence.
	// The pty-backed doctor window uses it to deliver keys to a real shell.
	KeySink func([]KeyToken) error
}

// NewSimSystem returns an empty simulated window system.
func NewSimSystem() *SimSystem {
	return &SimSystem{windows: make(map[Handle]*SimWindow), nextH: 0x1000}
}

// AddWindow registers a window and returns its handle. Zero-value geometry
// defaults to a plausible terminal size so discovery heuristics pass.
func (s *SimSystem) AddWindow(w *SimWindow) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextH += 0x10
	h := s.nextH
	w.Info.Handle = h
	if w.Info.Rect == (Rect{}) {
		w.Info.Rect = Rect{Left: 0, Top: 0, Right: 800, Bottom: 600}
	}
	if len(w.NamedControls) == 0 {
		w.NamedControls = []string{"Terminal"}
	}
	s.windows[h] = w
	return h
}

// AddTerminal registers a visible terminal-shaped window for a process and
// returns its handle. The window class is picked to match the process family
// so discovery accepts it.
func (s *SimSystem) AddTerminal(processName, title, content string) Handle {
	class := "ConsoleWindowClass"
	if processName == "WindowsTerminal.exe" {
		class = "CASCADIA_HOSTING_WINDOW_CLASS"
	}
	return s.AddWindow(&SimWindow{
		Info: WindowInfo{
			ProcessName: processName,
			Title:       title,
			Visible:     true,
			Enabled:     true,
			Class:       class,
			PID:         4242,
		},
		Content: content,
	})
}

// RemoveWindow unmaps a window, simulating the user closing it.
func (s *SimSystem) RemoveWindow(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, h)
}

// Window returns the simulated window for a handle, or nil.
func (s *SimSystem) Window(h Handle) *SimWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows[h]
}

// SetContent updates the text a window's terminal control serves.
func (s *SimSystem) SetContent(h Handle, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w := s.windows[h]; w != nil {
		w.Content = content
	}
}

func (s *SimSystem) Enumerate() ([]Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EnumerateErr != nil {
		return nil, s.EnumerateErr
	}
	handles := make([]Handle, 0, len(s.windows))
	for h, w := range s.windows {
		if w.Info.Visible {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

func (s *SimSystem) Info(h Handle) (WindowInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[h]
	if !ok {
		return WindowInfo{}, false
	}
	return w.Info, true
}

func (s *SimSystem) Connect(ctx context.Context, h Handle) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConnectErr != nil {
		return nil, s.ConnectErr
	}
	w, ok := s.windows[h]
	if !ok {
		return nil, fmt.Errorf("window %#x not found", uintptr(h))
	}
	if w.ConnectErr != nil {
		return nil, w.ConnectErr
	}
	return &simConn{sys: s, handle: h}, nil
}

type simConn struct {
	sys    *SimSystem
	handle Handle
	closed bool
}

func (c *simConn) window() *SimWindow {
	if c.closed {
		return nil
	}
	return c.sys.Window(c.handle)
}

func (c *simConn) Exists(timeout time.Duration) bool {
	w := c.window()
	return w != nil && !w.DenyExists
}

func (c *simConn) NamedControlText(names []string) (string, bool) {
	w := c.window()
	if w == nil {
		return "", false
	}
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	for _, name := range names {
		for _, have := range w.NamedControls {
			if name == have && w.Content != "" {
				return w.Content, true
			}
		}
	}
	return "", false
}

func (c *simConn) EditChildrenText() (string, bool) {
	w := c.window()
	if w == nil {
		return "", false
	}
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if w.EditText == "" {
		return "", false
	}
	return w.EditText, true
}

func (c *simConn) LegacyProperty(key string) (string, bool) {
	w := c.window()
	if w == nil {
		return "", false
	}
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	v, ok := w.LegacyProps[key]
	return v, ok && v != ""
}

func (c *simConn) Title() (string, bool) {
	w := c.window()
	if w == nil {
		return "", false
	}
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	return w.Info.Title, w.Info.Title != ""
}

func (c *simConn) Focus() error {
	w := c.window()
	if w == nil {
		return fmt.Errorf("window %#x gone", uintptr(c.handle))
	}
	return w.FocusErr
}

func (c *simConn) SendKeys(tokens []KeyToken) error {
	w := c.window()
	if w == nil {
		return fmt.Errorf("window %#x gone", uintptr(c.handle))
	}
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	if w.SendErr != nil {
		return w.SendErr
	}
	seq := make([]KeyToken, len(tokens))
	copy(seq, tokens)
	w.Sent = append(w.Sent, seq)
	if w.KeySink != nil {
		return w.KeySink(seq)
	}
	return nil
}

func (c *simConn) Close() { c.closed = true }
