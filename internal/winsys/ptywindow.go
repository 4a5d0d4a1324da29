//go:build !windows

package winsys

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PtyWindow wraps a real shell running on a pseudo-terminal as a simulated
// window, so the doctor self-test can exercise the full pipeline against a
// process that actually produces and consumes terminal I/O.
type PtyWindow struct {
	Handle Handle

	sys  *SimSystem
	cmd  *exec.Cmd
	ptmx *os.File

	mu     sync.Mutex
	output []byte
	closed bool
}

// StartPtyWindow spawns shell (default /bin/sh) on a pty and registers it on
// sys as a cmd.exe-shaped window whose content tracks the pty output.
// Injected key sequences are written back to the shell's stdin.
func StartPtyWindow(sys *SimSystem, shell string) (*PtyWindow, error) {
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start %s on pty: %w", shell, err)
	}
	pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80})

	w := &PtyWindow{sys: sys, cmd: cmd, ptmx: ptmx}
	sw := &SimWindow{
		Info: WindowInfo{
			ProcessName: "cmd.exe",
			Title:       "termkeep doctor shell",
			Visible:     true,
			Enabled:     true,
			Class:       "ConsoleWindowClass",
			PID:         uint32(cmd.Process.Pid),
		},
		KeySink: w.deliver,
	}
	w.Handle = sys.AddWindow(sw)

	go w.pump()
	return w, nil
}

// pump mirrors pty output into the simulated window's content.
func (w *PtyWindow) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := w.ptmx.Read(buf)
		if n > 0 {
			w.mu.Lock()
			w.output = append(w.output, buf[:n]...)
			if len(w.output) > 32*1024 {
				w.output = w.output[len(w.output)-32*1024:]
			}
			content := string(w.output)
			w.mu.Unlock()
			w.sys.SetContent(w.Handle, content)
		}
		if err != nil {
			return
		}
	}
}

// deliver writes an injected key sequence to the shell's stdin.
func (w *PtyWindow) deliver(tokens []KeyToken) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("pty window closed")
	}
	for _, tok := range tokens {
		var data string
		if tok.IsNamed() {
			switch tok.Name {
			case "ENTER":
				data = "\r"
			case "TAB":
				data = "\t"
			case "SPACE":
				data = " "
			case "BACKSPACE":
				data = "\x7f"
			case "ESC":
				data = "\x1b"
			default:
				continue
			}
		} else {
			data = tok.Text
		}
		if _, err := w.ptmx.Write([]byte(data)); err != nil {
			return fmt.Errorf("write to pty: %w", err)
		}
	}
	return nil
}

// Close tears down the shell and unmaps the window.
func (w *PtyWindow) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.sys.RemoveWindow(w.Handle)
	w.ptmx.Close()
	if w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	return w.cmd.Wait()
}
