//go:build windows

package winsys

import (
	"fmt"
	"time"
)

// Virtual-key codes for the symbolic tokens the sequence grammar recognizes.
var virtualKeys = map[string]uintptr{
	"ENTER":     0x0D,
	"TAB":       0x09,
	"SPACE":     0x20,
	"BACKSPACE": 0x08,
	"DELETE":    0x2E,
	"HOME":      0x24,
	"END":       0x23,
	"UP":        0x26,
	"DOWN":      0x28,
	"LEFT":      0x25,
	"RIGHT":     0x27,
	"CTRL":      0x11,
	"ALT":       0x12,
	"SHIFT":     0x10,
	"ESC":       0x1B,
	"F1":        0x70,
	"F2":        0x71,
	"F3":        0x72,
	"F4":        0x73,
	"F5":        0x74,
	"F6":        0x75,
	"F7":        0x76,
	"F8":        0x77,
	"F9":        0x78,
	"F10":       0x79,
	"F11":       0x7A,
	"F12":       0x7B,
}

// SendKeys posts the sequence to the window's message queue. Literal text
// goes out as WM_CHAR per rune; named keys as WM_KEYDOWN/WM_KEYUP with their
// virtual-key code, so ENTER arrives as a key press rather than a character.
func (c *win32Conn) SendKeys(tokens []KeyToken) error {
	hwnd := uintptr(c.handle)
	for _, tok := range tokens {
		if tok.IsNamed() {
			vk, ok := virtualKeys[tok.Name]
			if !ok {
				// Unrecognized named keys were warned about at validation
				// time; skip rather than fail the whole sequence.
				continue
			}
			if err := postKey(hwnd, wmKeyDown, vk); err != nil {
				return fmt.Errorf("key down %s: %w", tok.Name, err)
			}
			time.Sleep(10 * time.Millisecond)
			if err := postKey(hwnd, wmKeyUp, vk); err != nil {
				return fmt.Errorf("key up %s: %w", tok.Name, err)
			}
			continue
		}
		for _, r := range tok.Text {
			if err := postKey(hwnd, wmChar, uintptr(r)); err != nil {
				return fmt.Errorf("char %q: %w", r, err)
			}
		}
	}
	return nil
}

func postKey(hwnd uintptr, msg, w uintptr) error {
	ret, _, err := procPostMessageW.Call(hwnd, msg, w, 0)
	if ret == 0 {
		return err
	}
	return nil
}
