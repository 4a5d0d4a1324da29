//go:build windows

package winsys

import (
	"strings"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// win32Conn talks to one window through window messages. The legacy
// accessibility surface maps onto WM_GETTEXT and the title text, which is
// what console hosts expose without a full UIA client.
type win32Conn struct {
	handle Handle
}

func (c *win32Conn) Exists(timeout time.Duration) bool {
	return pingWindow(uintptr(c.handle), timeout)
}

func (c *win32Conn) NamedControlText(names []string) (string, bool) {
	var text string
	c.eachChild(func(child uintptr) bool {
		title := windowText(child)
		for _, name := range names {
			if title == name {
				if t := controlText(child); t != "" {
					text = t
					return false
				}
			}
		}
		return true
	})
	if text != "" {
		return text, true
	}
	// Terminal hosts often expose the content on the hosting window itself.
	if t := controlText(uintptr(c.handle)); t != "" {
		return t, true
	}
	return "", false
}

func (c *win32Conn) EditChildrenText() (string, bool) {
	var parts []string
	c.eachChild(func(child uintptr) bool {
		class := className(child)
		if strings.Contains(strings.ToLower(class), "edit") {
			if t := controlText(child); t != "" {
				parts = append(parts, t)
			}
		}
		return true
	})
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

func (c *win32Conn) LegacyProperty(key string) (string, bool) {
	hwnd := uintptr(c.handle)
	var v string
	switch key {
	case "Value", "Text", "LegacyIAccessible.Value":
		v = controlText(hwnd)
	case "Name":
		v = windowText(hwnd)
	}
	return v, v != ""
}

func (c *win32Conn) Title() (string, bool) {
	t := windowText(uintptr(c.handle))
	return t, t != ""
}

func (c *win32Conn) Focus() error {
	ret, _, err := procSetForegroundWindow.Call(uintptr(c.handle))
	if ret == 0 {
		return err
	}
	return nil
}

func (c *win32Conn) Close() {}

// eachChild walks the window's child tree; fn returns false to stop.
func (c *win32Conn) eachChild(fn func(hwnd uintptr) bool) {
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if fn(hwnd) {
			return 1
		}
		return 0
	})
	procEnumChildWindows.Call(uintptr(c.handle), cb, 0)
}

// controlText reads a control's text with WM_GETTEXT under a hang-proof
// timeout. Console windows answer this even when no accessibility tree is
// published.
func controlText(hwnd uintptr) string {
	var length uintptr
	ret, _, _ := procSendMessageTimeoutW.Call(hwnd, wmGetTextLength, 0, 0,
		smtoAbortIfHung, 1000, uintptr(unsafe.Pointer(&length)))
	if ret == 0 || length == 0 {
		return ""
	}
	if length > maxTextRead {
		length = maxTextRead
	}
	buf := make([]uint16, length+1)
	var copied uintptr
	ret, _, _ = procSendMessageTimeoutW.Call(hwnd, wmGetText, uintptr(len(buf)),
		uintptr(unsafe.Pointer(&buf[0])), smtoAbortIfHung, 1000,
		uintptr(unsafe.Pointer(&copied)))
	if ret == 0 || copied == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:copied])
}
