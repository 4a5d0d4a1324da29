//go:build windows

package winsys

import (
	"context"
	"fmt"
	"path/filepath"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procEnumChildWindows         = user32.NewProc("EnumChildWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetClassNameW            = user32.NewProc("GetClassNameW")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procIsWindowEnabled          = user32.NewProc("IsWindowEnabled")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procSendMessageTimeoutW      = user32.NewProc("SendMessageTimeoutW")
	procPostMessageW             = user32.NewProc("PostMessageW")
)

const (
	wmNull          = 0x0000
	wmKeyDown       = 0x0100
	wmKeyUp         = 0x0101
	wmChar          = 0x0102
	wmGetText       = 0x000D
	wmGetTextLength = 0x000E

	smtoAbortIfHung = 0x0002

	maxTextRead = 64 * 1024 // cap WM_GETTEXT reads per control
)

// win32System is the live Windows backend.
type win32System struct{}

// NewWin32System returns a System backed by the Win32 API.
func NewWin32System() System { return &win32System{} }

func (s *win32System) Enumerate() ([]Handle, error) {
	var handles []Handle
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible != 0 {
			handles = append(handles, Handle(hwnd))
		}
		return 1 // continue enumeration
	})
	ret, _, err := procEnumWindows.Call(cb, 0)
	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	return handles, nil
}

func (s *win32System) Info(h Handle) (WindowInfo, bool) {
	hwnd := uintptr(h)
	if alive, _, _ := procIsWindow.Call(hwnd); alive == 0 {
		return WindowInfo{}, false
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return WindowInfo{}, false
	}
	exe, cmdline, err := processImage(pid)
	if err != nil {
		return WindowInfo{}, false
	}

	info := WindowInfo{
		Handle:      h,
		ProcessName: exe,
		Title:       windowText(hwnd),
		Class:       className(hwnd),
		PID:         pid,
		CommandLine: cmdline,
	}
	if v, _, _ := procIsWindowVisible.Call(hwnd); v != 0 {
		info.Visible = true
	}
	if v, _, _ := procIsWindowEnabled.Call(hwnd); v != 0 {
		info.Enabled = true
	}
	var r Rect
	procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	info.Rect = r
	return info, true
}

func (s *win32System) Connect(ctx context.Context, h Handle) (Conn, error) {
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout {
			timeout = rem
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	// A window that answers WM_NULL within the timeout is connectable.
	if !pingWindow(uintptr(h), timeout) {
		return nil, fmt.Errorf("window %#x not responding", uintptr(h))
	}
	return &win32Conn{handle: h}, nil
}

// pingWindow sends WM_NULL with a bounded wait; a hung or dead window fails.
func pingWindow(hwnd uintptr, timeout time.Duration) bool {
	if alive, _, _ := procIsWindow.Call(hwnd); alive == 0 {
		return false
	}
	ms := uintptr(timeout / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	ret, _, _ := procSendMessageTimeoutW.Call(hwnd, wmNull, 0, 0, smtoAbortIfHung, ms, 0)
	return ret != 0
}

// processImage resolves a PID to its executable base name and, best-effort,
// its command line. The command line read needs PROCESS_VM_READ and fails
// silently for protected processes.
func processImage(pid uint32) (exe, cmdline string, err error) {
	const access = windows.PROCESS_QUERY_LIMITED_INFORMATION
	proc, err := windows.OpenProcess(access|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		proc, err = windows.OpenProcess(access, false, pid)
		if err != nil {
			return "", "", fmt.Errorf("OpenProcess(%d): %w", pid, err)
		}
	}
	defer windows.CloseHandle(proc)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return "", "", fmt.Errorf("QueryFullProcessImageName(%d): %w", pid, err)
	}
	exe = filepath.Base(windows.UTF16ToString(buf[:size]))
	cmdline = readCommandLine(proc)
	return exe, cmdline, nil
}

// readCommandLine walks PEB.ProcessParameters.CommandLine in the target
// process. Any failure yields an empty string.
func readCommandLine(proc windows.Handle) string {
	var pbi windows.PROCESS_BASIC_INFORMATION
	var retLen uint32
	err := windows.NtQueryInformationProcess(proc, windows.ProcessBasicInformation,
		unsafe.Pointer(&pbi), uint32(unsafe.Sizeof(pbi)), &retLen)
	if err != nil || pbi.PebBaseAddress == nil {
		return ""
	}

	var peb windows.PEB
	if err := windows.ReadProcessMemory(proc, uintptr(unsafe.Pointer(pbi.PebBaseAddress)),
		(*byte)(unsafe.Pointer(&peb)), unsafe.Sizeof(peb), nil); err != nil {
		return ""
	}
	if peb.ProcessParameters == nil {
		return ""
	}

	var params windows.RTL_USER_PROCESS_PARAMETERS
	if err := windows.ReadProcessMemory(proc, uintptr(unsafe.Pointer(peb.ProcessParameters)),
		(*byte)(unsafe.Pointer(&params)), unsafe.Sizeof(params), nil); err != nil {
		return ""
	}
	n := params.CommandLine.Length
	if n == 0 || params.CommandLine.Buffer == nil {
		return ""
	}
	chars := make([]uint16, n/2)
	if err := windows.ReadProcessMemory(proc, uintptr(unsafe.Pointer(params.CommandLine.Buffer)),
		(*byte)(unsafe.Pointer(&chars[0])), uintptr(n), nil); err != nil {
		return ""
	}
	return windows.UTF16ToString(chars)
}

func windowText(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func className(hwnd uintptr) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}
