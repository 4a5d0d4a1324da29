// Package platform detects where termkeep is running. The live window
// backend needs real Windows; a binary started inside WSL sees a Linux
// kernel and cannot reach the Win32 window surface, so the CLI uses this to
// explain that instead of failing obscurely.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform is the detected runtime environment.
type Platform string

const (
	Windows Platform = "windows"
	WSL1    Platform = "wsl1"
	WSL2    Platform = "wsl2"
	Linux   Platform = "linux"
	MacOS   Platform = "macos"
	Unknown Platform = "unknown"
)

var (
	detected      Platform
	detectionDone bool
)

// Detect returns the current platform, caching the result.
func Detect() Platform {
	if detectionDone {
		return detected
	}
	detected = detect()
	detectionDone = true
	return detected
}

func detect() Platform {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	case "linux":
		return detectLinuxOrWSL()
	default:
		return Unknown
	}
}

// detectLinuxOrWSL tells native Linux apart from WSL.
func detectLinuxOrWSL() Platform {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return wslVersion()
	}
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return Linux
	}
	if strings.Contains(strings.ToLower(string(procVersion)), "microsoft") {
		return wslVersion()
	}
	return Linux
}

// wslVersion tells WSL1 from WSL2. WSL2 kernels carry a
// "microsoft-standard" signature and expose /dev/vsock.
func wslVersion() Platform {
	if procVersion, err := os.ReadFile("/proc/version"); err == nil {
		v := string(procVersion)
		if strings.Contains(v, "microsoft-standard") {
			return WSL2
		}
		if strings.Contains(v, "Microsoft") {
			return WSL1
		}
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return WSL2
	}
	if _, err := os.Stat("/dev/vsock"); err == nil {
		return WSL2
	}
	return WSL1
}

// IsWSL reports whether we are inside any WSL environment.
func IsWSL() bool {
	p := Detect()
	return p == WSL1 || p == WSL2
}

// CanAutomateWindows reports whether the live window backend can work here.
func CanAutomateWindows() bool {
	return Detect() == Windows
}

// String returns a human-readable platform name.
func (p Platform) String() string {
	switch p {
	case Windows:
		return "Windows"
	case WSL1:
		return "WSL1"
	case WSL2:
		return "WSL2"
	case Linux:
		return "Linux"
	case MacOS:
		return "macOS"
	default:
		return "Unknown"
	}
}

// CheckFsnotifySupport returns a warning when path sits on a filesystem that
// does not deliver change events reliably (9p, NFS, CIFS, SSHFS), which
// breaks config auto-reload. Empty string means fsnotify should work.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	// Longest mountpoint prefix wins.
	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if strings.HasPrefix(absPath, fields[1]) && len(fields[1]) > len(matchedMount) {
			matchedMount = fields[1]
			matchedFsType = fields[2]
		}
	}

	switch {
	case matchedFsType == "9p":
		return "config on a 9p mount (WSL2 Windows filesystem): auto-reload disabled, restart to apply changes"
	case matchedFsType == "nfs" || matchedFsType == "nfs4":
		return "config on an NFS mount: auto-reload may be unreliable"
	case matchedFsType == "cifs" || matchedFsType == "smbfs":
		return "config on a CIFS/SMB mount: auto-reload may be unreliable"
	case strings.HasPrefix(matchedFsType, "fuse.sshfs"):
		return "config on an SSHFS mount: auto-reload disabled, restart to apply changes"
	}
	return ""
}
