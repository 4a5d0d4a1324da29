package platform

import (
	"runtime"
	"testing"
)

func resetDetection() {
	detectionDone = false
	detected = ""
}

func TestDetect(t *testing.T) {
	resetDetection()

	p := Detect()
	if p == "" {
		t.Error("Detect() returned empty platform")
	}

	switch runtime.GOOS {
	case "windows":
		if p != Windows {
			t.Errorf("on windows, expected Windows, got %s", p)
		}
	case "darwin":
		if p != MacOS {
			t.Errorf("on darwin, expected macOS, got %s", p)
		}
	case "linux":
		if p != Linux && p != WSL1 && p != WSL2 {
			t.Errorf("on linux, expected Linux/WSL, got %s", p)
		}
	}

	if p2 := Detect(); p != p2 {
		t.Errorf("Detect() not cached: got %s then %s", p, p2)
	}
}

func TestPlatformString(t *testing.T) {
	tests := []struct {
		platform Platform
		expected string
	}{
		{Windows, "Windows"},
		{WSL1, "WSL1"},
		{WSL2, "WSL2"},
		{Linux, "Linux"},
		{MacOS, "macOS"},
		{Unknown, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.platform.String(); got != tt.expected {
			t.Errorf("Platform(%s).String() = %s, want %s", tt.platform, got, tt.expected)
		}
	}
}

func TestIsWSLAndCanAutomate(t *testing.T) {
	tests := []struct {
		platform    Platform
		isWSL       bool
		canAutomate bool
	}{
		{Windows, false, true},
		{WSL1, true, false},
		{WSL2, true, false},
		{Linux, false, false},
		{MacOS, false, false},
	}
	for _, tt := range tests {
		detected = tt.platform
		detectionDone = true

		if got := IsWSL(); got != tt.isWSL {
			t.Errorf("IsWSL() for %s = %v, want %v", tt.platform, got, tt.isWSL)
		}
		if got := CanAutomateWindows(); got != tt.canAutomate {
			t.Errorf("CanAutomateWindows() for %s = %v, want %v", tt.platform, got, tt.canAutomate)
		}
	}
	resetDetection()
}

func TestCheckFsnotifySupportOnTempDir(t *testing.T) {
	// A local tmpfs/ext4 temp dir should not warn.
	if warning := CheckFsnotifySupport(t.TempDir()); warning != "" {
		t.Logf("unexpected fsnotify warning (network filesystem?): %s", warning)
	}
}
