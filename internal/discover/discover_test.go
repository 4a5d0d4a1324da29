package discover

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

var targets = []string{"WindowsTerminal.exe", "cmd.exe", "powershell.exe"}

func TestDiscoverFiltersToTargetProcesses(t *testing.T) {
	sys := winsys.NewSimSystem()
	hTerm := sys.AddTerminal("WindowsTerminal.exe", "pwsh in ~", "content")
	sys.AddTerminal("notepad.exe", "notes.txt", "content")

	d := New(sys, Config{TargetProcesses: targets})
	found := d.Discover()
	require.Len(t, found, 1)
	assert.Equal(t, "WindowsTerminal.exe", found[hTerm].ProcessName)
}

func TestDiscoverRejectsSmallWindows(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(h).Info.Rect = winsys.Rect{Right: 99, Bottom: 400}

	d := New(sys, Config{TargetProcesses: targets})
	assert.Empty(t, d.Discover())

	sys.Window(h).Info.Rect = winsys.Rect{Right: 400, Bottom: 49}
	assert.Empty(t, d.Discover())

	sys.Window(h).Info.Rect = winsys.Rect{Right: 100, Bottom: 50}
	assert.Len(t, d.Discover(), 1)
}

func TestDiscoverValidatesWindowClass(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(h).Info.Class = "Shell_TrayWnd"

	d := New(sys, Config{TargetProcesses: targets})
	assert.Empty(t, d.Discover())

	sys.Window(h).Info.Class = "ConsoleWindowClass"
	assert.Len(t, d.Discover(), 1)
}

func TestDiscoverAppliesExclusions(t *testing.T) {
	sys := winsys.NewSimSystem()
	hKeep := sys.AddTerminal("cmd.exe", "build output", "content")
	hTitle := sys.AddTerminal("cmd.exe", "Administrator: cmd", "content")
	hCmd := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(hCmd).Info.CommandLine = `cmd.exe /c ssh-agent`

	d := New(sys, Config{
		TargetProcesses:     targets,
		ExcludeTitles:       []string{"ADMINISTRATOR"},
		ExcludeCommandLines: []string{"ssh-agent"},
	})
	found := d.Discover()
	require.Len(t, found, 1)
	_, ok := found[hKeep]
	assert.True(t, ok)
	_, ok = found[hTitle]
	assert.False(t, ok)
}

func TestDiscoverStopsAtWindowCap(t *testing.T) {
	sys := winsys.NewSimSystem()
	for i := 0; i < 5; i++ {
		sys.AddTerminal("cmd.exe", fmt.Sprintf("cmd %d", i), "content")
	}

	d := New(sys, Config{TargetProcesses: targets, MaxWindows: 3})
	assert.Len(t, d.Discover(), 3)
	assert.Equal(t, int64(1), d.Statistics().Truncations)
}

func TestDiscoverSurvivesEnumerationFailure(t *testing.T) {
	sys := winsys.NewSimSystem()
	sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.EnumerateErr = errors.New("enumeration denied")

	d := New(sys, Config{TargetProcesses: targets})
	assert.Empty(t, d.Discover())
	assert.Equal(t, int64(1), d.Statistics().EnumFailures)

	sys.EnumerateErr = nil
	assert.Len(t, d.Discover(), 1)
}

func TestDiscoverSkipsVanishedWindows(t *testing.T) {
	sys := winsys.NewSimSystem()
	h1 := sys.AddTerminal("cmd.exe", "one", "content")
	sys.AddTerminal("cmd.exe", "two", "content")

	// Handle list is captured, then one window dies before its Info lookup.
	// The sim reproduces this by removing after the handles are known.
	handles, err := sys.Enumerate()
	require.NoError(t, err)
	require.Len(t, handles, 2)
	sys.RemoveWindow(h1)

	d := New(sys, Config{TargetProcesses: targets})
	assert.Len(t, d.Discover(), 1)
}

func TestUpdateConfigChangesTargets(t *testing.T) {
	sys := winsys.NewSimSystem()
	sys.AddTerminal("cmd.exe", "cmd", "content")

	d := New(sys, Config{TargetProcesses: []string{"powershell.exe"}})
	assert.Empty(t, d.Discover())

	d.UpdateConfig(Config{TargetProcesses: []string{"CMD.EXE"}})
	assert.Len(t, d.Discover(), 1)
}
