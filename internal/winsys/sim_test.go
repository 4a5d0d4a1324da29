package winsys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimSystemLifecycle(t *testing.T) {
	sys := NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "C:\\Windows\\system32\\cmd.exe", "C:\\> _")

	handles, err := sys.Enumerate()
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, h, handles[0])

	info, ok := sys.Info(h)
	require.True(t, ok)
	assert.Equal(t, "cmd.exe", info.ProcessName)
	assert.Equal(t, "ConsoleWindowClass", info.Class)
	assert.True(t, info.Visible)

	sys.RemoveWindow(h)
	_, ok = sys.Info(h)
	assert.False(t, ok)
}

func TestSimConnReadsAndSends(t *testing.T) {
	sys := NewSimSystem()
	h := sys.AddTerminal("WindowsTerminal.exe", "pwsh", "PS C:\\> ")

	conn, err := sys.Connect(context.Background(), h)
	require.NoError(t, err)
	defer conn.Close()

	require.True(t, conn.Exists(time.Second))

	text, ok := conn.NamedControlText([]string{"Terminal"})
	require.True(t, ok)
	assert.Equal(t, "PS C:\\> ", text)

	_, ok = conn.NamedControlText([]string{"NoSuchControl"})
	assert.False(t, ok)

	tokens := []KeyToken{{Text: "continue"}, {Name: "ENTER"}}
	require.NoError(t, conn.SendKeys(tokens))
	assert.Equal(t, [][]KeyToken{tokens}, sys.Window(h).Sent)
}

func TestSimConnSurvivesWindowRemoval(t *testing.T) {
	sys := NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "hello")

	conn, err := sys.Connect(context.Background(), h)
	require.NoError(t, err)

	sys.RemoveWindow(h)
	assert.False(t, conn.Exists(time.Second))
	_, ok := conn.Title()
	assert.False(t, ok)
	assert.Error(t, conn.SendKeys([]KeyToken{{Name: "ENTER"}}))
}
