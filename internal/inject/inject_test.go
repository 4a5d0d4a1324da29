package inject

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

func newTestInjector(sys *winsys.SimSystem, cfg Config) (*Injector, *[]time.Duration) {
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 1000 // tests should not wait on the limiter
		cfg.Burst = 1000
	}
	inj := New(sys, cfg)
	var slept []time.Duration
	inj.sleep = func(d time.Duration) { slept = append(slept, d) }
	return inj, &slept
}

func TestSendDeliversSequence(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	inj, _ := newTestInjector(sys, Config{})

	require.True(t, inj.Send(context.Background(), h, "cmd.exe"))

	sent := sys.Window(h).Sent
	require.Len(t, sent, 1)
	assert.Equal(t, []winsys.KeyToken{{Text: "continue"}, {Name: "ENTER"}}, sent[0])

	stats := inj.Statistics()
	assert.Equal(t, int64(1), stats.Attempts)
	assert.Equal(t, int64(1), stats.Successes)
	assert.Zero(t, stats.Retries)
}

func TestSendUsesProcessOverride(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("powershell.exe", "pwsh", "content")
	inj, _ := newTestInjector(sys, Config{
		DefaultKeys: "continue{ENTER}",
		Overrides:   map[string]string{"powershell.exe": "y{ENTER}"},
	})

	require.True(t, inj.Send(context.Background(), h, "powershell.exe"))
	sent := sys.Window(h).Sent
	require.Len(t, sent, 1)
	assert.Equal(t, []winsys.KeyToken{{Text: "y"}, {Name: "ENTER"}}, sent[0])

	assert.Equal(t, "continue{ENTER}", inj.SequenceFor("cmd.exe"))
}

func TestSendRetriesAfterFailure(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	w := sys.Window(h)
	w.SendErr = errors.New("target rejected input")

	inj, _ := newTestInjector(sys, Config{RetryAttempts: 2, RetryDelay: time.Second})

	// Heal the window when the first inter-retry delay fires.
	var slept []time.Duration
	inj.sleep = func(d time.Duration) {
		slept = append(slept, d)
		if d == time.Second {
			w.SendErr = nil
		}
	}

	ok := inj.Send(context.Background(), h, "cmd.exe")
	require.True(t, ok)

	stats := inj.Statistics()
	assert.Equal(t, int64(1), stats.Successes)
	assert.Equal(t, int64(1), stats.Retries)
	assert.Contains(t, slept, time.Second)
}

func TestSendFailsAfterExhaustingRetries(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(h).SendErr = errors.New("input blocked")

	inj, slept := newTestInjector(sys, Config{RetryAttempts: 2, RetryDelay: time.Second})
	ok := inj.Send(context.Background(), h, "cmd.exe")
	assert.False(t, ok)

	stats := inj.Statistics()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(2), stats.Retries)

	// Two inter-attempt delays for three attempts.
	delays := 0
	for _, d := range *slept {
		if d == time.Second {
			delays++
		}
	}
	assert.Equal(t, 2, delays)
}

func TestSendFailsForDeadWindow(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(h).DenyExists = true

	inj, _ := newTestInjector(sys, Config{RetryAttempts: 1})
	assert.False(t, inj.Send(context.Background(), h, "cmd.exe"))
	assert.Empty(t, sys.Window(h).Sent)
}

func TestFocusFailureDoesNotAbort(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(h).FocusErr = errors.New("foreground lock")

	inj, _ := newTestInjector(sys, Config{})
	assert.True(t, inj.Send(context.Background(), h, "cmd.exe"))
	assert.Len(t, sys.Window(h).Sent, 1)
}

func TestFailedAttemptEvictsConnection(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")
	sys.Window(h).SendErr = errors.New("broken pipe")

	inj, _ := newTestInjector(sys, Config{RetryAttempts: 0})
	require.False(t, inj.Send(context.Background(), h, "cmd.exe"))
	assert.Equal(t, int64(1), inj.Statistics().Cache.Evictions)
}

func TestUpdateConfigAppliesToNextSend(t *testing.T) {
	sys := winsys.NewSimSystem()
	h := sys.AddTerminal("cmd.exe", "cmd", "content")

	inj, _ := newTestInjector(sys, Config{DefaultKeys: "old{ENTER}"})
	inj.UpdateConfig(Config{DefaultKeys: "new{ENTER}"})

	require.True(t, inj.Send(context.Background(), h, "cmd.exe"))
	sent := sys.Window(h).Sent
	require.Len(t, sent, 1)
	assert.Equal(t, "new", sent[0][0].Text)
}
