package track

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	assert.Equal(t, "", Fingerprint(""))
	assert.NotEqual(t, "", Fingerprint("x"))
	assert.Len(t, Fingerprint("x"), 64)
}

func newTestTracker(cfg Config) (*Tracker, *time.Time) {
	tr := New(cfg)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestFirstObservation(t *testing.T) {
	tr, _ := newTestTracker(Config{})
	obs, err := tr.Observe(1, "content A", "cmd.exe")
	require.NoError(t, err)
	assert.True(t, obs.IsNew)
	assert.True(t, obs.Changed)
	assert.False(t, obs.Inactive)
	assert.Zero(t, obs.InactiveFor)
}

func TestInactivityTransition(t *testing.T) {
	tr, now := newTestTracker(Config{DefaultThreshold: 30 * time.Second})
	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)

	*now = now.Add(10 * time.Second)
	obs, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.False(t, obs.Inactive)
	assert.Equal(t, 10*time.Second, obs.InactiveFor)

	*now = now.Add(20 * time.Second) // exactly at threshold
	obs, err = tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.True(t, obs.Inactive)
	assert.Equal(t, 30*time.Second, obs.InactiveFor)

	// Stays inactive until a change or reset.
	*now = now.Add(5 * time.Second)
	obs, err = tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.True(t, obs.Inactive)

	// A content change flips it back to active immediately.
	obs, err = tr.Observe(1, "B", "cmd.exe")
	require.NoError(t, err)
	assert.True(t, obs.Changed)
	assert.False(t, obs.Inactive)

	// The transition is counted once, not per tick.
	assert.Equal(t, int64(1), tr.Statistics().InactivityFlags)
}

func TestResetTimerRearms(t *testing.T) {
	tr, now := newTestTracker(Config{DefaultThreshold: 30 * time.Second})
	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)

	*now = now.Add(45 * time.Second)
	obs, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	require.True(t, obs.Inactive)

	require.True(t, tr.ResetTimer(1))
	obs, err = tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.False(t, obs.Inactive)
	assert.Zero(t, obs.InactiveFor)

	state, ok := tr.WindowDetails(1)
	require.True(t, ok)
	require.NotNil(t, state.LastAction)
	assert.Equal(t, *now, *state.LastAction)

	assert.False(t, tr.ResetTimer(999), "unknown handle")
}

func TestPerProcessThresholdOverride(t *testing.T) {
	tr, now := newTestTracker(Config{
		DefaultThreshold: 30 * time.Second,
		Thresholds:       map[string]time.Duration{"powershell.exe": 10 * time.Second},
	})
	_, err := tr.Observe(1, "A", "powershell.exe")
	require.NoError(t, err)
	_, err = tr.Observe(2, "A", "cmd.exe")
	require.NoError(t, err)

	*now = now.Add(15 * time.Second)
	obs, _ := tr.Observe(1, "A", "powershell.exe")
	assert.True(t, obs.Inactive)
	obs, _ = tr.Observe(2, "A", "cmd.exe")
	assert.False(t, obs.Inactive)
}

func TestReconcileRemovesClosedWindows(t *testing.T) {
	tr, now := newTestTracker(Config{})
	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	_, err = tr.Observe(2, "B", "cmd.exe")
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	gone := tr.Reconcile(map[winsys.Handle]struct{}{2: {}})
	assert.Equal(t, []winsys.Handle{1}, gone)

	stats := tr.Statistics()
	assert.Equal(t, 1, stats.Tracked)
	assert.Equal(t, int64(1), stats.Removed)
	assert.Equal(t, time.Minute, stats.AvgLifetime)

	// Re-discovery of the same handle is a brand-new window.
	obs, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.True(t, obs.IsNew)
}

func TestCapacityRejection(t *testing.T) {
	tr, _ := newTestTracker(Config{MaxWindows: 2})
	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	_, err = tr.Observe(2, "B", "cmd.exe")
	require.NoError(t, err)

	_, err = tr.Observe(3, "C", "cmd.exe")
	require.ErrorIs(t, err, ErrCapacity)

	// Existing state untouched; known handles still observable.
	obs, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.False(t, obs.IsNew)
	assert.Equal(t, int64(1), tr.Statistics().Rejected)

	// Reconciling a window away frees capacity.
	tr.Reconcile(map[winsys.Handle]struct{}{1: {}})
	obs, err = tr.Observe(3, "C", "cmd.exe")
	require.NoError(t, err)
	assert.True(t, obs.IsNew)
}

func TestLifetimeRunningAverage(t *testing.T) {
	tr, now := newTestTracker(Config{})
	start := *now

	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	*now = start.Add(10 * time.Second)
	_, err = tr.Observe(2, "B", "cmd.exe")
	require.NoError(t, err)

	*now = start.Add(20 * time.Second)
	tr.Reconcile(map[winsys.Handle]struct{}{2: {}}) // window 1 lived 20s
	*now = start.Add(40 * time.Second)
	tr.Reconcile(map[winsys.Handle]struct{}{}) // window 2 lived 30s

	assert.Equal(t, 25*time.Second, tr.Statistics().AvgLifetime)
}

func TestSetThresholdAndMetadata(t *testing.T) {
	tr, now := newTestTracker(Config{DefaultThreshold: 30 * time.Second})
	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)

	require.True(t, tr.SetThreshold(1, 5*time.Second))
	assert.False(t, tr.SetThreshold(1, 0))
	assert.False(t, tr.SetThreshold(99, time.Second))

	*now = now.Add(6 * time.Second)
	obs, _ := tr.Observe(1, "A", "cmd.exe")
	assert.True(t, obs.Inactive)

	require.True(t, tr.UpdateMetadata(1, map[string]any{"title": "build"}))
	state, ok := tr.WindowDetails(1)
	require.True(t, ok)
	assert.Equal(t, "build", state.Metadata["title"])
}

func TestInactiveWindowsSnapshot(t *testing.T) {
	tr, now := newTestTracker(Config{DefaultThreshold: 30 * time.Second})
	_, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	_, err = tr.Observe(2, "B", "cmd.exe")
	require.NoError(t, err)

	*now = now.Add(31 * time.Second)
	_, err = tr.Observe(2, "B2", "cmd.exe") // window 2 just changed
	require.NoError(t, err)

	inactive := tr.InactiveWindows()
	require.Len(t, inactive, 1)
	assert.Equal(t, winsys.Handle(1), inactive[0].Handle)
}

func TestThresholdScenario(t *testing.T) {
	// A cmd.exe window with the 30s default threshold showing the same
	// content at t=0/10/20 stays active, flips inactive at t=31, and after
	// a corrective action reports ~0 again.
	tr, now := newTestTracker(Config{DefaultThreshold: 30 * time.Second})
	start := *now

	obs, err := tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	require.True(t, obs.IsNew)

	for _, secs := range []int{10, 20} {
		*now = start.Add(time.Duration(secs) * time.Second)
		obs, err = tr.Observe(1, "A", "cmd.exe")
		require.NoError(t, err)
		assert.False(t, obs.Inactive, fmt.Sprintf("t=%ds", secs))
	}

	*now = start.Add(31 * time.Second)
	obs, err = tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	require.True(t, obs.Inactive)
	assert.Equal(t, 31*time.Second, obs.InactiveFor)

	// Injection succeeded: the loop resets the timer.
	require.True(t, tr.ResetTimer(1))
	*now = start.Add(32 * time.Second)
	obs, err = tr.Observe(1, "A", "cmd.exe")
	require.NoError(t, err)
	assert.False(t, obs.Inactive)
	assert.Equal(t, time.Second, obs.InactiveFor)
}
