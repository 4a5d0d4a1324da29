package history

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndReadActions(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.RecordAction(Action{
		Kind:     "action_taken",
		Handle:   0x1010,
		Process:  "cmd.exe",
		Duration: 31 * time.Second,
	}))
	require.NoError(t, db.RecordAction(Action{
		Kind:    "send_failure",
		Handle:  0x1020,
		Process: "powershell.exe",
		Detail:  "window no longer exists",
	}))

	actions, err := db.RecentActions(10)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	// Newest first.
	assert.Equal(t, "send_failure", actions[0].Kind)
	assert.Equal(t, "action_taken", actions[1].Kind)
	assert.Equal(t, uint64(0x1010), actions[1].Handle)
	assert.Equal(t, 31*time.Second, actions[1].Duration)
	assert.False(t, actions[0].Time.IsZero())
}

func TestRecentActionsRespectsLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordAction(Action{Kind: "tick_overrun"}))
	}
	actions, err := db.RecentActions(3)
	require.NoError(t, err)
	assert.Len(t, actions, 3)
}

func TestSnapshots(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.LatestSnapshot()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.RecordSnapshot(map[string]int{"tracked": 2}))
	require.NoError(t, db.RecordSnapshot(map[string]int{"tracked": 3}))

	snap, ok, err := db.LatestSnapshot()
	require.NoError(t, err)
	require.True(t, ok)

	var data map[string]int
	require.NoError(t, json.Unmarshal(snap.Data, &data))
	assert.Equal(t, 3, data["tracked"])
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.RecordAction(Action{Kind: "new_window"}))
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	actions, err := db2.RecentActions(10)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	old := Action{Kind: "new_window", Time: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, db.RecordAction(old))
	require.NoError(t, db.RecordAction(Action{Kind: "new_window"}))

	require.NoError(t, db.Prune(24*time.Hour))
	actions, err := db.RecentActions(10)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}
