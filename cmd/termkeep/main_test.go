package main

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbbuilder/termkeep/internal/history"
	"github.com/dbbuilder/termkeep/internal/monitor"
)

func TestHistorySinkRecordsActions(t *testing.T) {
	db, err := history.Open(filepath.Join(t.TempDir(), history.FileName))
	require.NoError(t, err)
	defer db.Close()

	sink := historySink(db, func() monitor.Status {
		return monitor.Status{Ticks: 42}
	})

	sink.Emit(monitor.Event{
		Kind:     monitor.EventActionTaken,
		Time:     time.Now(),
		Handle:   0x3001,
		Process:  "cmd.exe",
		Duration: 31 * time.Second,
	})

	actions, err := db.RecentActions(10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "action_taken", actions[0].Kind)
	assert.Equal(t, uint64(0x3001), actions[0].Handle)
	assert.Equal(t, 31*time.Second, actions[0].Duration)
}

func TestHistorySinkRecordsSnapshots(t *testing.T) {
	db, err := history.Open(filepath.Join(t.TempDir(), history.FileName))
	require.NoError(t, err)
	defer db.Close()

	sink := historySink(db, func() monitor.Status {
		return monitor.Status{Ticks: 42}
	})
	sink.Emit(monitor.Event{Kind: monitor.EventStats})

	snap, ok, err := db.LatestSnapshot()
	require.NoError(t, err)
	require.True(t, ok)

	var st monitor.Status
	require.NoError(t, json.Unmarshal(snap.Data, &st))
	assert.Equal(t, int64(42), st.Ticks)
}
