package dbstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIncAndCounter(t *testing.T) {
	r := New()
	r.Inc("table.insert.calls")
	r.Inc("table.insert.calls")
	r.IncN("table.insert.calls", 3)
	require.EqualValues(t, 5, r.Counter("table.insert.calls"))
}

func TestTimerAccumulates(t *testing.T) {
	r := New()
	stop := r.Timer("table.insert.time")
	time.Sleep(time.Millisecond)
	stop()
	snap := r.Snapshot()
	ts := snap.Timers["table.insert.time"]
	require.EqualValues(t, 1, ts.Calls)
	require.Greater(t, ts.Total, time.Duration(0))
}

func TestResetClearsEverything(t *testing.T) {
	r := New()
	r.Inc("a")
	stop := r.Timer("b")
	stop()
	r.Reset()
	require.Zero(t, r.Counter("a"))
	require.Empty(t, r.Snapshot().Timers)
}

func TestIndexStats(t *testing.T) {
	r := New()
	r.Inc("index.btree.search")
	r.Inc("index.btree.search")
	r.Inc("index.btree.add")
	snap := r.Snapshot()
	stats := snap.IndexStats("btree")
	require.EqualValues(t, 2, stats.Searches)
	require.EqualValues(t, 1, stats.Inserts)
}
