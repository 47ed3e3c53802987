package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse/internal/pricing"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := NewTracker(t.TempDir(), pricing.DefaultTable())
	require.NoError(t, err)
	return tracker
}

func TestRecordAggregates(t *testing.T) {
	tracker := newTestTracker(t)

	tracker.Record("gemini-2.5-flash", "grow", 1000, 100, 0)
	tracker.Record("gemini-2.5-flash", "grow", 500, 50, 10)
	tracker.Record("gemini-2.5-pro", "hypothesize", 200, 20, 0)

	stats := tracker.Stats()

	assert.EqualValues(t, 1700, stats.Total.Input)
	assert.EqualValues(t, 170, stats.Total.Output)
	assert.EqualValues(t, 10, stats.Total.Cached)
	assert.EqualValues(t, 1870, stats.Total.Total)

	flash := stats.ByModel["gemini-2.5-flash"]
	assert.EqualValues(t, 1500, flash.Input)
	assert.EqualValues(t, 150, flash.Output)

	grow := stats.ByOperation["grow"]
	assert.EqualValues(t, 1500, grow.Input)
}

func TestRecordPricesCalls(t *testing.T) {
	tracker := newTestTracker(t)

	tracker.Record("gemini-2.5-flash", "grow", 1000, 100, 0)

	assert.InDelta(t, 0.000105, tracker.Stats().Total.Cost, 1e-12)
}

func TestLedgerPersistence(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewTracker(dir, nil)
	require.NoError(t, err)
	tracker.Record("gemini-2.5-flash", "grow", 1000, 100, 0)
	require.NoError(t, tracker.Save())

	reloaded, err := NewTracker(dir, nil)
	require.NoError(t, err)

	stats := reloaded.Stats()
	assert.EqualValues(t, 1000, stats.Total.Input)
	assert.EqualValues(t, 100, stats.Total.Output)
}

func TestAutoSaveReschedulesAfterFlush(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewTracker(dir, nil)
	require.NoError(t, err)
	tracker.saveDelay = 10 * time.Millisecond

	tracker.Record("gemini-2.5-flash", "grow", 1000, 100, 0)

	ledgerHasInput := func(want int64) func() bool {
		return func() bool {
			fresh, err := NewTracker(dir, nil)
			if err != nil {
				return false
			}
			return fresh.Stats().Total.Input == want
		}
	}
	require.Eventually(t, ledgerHasInput(1000), time.Second, 5*time.Millisecond,
		"first record not auto-saved")

	// A record landing after the flush must schedule its own save.
	tracker.Record("gemini-2.5-flash", "grow", 500, 50, 0)
	require.Eventually(t, ledgerHasInput(1500), time.Second, 5*time.Millisecond,
		"record after a flush left unpersisted")
}

func TestStatsReturnsCopies(t *testing.T) {
	tracker := newTestTracker(t)
	tracker.Record("gemini-2.5-flash", "grow", 100, 10, 0)

	stats := tracker.Stats()
	stats.ByModel["gemini-2.5-flash"] = TokenCounts{Input: 999999}

	assert.NotEqualValues(t, 999999, tracker.Stats().ByModel["gemini-2.5-flash"].Input,
		"mutating a returned stats map must not affect the tracker")
}
