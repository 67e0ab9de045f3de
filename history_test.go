package taximeter

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrependHistory(t *testing.T) {
	var items []HistoryItem
	for i := 0; i < MaxHistory+10; i++ {
		items = PrependHistory(items, HistoryItem{ID: strconv.Itoa(i)})
		assert.LessOrEqual(t, len(items), MaxHistory)
	}
	require.Len(t, items, MaxHistory)
	assert.Equal(t, "109", items[0].ID)
	assert.Equal(t, "10", items[MaxHistory-1].ID)
}

func TestPrependHistory_DoesNotAlias(t *testing.T) {
	items := []HistoryItem{{ID: "a"}, {ID: "b"}}
	out := PrependHistory(items, HistoryItem{ID: "c"})
	out[1].ID = "changed"
	assert.Equal(t, "a", items[0].ID)
}

func TestNewHistoryItem(t *testing.T) {
	s, _ := Session{}.Start(testPreset, t0)
	s = ingestAll(t, s, testPreset, drive(origin, t0, 151, 0.01))
	s, _ = s.Pause(t0.Add(150 * time.Second))
	finishedAt := t0.Add(200 * time.Second)
	s, err := s.Finish(finishedAt)
	require.Nil(t, err)

	a := NewHistoryItem(s, finishedAt)
	b := NewHistoryItem(s, finishedAt)
	assert.NotEqual(t, a.ID, b.ID)

	assert.Equal(t, finishedAt.UnixMilli(), a.CreatedAtMs)
	assert.Equal(t, finishedAt.UnixMilli(), a.FinishedAtMs)
	assert.Equal(t, t0.UnixMilli(), a.StartedAtMs)
	assert.Equal(t, "test", a.PresetID)
	assert.Equal(t, Yen(600), a.FareYen)
	assert.Equal(t, 150*time.Second, a.Elapsed())
	assert.Equal(t, int64(1), a.DistanceChargeSteps)
	require.Len(t, a.PauseLogs, 1)
	assert.Equal(t, int64(50000), a.PauseLogs[0].DurationMs)
	require.Len(t, a.Events, 3)

	// the record does not share pointers with the session
	require.NotNil(t, a.LastAcceptedPoint)
	a.LastAcceptedPoint.Latitude = 0
	assert.NotZero(t, s.LastAcceptedPoint.Latitude)
}
