package taximeter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0     = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	origin = Coordinate{Latitude: 35.681236, Longitude: 139.767125}
)

// kmPerDegreeLat is the length of one degree of latitude on the 6371 km sphere
const kmPerDegreeLat = 111.19492664455873

// northOf returns a coordinate km kilometers north of c
func northOf(c Coordinate, km float64) Coordinate {
	return Coordinate{Latitude: c.Latitude + km/kmPerDegreeLat, Longitude: c.Longitude}
}

// drive returns n samples one second apart, each stepKm further north than the previous
func drive(from Coordinate, at time.Time, n int, stepKm float64) []Position {
	positions := make([]Position, 0, n)
	for i := 0; i < n; i++ {
		positions = append(positions, Position{
			Coordinate: northOf(from, float64(i)*stepKm),
			Timestamp:  at.Add(time.Duration(i) * time.Second),
			AccuracyM:  5,
		})
	}
	return positions
}

func ingestAll(t *testing.T, s Session, p Preset, positions []Position) Session {
	t.Helper()
	for _, pos := range positions {
		s, _, _ = s.Ingest(p, pos)
	}
	return s
}

func TestNext(t *testing.T) {
	tests := []struct {
		from  State
		act   action
		to    State
		legal bool
	}{
		{from: StateIdle, act: actionStart, to: StateRunning, legal: true},
		{from: "", act: actionStart, to: StateRunning, legal: true},
		{from: StateIdle, act: actionRestore, to: StatePaused, legal: true},
		{from: StateIdle, act: actionPause, legal: false},
		{from: StateIdle, act: actionResume, legal: false},
		{from: StateIdle, act: actionFinish, legal: false},
		{from: StateIdle, act: actionSample, legal: false},
		{from: StateRunning, act: actionPause, to: StatePaused, legal: true},
		{from: StateRunning, act: actionFinish, to: StateIdle, legal: true},
		{from: StateRunning, act: actionSample, to: StateRunning, legal: true},
		{from: StateRunning, act: actionStart, legal: false},
		{from: StateRunning, act: actionResume, legal: false},
		{from: StatePaused, act: actionResume, to: StateRunning, legal: true},
		{from: StatePaused, act: actionFinish, to: StateIdle, legal: true},
		{from: StatePaused, act: actionSample, legal: false},
		{from: StatePaused, act: actionPause, legal: false},
		{from: StatePaused, act: actionRestore, legal: false},
	}

	for _, test := range tests {
		t.Run(string(test.from)+"_"+string(test.act), func(t *testing.T) {
			to, err := next(test.from, test.act)
			if !test.legal {
				assert.True(t, errors.Is(err, ErrIllegalTransition))
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, test.to, to)
		})
	}
}

func TestSession_Elapsed(t *testing.T) {
	s, err := Session{}.Start(testPreset, t0)
	require.Nil(t, err)
	assert.Equal(t, 3*time.Second, s.Elapsed(t0.Add(3*time.Second)))

	s, err = s.Pause(t0.Add(10 * time.Second))
	require.Nil(t, err)
	assert.Equal(t, 10*time.Second, s.Elapsed(t0.Add(10*time.Second)))
	assert.Equal(t, 10*time.Second, s.Elapsed(t0.Add(time.Hour)))

	resumedAt := t0.Add(time.Hour)
	s, err = s.Resume(resumedAt)
	require.Nil(t, err)
	assert.Equal(t, 10*time.Second, s.Elapsed(resumedAt))
	assert.Equal(t, 15*time.Second, s.Elapsed(resumedAt.Add(5*time.Second)))

	require.Len(t, s.PauseLogs, 1)
	assert.Equal(t, PauseLog{
		PausedAt:  t0.Add(10 * time.Second),
		ResumedAt: resumedAt,
		Duration:  time.Hour - 10*time.Second,
	}, s.PauseLogs[0])

	s, err = s.Finish(resumedAt.Add(5 * time.Second))
	require.Nil(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, 15*time.Second, s.ElapsedAccumulated)

	var types []EventType
	for _, e := range s.Events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventStart, EventPause, EventResume, EventFinish}, types)
}

func TestSession_Elapsed_ClockGoesBackwards(t *testing.T) {
	s, _ := Session{}.Start(testPreset, t0)
	assert.Equal(t, time.Duration(0), s.Elapsed(t0.Add(-time.Minute)))

	s, _ = s.Pause(t0.Add(-time.Minute))
	assert.Equal(t, time.Duration(0), s.ElapsedAccumulated)
}

func TestSession_FinishFromPaused(t *testing.T) {
	s, _ := Session{}.Start(testPreset, t0)
	s, _ = s.Pause(t0.Add(time.Minute))
	s, err := s.Finish(t0.Add(3 * time.Minute))
	require.Nil(t, err)

	assert.Equal(t, time.Minute, s.ElapsedAccumulated)
	require.Len(t, s.PauseLogs, 1)
	assert.Equal(t, 2*time.Minute, s.PauseLogs[0].Duration)
	assert.True(t, s.PausedAt.IsZero())
}

func TestSession_Ingest(t *testing.T) {
	tests := []struct {
		name      string
		positions []Position
		check     func(s Session)
	}{
		{
			name:      "first sample only sets the baseline",
			positions: drive(origin, t0, 1, 0.01),
			check: func(s Session) {
				assert.Equal(t, Yen(500), s.Runtime.FareYen)
				assert.Zero(t, s.AcceptedSamples)
				assert.Zero(t, s.FilteredSamples)
				assert.Nil(t, s.FirstAcceptedPoint)
				assert.True(t, s.hasLast)
			},
		},
		{
			name:      "1.5 km at 36 km/h",
			positions: drive(origin, t0, 151, 0.01),
			check: func(s Session) {
				assert.Equal(t, Yen(600), s.Runtime.FareYen)
				assert.InDelta(t, 1.5, s.DistanceKm, 1e-6)
				assert.InDelta(t, 0.245, s.Runtime.DistanceRemainderKm, 1e-6)
				assert.Equal(t, int64(1), s.DistanceChargeSteps)
				assert.Equal(t, 150, s.AcceptedSamples)
				assert.Equal(t, ModeDistance, s.Mode)
				assert.InDelta(t, 36, s.SpeedKmh, 0.01)
				require.NotNil(t, s.FirstAcceptedPoint)
				assert.InDelta(t, northOf(origin, 0.01).Latitude, s.FirstAcceptedPoint.Latitude, 1e-12)
				require.NotNil(t, s.LastAcceptedPoint)
				assert.InDelta(t, northOf(origin, 1.5).Latitude, s.LastAcceptedPoint.Latitude, 1e-12)
			},
		},
		{
			name:      "standing still for 95 seconds",
			positions: drive(origin, t0, 96, 0),
			check: func(s Session) {
				assert.Equal(t, Yen(600), s.Runtime.FareYen)
				assert.InDelta(t, 5, s.Runtime.LowSpeedRemainderSeconds, 1e-9)
				assert.Equal(t, int64(1), s.TimeChargeSteps)
				assert.Equal(t, 1.0, s.Runtime.BaseDistanceRemainingKm)
				assert.Equal(t, ModeLowSpeed, s.Mode)
			},
		},
		{
			name: "a teleport is filtered and moves the baseline",
			positions: []Position{
				{Coordinate: origin, Timestamp: t0},
				{Coordinate: northOf(origin, 5), Timestamp: t0.Add(time.Second)},
				{Coordinate: northOf(origin, 5.01), Timestamp: t0.Add(2 * time.Second)},
			},
			check: func(s Session) {
				assert.Equal(t, 1, s.FilteredSamples)
				assert.Equal(t, 1, s.AcceptedSamples)
				assert.InDelta(t, 0.01, s.DistanceKm, 1e-6)
				assert.Equal(t, Accepted, s.LastReject)
			},
		},
		{
			name: "a rejected sample clears speed and mode",
			positions: []Position{
				{Coordinate: origin, Timestamp: t0},
				{Coordinate: northOf(origin, 0.01), Timestamp: t0.Add(time.Second)},
				{Coordinate: northOf(origin, 0.02), Timestamp: t0.Add(2 * time.Second), SpeedMps: 60},
			},
			check: func(s Session) {
				assert.Equal(t, 1, s.FilteredSamples)
				assert.Equal(t, SpeedSpike, s.LastReject)
				assert.Equal(t, ModeUnknown, s.Mode)
				assert.Zero(t, s.SpeedKmh)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, err := Session{}.Start(testPreset, t0)
			require.Nil(t, err)
			test.check(ingestAll(t, s, testPreset, test.positions))
		})
	}
}

func TestSession_Ingest_IgnoredUnlessRunning(t *testing.T) {
	idle := Session{}
	s, _, ok := idle.Ingest(testPreset, Position{Coordinate: origin, Timestamp: t0})
	assert.False(t, ok)
	assert.False(t, s.hasLast)

	running, _ := Session{}.Start(testPreset, t0)
	paused, _ := running.Pause(t0.Add(time.Second))
	s, _, ok = paused.Ingest(testPreset, Position{Coordinate: origin, Timestamp: t0})
	assert.False(t, ok)
	assert.False(t, s.hasLast)
}

func TestSession_Resume_Rebaselines(t *testing.T) {
	s, _ := Session{}.Start(testPreset, t0)
	s = ingestAll(t, s, testPreset, drive(origin, t0, 11, 0.01))
	require.Equal(t, 10, s.AcceptedSamples)

	s, _ = s.Pause(t0.Add(11 * time.Second))
	s, _ = s.Resume(t0.Add(time.Hour))

	// one hour later and two kilometers away: no delta is computed across the gap
	far := drive(northOf(origin, 2), t0.Add(time.Hour), 2, 0.01)
	s, _, ok := s.Ingest(testPreset, far[0])
	assert.False(t, ok)
	s, _, ok = s.Ingest(testPreset, far[1])
	assert.True(t, ok)
	assert.Equal(t, 11, s.AcceptedSamples)
	assert.Zero(t, s.FilteredSamples)
	assert.InDelta(t, 0.11, s.DistanceKm, 1e-6)
}

func TestSession_ValueSemantics(t *testing.T) {
	s, _ := Session{}.Start(testPreset, t0)
	paused, _ := s.Pause(t0.Add(time.Second))

	resumedA, _ := paused.Resume(t0.Add(2 * time.Second))
	resumedB, _ := paused.Resume(t0.Add(3 * time.Second))

	assert.Len(t, s.Events, 1)
	assert.Len(t, paused.Events, 2)
	assert.Empty(t, paused.PauseLogs)
	assert.Equal(t, t0.Add(2*time.Second), resumedA.Events[2].At)
	assert.Equal(t, t0.Add(3*time.Second), resumedB.Events[2].At)
	assert.Equal(t, time.Second, resumedA.PauseLogs[0].Duration)
	assert.Equal(t, 2*time.Second, resumedB.PauseLogs[0].Duration)
}

func TestSession_IllegalTransitionsKeepState(t *testing.T) {
	idle := Session{}
	_, err := idle.Resume(t0)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	_, err = idle.Pause(t0)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	_, err = idle.Finish(t0)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	running, _ := idle.Start(testPreset, t0)
	again, err := running.Start(testPreset, t0.Add(time.Minute))
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, running.StartedAt, again.StartedAt)
}
