package taximeter

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrIllegalTransition = errors.New("illegal session transition")

// State is the lifecycle state of a drive session
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// EventType is a recorded lifecycle event
type EventType string

const (
	EventStart  EventType = "start"
	EventPause  EventType = "pause"
	EventResume EventType = "resume"
	EventFinish EventType = "finish"
)

// action is anything that can be asked of a session
type action string

const (
	actionStart   action = "start"
	actionPause   action = "pause"
	actionResume  action = "resume"
	actionFinish  action = "finish"
	actionRestore action = "restore"
	actionSample  action = "sample"
)

// transitions lists every legal move; anything missing is rejected
var transitions = map[State]map[action]State{
	StateIdle: {
		actionStart:   StateRunning,
		actionRestore: StatePaused,
	},
	StateRunning: {
		actionSample: StateRunning,
		actionPause:  StatePaused,
		actionFinish: StateIdle,
	},
	StatePaused: {
		actionResume: StateRunning,
		actionFinish: StateIdle,
	},
}

func next(from State, a action) (State, error) {
	if from == "" {
		from = StateIdle
	}
	to, ok := transitions[from][a]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s while %s", ErrIllegalTransition, a, from)
	}
	return to, nil
}

// Event is one entry of the session event log
type Event struct {
	Type EventType
	At   time.Time
}

// PauseLog is one closed pause interval
type PauseLog struct {
	PausedAt  time.Time
	ResumedAt time.Time
	Duration  time.Duration
}

// Session is the state of one drive. It is a value: every transition returns a new Session
// and never mutates the receiver or the slices it shares with it.
// The zero Session is idle.
type Session struct {
	State               State
	PresetID            string
	StartedAt           time.Time
	ElapsedAccumulated  time.Duration
	RunningSegmentStart time.Time
	PausedAt            time.Time
	DistanceKm          float64
	Runtime             FareRuntime
	FirstAcceptedPoint  *Coordinate
	LastAcceptedPoint   *Coordinate
	AcceptedSamples     int
	FilteredSamples     int
	DistanceChargeSteps int64
	TimeChargeSteps     int64
	PauseLogs           []PauseLog
	Events              []Event

	// what the meter currently shows for the latest segment
	SpeedKmh   float64
	Mode       Mode
	LastReject Reason

	// baseline of the next delta, moved by every sample including rejected ones
	last    Position
	hasLast bool
}

// IsActive reports whether the session is running or paused
func (s Session) IsActive() bool {
	return s.State == StateRunning || s.State == StatePaused
}

// Elapsed is the billable wall time: the accumulated running segments plus the open one
func (s Session) Elapsed(now time.Time) time.Duration {
	if s.State != StateRunning {
		return s.ElapsedAccumulated
	}
	return s.ElapsedAccumulated + nonNegative(now.Sub(s.RunningSegmentStart))
}

// Start resets all counters from the preset and opens a running segment
func (s Session) Start(p Preset, now time.Time) (Session, error) {
	to, err := next(s.State, actionStart)
	if err != nil {
		return s, err
	}
	return Session{
		State:               to,
		PresetID:            p.ID,
		StartedAt:           now,
		RunningSegmentStart: now,
		Runtime:             NewRuntime(p),
		Mode:                ModeUnknown,
		Events:              []Event{{Type: EventStart, At: now}},
	}, nil
}

// Pause folds the open running segment into the accumulated elapsed time
func (s Session) Pause(now time.Time) (Session, error) {
	to, err := next(s.State, actionPause)
	if err != nil {
		return s, err
	}
	s.ElapsedAccumulated += nonNegative(now.Sub(s.RunningSegmentStart))
	s.RunningSegmentStart = time.Time{}
	s.PausedAt = now
	s.State = to
	s.Events = appendEvent(s.Events, EventPause, now)
	return s, nil
}

// Resume closes the pause interval and opens a new running segment.
// The location baseline is dropped so the first sample after the pause re-baselines.
func (s Session) Resume(now time.Time) (Session, error) {
	to, err := next(s.State, actionResume)
	if err != nil {
		return s, err
	}
	s = s.closePause(now)
	s.RunningSegmentStart = now
	s.State = to
	s.Events = appendEvent(s.Events, EventResume, now)
	s.last, s.hasLast = Position{}, false
	s.SpeedKmh, s.Mode = 0, ModeUnknown
	return s, nil
}

// Finish ends the session. The returned session keeps every accumulated value so a
// history record can be built from it; its state is idle.
func (s Session) Finish(now time.Time) (Session, error) {
	to, err := next(s.State, actionFinish)
	if err != nil {
		return s, err
	}
	switch s.State {
	case StateRunning:
		s.ElapsedAccumulated += nonNegative(now.Sub(s.RunningSegmentStart))
		s.RunningSegmentStart = time.Time{}
	case StatePaused:
		s = s.closePause(now)
	}
	s.State = to
	s.Events = appendEvent(s.Events, EventFinish, now)
	s.last, s.hasLast = Position{}, false
	return s, nil
}

// Ingest feeds one location sample into a running session.
// The first sample only sets the baseline and ok is false. Otherwise the segment from the
// baseline is classified and, when accepted, charged and added to the distance.
func (s Session) Ingest(p Preset, pos Position) (Session, Segment, bool) {
	if _, err := next(s.State, actionSample); err != nil {
		return s, Segment{}, false
	}
	if !s.hasLast {
		s.last, s.hasLast = pos, true
		return s, Segment{}, false
	}

	seg := NewSegment(s.last, pos)
	s.last = pos

	if !seg.Accepted() {
		s.FilteredSamples++
		s.SpeedKmh, s.Mode, s.LastReject = 0, ModeUnknown, seg.RejectReason
		return s, seg, true
	}

	var charge Charge
	s.Runtime, charge = s.Runtime.Apply(p, seg.DistanceKm, seg.Seconds, seg.SpeedKmh)
	s.DistanceChargeSteps += charge.DistanceSteps
	s.TimeChargeSteps += charge.TimeSteps
	s.DistanceKm += seg.DistanceKm
	s.AcceptedSamples++
	if s.FirstAcceptedPoint == nil {
		first := pos.Coordinate
		s.FirstAcceptedPoint = &first
	}
	last := pos.Coordinate
	s.LastAcceptedPoint = &last
	s.SpeedKmh, s.Mode, s.LastReject = seg.SpeedKmh, charge.Mode, Accepted
	return s, seg, true
}

func (s Session) closePause(now time.Time) Session {
	if s.PausedAt.IsZero() {
		return s
	}
	s.PauseLogs = append(slices.Clip(s.PauseLogs), PauseLog{
		PausedAt:  s.PausedAt,
		ResumedAt: now,
		Duration:  nonNegative(now.Sub(s.PausedAt)),
	})
	s.PausedAt = time.Time{}
	return s
}

func appendEvent(events []Event, t EventType, at time.Time) []Event {
	return append(slices.Clip(events), Event{Type: t, At: at})
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
