package taximeter

import (
	"errors"
	"fmt"
	"time"
)

// SnapshotVersion is bumped whenever the persisted shape changes incompatibly
const SnapshotVersion = 1

// EventRecord is the persisted form of an Event
type EventRecord struct {
	Type EventType `json:"type"`
	AtMs int64     `json:"at_ms"`
}

// PauseLogRecord is the persisted form of a PauseLog
type PauseLogRecord struct {
	PausedAtMs  int64 `json:"paused_at_ms"`
	ResumedAtMs int64 `json:"resumed_at_ms"`
	DurationMs  int64 `json:"duration_ms"`
}

// Snapshot is the serializable checkpoint of a running or paused session.
// ElapsedAccumulatedMs already includes the running segment that was open at SavedAtMs.
type Snapshot struct {
	Version              int              `json:"version"`
	PresetID             string           `json:"preset_id"`
	State                State            `json:"state"`
	SavedAtMs            int64            `json:"saved_at_ms"`
	StartedAtMs          int64            `json:"started_at_ms"`
	ElapsedAccumulatedMs int64            `json:"elapsed_accumulated_ms"`
	PausedAtMs           int64            `json:"paused_at_ms,omitempty"`
	DistanceKm           float64          `json:"distance_km"`
	FareRuntime          FareRuntime      `json:"fare_runtime"`
	FirstAcceptedPoint   *Coordinate      `json:"first_accepted_point,omitempty"`
	LastAcceptedPoint    *Coordinate      `json:"last_accepted_point,omitempty"`
	AcceptedSampleCount  int              `json:"accepted_sample_count"`
	FilteredSampleCount  int              `json:"filtered_sample_count"`
	DistanceChargeSteps  int64            `json:"distance_charge_steps"`
	TimeChargeSteps      int64            `json:"time_charge_steps"`
	PauseLogs            []PauseLogRecord `json:"pause_logs"`
	Events               []EventRecord    `json:"events"`
}

// Snapshot projects an active session; now closes the open running segment in the projection only
func (s Session) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Version:              SnapshotVersion,
		PresetID:             s.PresetID,
		State:                s.State,
		SavedAtMs:            toMs(now),
		StartedAtMs:          toMs(s.StartedAt),
		ElapsedAccumulatedMs: s.Elapsed(now).Milliseconds(),
		PausedAtMs:           toMs(s.PausedAt),
		DistanceKm:           s.DistanceKm,
		FareRuntime:          s.Runtime,
		FirstAcceptedPoint:   copyCoordinate(s.FirstAcceptedPoint),
		LastAcceptedPoint:    copyCoordinate(s.LastAcceptedPoint),
		AcceptedSampleCount:  s.AcceptedSamples,
		FilteredSampleCount:  s.FilteredSamples,
		DistanceChargeSteps:  s.DistanceChargeSteps,
		TimeChargeSteps:      s.TimeChargeSteps,
		PauseLogs:            pauseLogRecords(s.PauseLogs),
		Events:               eventRecords(s.Events),
	}
}

// ErrInvalidSnapshot wraps every reason a snapshot is refused
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Validate rejects snapshots that cannot describe an in-progress session under any preset
func (snap Snapshot) Validate() error {
	rt := snap.FareRuntime
	switch {
	case snap.Version != SnapshotVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, snap.Version)
	case snap.PresetID == "":
		return fmt.Errorf("%w: no preset", ErrInvalidSnapshot)
	case snap.State != StateRunning && snap.State != StatePaused:
		return fmt.Errorf("%w: state %q is not active", ErrInvalidSnapshot, snap.State)
	case snap.StartedAtMs <= 0 || snap.ElapsedAccumulatedMs < 0:
		return fmt.Errorf("%w: invalid timestamps", ErrInvalidSnapshot)
	case !isFinite(snap.DistanceKm) || snap.DistanceKm < 0:
		return fmt.Errorf("%w: invalid distance", ErrInvalidSnapshot)
	case !isFinite(rt.BaseDistanceRemainingKm) || rt.BaseDistanceRemainingKm < 0,
		!isFinite(rt.DistanceRemainderKm) || rt.DistanceRemainderKm < 0,
		!isFinite(rt.LowSpeedRemainderSeconds) || rt.LowSpeedRemainderSeconds < 0,
		rt.FareYen < 0:
		return fmt.Errorf("%w: invalid fare runtime", ErrInvalidSnapshot)
	case snap.AcceptedSampleCount < 0 || snap.FilteredSampleCount < 0 ||
		snap.DistanceChargeSteps < 0 || snap.TimeChargeSteps < 0:
		return fmt.Errorf("%w: negative counters", ErrInvalidSnapshot)
	}
	return nil
}

// ValidateFor additionally checks the fare runtime against the preset the snapshot names
func (snap Snapshot) ValidateFor(p Preset) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	rt := snap.FareRuntime
	switch {
	case snap.PresetID != p.ID:
		return fmt.Errorf("%w: preset %q does not match %q", ErrInvalidSnapshot, snap.PresetID, p.ID)
	case rt.FareYen < p.BaseFareYen:
		return fmt.Errorf("%w: fare %d is below the base fare %d", ErrInvalidSnapshot, rt.FareYen, p.BaseFareYen)
	case rt.BaseDistanceRemainingKm > p.BaseDistanceKm:
		return fmt.Errorf("%w: base distance remaining exceeds %g km", ErrInvalidSnapshot, p.BaseDistanceKm)
	case rt.DistanceRemainderKm >= p.DistanceStepKm:
		return fmt.Errorf("%w: distance remainder is not below one step", ErrInvalidSnapshot)
	case rt.LowSpeedRemainderSeconds >= p.LowSpeedStepSeconds:
		return fmt.Errorf("%w: low-speed remainder is not below one step", ErrInvalidSnapshot)
	}
	return nil
}

// Restore rebuilds an idle session from a snapshot taken under p. The result is always paused:
// the location watch has to be re-established through an explicit resume. A snapshot taken
// while running is treated as paused from the moment it was saved.
func (s Session) Restore(p Preset, snap Snapshot) (Session, error) {
	to, err := next(s.State, actionRestore)
	if err != nil {
		return s, err
	}
	if err := snap.ValidateFor(p); err != nil {
		return s, err
	}

	pausedAt := snap.PausedAtMs
	if snap.State == StateRunning || pausedAt == 0 {
		pausedAt = snap.SavedAtMs
	}

	return Session{
		State:               to,
		PresetID:            snap.PresetID,
		StartedAt:           fromMs(snap.StartedAtMs),
		ElapsedAccumulated:  time.Duration(snap.ElapsedAccumulatedMs) * time.Millisecond,
		PausedAt:            fromMs(pausedAt),
		DistanceKm:          snap.DistanceKm,
		Runtime:             snap.FareRuntime,
		FirstAcceptedPoint:  copyCoordinate(snap.FirstAcceptedPoint),
		LastAcceptedPoint:   copyCoordinate(snap.LastAcceptedPoint),
		AcceptedSamples:     snap.AcceptedSampleCount,
		FilteredSamples:     snap.FilteredSampleCount,
		DistanceChargeSteps: snap.DistanceChargeSteps,
		TimeChargeSteps:     snap.TimeChargeSteps,
		PauseLogs:           pauseLogs(snap.PauseLogs),
		Events:              events(snap.Events),
		Mode:                ModeUnknown,
	}, nil
}

func toMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func copyCoordinate(c *Coordinate) *Coordinate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func pauseLogRecords(logs []PauseLog) []PauseLogRecord {
	records := make([]PauseLogRecord, 0, len(logs))
	for _, l := range logs {
		records = append(records, PauseLogRecord{
			PausedAtMs:  toMs(l.PausedAt),
			ResumedAtMs: toMs(l.ResumedAt),
			DurationMs:  l.Duration.Milliseconds(),
		})
	}
	return records
}

func pauseLogs(records []PauseLogRecord) []PauseLog {
	logs := make([]PauseLog, 0, len(records))
	for _, r := range records {
		logs = append(logs, PauseLog{
			PausedAt:  fromMs(r.PausedAtMs),
			ResumedAt: fromMs(r.ResumedAtMs),
			Duration:  time.Duration(r.DurationMs) * time.Millisecond,
		})
	}
	return logs
}

func eventRecords(evs []Event) []EventRecord {
	records := make([]EventRecord, 0, len(evs))
	for _, e := range evs {
		records = append(records, EventRecord{Type: e.Type, AtMs: toMs(e.At)})
	}
	return records
}

func events(records []EventRecord) []Event {
	evs := make([]Event, 0, len(records))
	for _, r := range records {
		evs = append(evs, Event{Type: r.Type, At: fromMs(r.AtMs)})
	}
	return evs
}
