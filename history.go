package taximeter

import (
	"time"

	"github.com/google/uuid"
)

// MaxHistory bounds the persisted drive history
const MaxHistory = 100

// HistoryItem is the immutable record of a finished drive
type HistoryItem struct {
	ID                  string           `json:"id"`
	CreatedAtMs         int64            `json:"created_at_ms"`
	StartedAtMs         int64            `json:"started_at_ms"`
	FinishedAtMs        int64            `json:"finished_at_ms"`
	PresetID            string           `json:"preset_id"`
	ElapsedMs           int64            `json:"elapsed_ms"`
	DistanceKm          float64          `json:"distance_km"`
	FareYen             Yen              `json:"fare_yen"`
	FareRuntime         FareRuntime      `json:"fare_runtime"`
	FirstAcceptedPoint  *Coordinate      `json:"first_accepted_point,omitempty"`
	LastAcceptedPoint   *Coordinate      `json:"last_accepted_point,omitempty"`
	AcceptedSampleCount int              `json:"accepted_sample_count"`
	FilteredSampleCount int              `json:"filtered_sample_count"`
	DistanceChargeSteps int64            `json:"distance_charge_steps"`
	TimeChargeSteps     int64            `json:"time_charge_steps"`
	PauseLogs           []PauseLogRecord `json:"pause_logs"`
	Events              []EventRecord    `json:"events"`
}

// NewHistoryItem builds the record of a finished session
func NewHistoryItem(s Session, finishedAt time.Time) HistoryItem {
	return HistoryItem{
		ID:                  uuid.NewString(),
		CreatedAtMs:         toMs(finishedAt),
		StartedAtMs:         toMs(s.StartedAt),
		FinishedAtMs:        toMs(finishedAt),
		PresetID:            s.PresetID,
		ElapsedMs:           s.Elapsed(finishedAt).Milliseconds(),
		DistanceKm:          s.DistanceKm,
		FareYen:             s.Runtime.FareYen,
		FareRuntime:         s.Runtime,
		FirstAcceptedPoint:  copyCoordinate(s.FirstAcceptedPoint),
		LastAcceptedPoint:   copyCoordinate(s.LastAcceptedPoint),
		AcceptedSampleCount: s.AcceptedSamples,
		FilteredSampleCount: s.FilteredSamples,
		DistanceChargeSteps: s.DistanceChargeSteps,
		TimeChargeSteps:     s.TimeChargeSteps,
		PauseLogs:           pauseLogRecords(s.PauseLogs),
		Events:              eventRecords(s.Events),
	}
}

// Elapsed is the billed wall time of the drive
func (h HistoryItem) Elapsed() time.Duration {
	return time.Duration(h.ElapsedMs) * time.Millisecond
}

// PrependHistory puts item first and drops the oldest entries beyond MaxHistory
func PrependHistory(items []HistoryItem, item HistoryItem) []HistoryItem {
	out := make([]HistoryItem, 0, min(len(items)+1, MaxHistory))
	out = append(out, item)
	for _, it := range items {
		if len(out) == MaxHistory {
			break
		}
		out = append(out, it)
	}
	return out
}
