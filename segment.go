package taximeter

import "time"

// Reason tells why a sample was rejected; the empty Reason means accepted
type Reason string

const (
	Accepted         Reason = ""
	InvalidDelta     Reason = "invalid_delta"
	SpeedSpike       Reason = "speed_spike"
	DistanceJump     Reason = "distance_jump"
	PoorAccuracyJump Reason = "poor_accuracy_jump"
)

// noise filter thresholds
const (
	maxSpeedKmh           = 180.0
	jumpSpeedFactor       = 1.5
	jumpSlackKm           = 0.02
	poorAccuracyM         = 80.0
	poorAccuracyMaxMoveKm = 0.03
)

// Segment is made of two consecutive positions of the same ride
type Segment struct {
	From, To     Position
	DistanceKm   float64
	Seconds      float64
	SpeedKmh     float64
	AccuracyM    float64
	StartedAt    time.Time
	FinishedAt   time.Time
	RejectReason Reason
}

// NewSegment derives the distance, duration and speed between two positions and classifies it.
// The reported sensor speed of the newer position wins when it is positive.
func NewSegment(from, to Position) Segment {
	s := Segment{
		From:       from,
		To:         to,
		DistanceKm: to.Distance(from),
		Seconds:    to.Timestamp.Sub(from.Timestamp).Seconds(),
		AccuracyM:  to.AccuracyM,
		StartedAt:  from.Timestamp,
		FinishedAt: to.Timestamp,
	}
	s.SpeedKmh = DeriveSpeedKmh(s.DistanceKm, s.Seconds, to.SpeedMps)
	s.RejectReason = Classify(s.DistanceKm, s.Seconds, s.SpeedKmh, s.AccuracyM)
	return s
}

// Accepted reports whether the segment passed the noise filter
func (s Segment) Accepted() bool {
	return s.RejectReason == Accepted
}

// DeriveSpeedKmh prefers the reported speed and falls back to distance over time
func DeriveSpeedKmh(deltaKm, deltaSeconds, reportedMps float64) float64 {
	if reportedMps > 0 {
		return reportedMps * 3.6
	}
	return deltaKm / deltaSeconds * 3600
}

// Classify decides whether a sample is trustworthy. Checks run in order and the first match wins.
func Classify(deltaKm, deltaSeconds, speedKmh, accuracyM float64) Reason {
	switch {
	case !isFinite(deltaKm) || !isFinite(deltaSeconds) || deltaSeconds <= 0:
		return InvalidDelta
	case speedKmh > maxSpeedKmh:
		return SpeedSpike
	case deltaKm > maxSpeedKmh/3600*jumpSpeedFactor*deltaSeconds+jumpSlackKm:
		return DistanceJump
	case accuracyM > poorAccuracyM && deltaKm > poorAccuracyMaxMoveKm:
		return PoorAccuracyJump
	}
	return Accepted
}
