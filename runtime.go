package taximeter

import "math"

// stepEpsilon absorbs float error when a remainder lands exactly on a step boundary,
// e.g. 0.765/0.255 evaluating to 2.9999999999999996
const stepEpsilon = 1e-9

// Mode is the billing mode a segment was charged under
type Mode string

const (
	ModeUnknown  Mode = "unknown"
	ModeDistance Mode = "distance"
	ModeLowSpeed Mode = "low_speed"
)

// FareRuntime is the accrual state of one session
type FareRuntime struct {
	BaseDistanceRemainingKm  float64 `json:"base_distance_remaining_km"`
	DistanceRemainderKm      float64 `json:"distance_remainder_km"`
	LowSpeedRemainderSeconds float64 `json:"low_speed_remainder_seconds"`
	FareYen                  Yen     `json:"fare_yen"`
}

// Charge describes what a single Apply did
type Charge struct {
	Mode          Mode
	DistanceSteps int64
	TimeSteps     int64
}

// NewRuntime starts accrual at the base fare with the full base distance available
func NewRuntime(p Preset) FareRuntime {
	return FareRuntime{
		BaseDistanceRemainingKm: p.BaseDistanceKm,
		FareYen:                 p.BaseFareYen,
	}
}

// Apply charges one segment and returns the new runtime.
// A segment is charged either as low-speed time or as distance, never both: at or below
// the preset threshold only time accrues, above it the distance first consumes the free
// base distance and the rest accrues towards distance steps.
// Invalid deltas leave the runtime unchanged.
func (r FareRuntime) Apply(p Preset, deltaKm, deltaSeconds, speedKmh float64) (FareRuntime, Charge) {
	if !isFinite(deltaKm) || !isFinite(deltaSeconds) || deltaSeconds <= 0 {
		return r, Charge{Mode: ModeUnknown}
	}

	if speedKmh <= p.LowSpeedThresholdKmh {
		var steps int64
		r.LowSpeedRemainderSeconds, steps = carry(r.LowSpeedRemainderSeconds+deltaSeconds, p.LowSpeedStepSeconds, r.headroom(p.LowSpeedStepFareYen))
		r.FareYen += Yen(steps) * p.LowSpeedStepFareYen
		return r, Charge{Mode: ModeLowSpeed, TimeSteps: steps}
	}

	chargeable := math.Max(deltaKm, 0)
	if r.BaseDistanceRemainingKm > 0 {
		free := math.Min(r.BaseDistanceRemainingKm, chargeable)
		r.BaseDistanceRemainingKm = math.Max(r.BaseDistanceRemainingKm-free, 0)
		chargeable -= free
	}

	var steps int64
	r.DistanceRemainderKm, steps = carry(r.DistanceRemainderKm+chargeable, p.DistanceStepKm, r.headroom(p.DistanceStepFareYen))
	r.FareYen += Yen(steps) * p.DistanceStepFareYen
	return r, Charge{Mode: ModeDistance, DistanceSteps: steps}
}

// headroom is the number of steps of stepFare the fare can still take before it saturates
func (r FareRuntime) headroom(stepFare Yen) int64 {
	left := int64(math.MaxInt64 - r.FareYen)
	if left <= 0 {
		return 0
	}
	if stepFare <= 0 {
		return left
	}
	return left / int64(stepFare)
}

// carry batches every full step contained in total, at most limit of them, and returns
// what is left over. The leftover always stays within [0, step).
func carry(total, step float64, limit int64) (float64, int64) {
	steps := math.Floor(total/step + stepEpsilon)
	if steps <= 0 {
		return total, 0
	}
	if steps >= float64(limit) || int64(steps) >= limit {
		return math.Mod(total, step), limit
	}
	rest := math.Max(total-steps*step, 0)
	if rest >= step {
		rest = math.Mod(rest, step)
	}
	return rest, int64(steps)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
