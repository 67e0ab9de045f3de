/*
	Package taximeter simulates a taxi fare meter. It consumes a stream of noisy GPS position
	samples, rejects the ones that look like sensor noise, and turns the accepted ones into
	billable distance or billable low-speed time according to a jurisdiction preset.

	A Meter owns one drive session at a time and moves it through idle, running and paused
	states, persisting a snapshot of the in-progress session and appending finished drives
	to a bounded history log through a Gateway.
*/
package taximeter

import (
	"errors"
	"fmt"
)

// Yen is a fare amount in whole yen
type Yen int64

// Line is a slice of strings
type Line []string

var (
	ErrUnknownPreset = errors.New("unknown fare preset")
	ErrNoPresets     = errors.New("at least one fare preset is required")
)

// Preset is a jurisdiction-specific pricing schedule
type Preset struct {
	ID                   string  `json:"id" mapstructure:"id"`
	Name                 string  `json:"name" mapstructure:"name"`
	BaseFareYen          Yen     `json:"base_fare_yen" mapstructure:"base_fare_yen"`
	BaseDistanceKm       float64 `json:"base_distance_km" mapstructure:"base_distance_km"`
	DistanceStepKm       float64 `json:"distance_step_km" mapstructure:"distance_step_km"`
	DistanceStepFareYen  Yen     `json:"distance_step_fare_yen" mapstructure:"distance_step_fare_yen"`
	LowSpeedThresholdKmh float64 `json:"low_speed_threshold_kmh" mapstructure:"low_speed_threshold_kmh"`
	LowSpeedStepSeconds  float64 `json:"low_speed_step_seconds" mapstructure:"low_speed_step_seconds"`
	LowSpeedStepFareYen  Yen     `json:"low_speed_step_fare_yen" mapstructure:"low_speed_step_fare_yen"`
}

// Validate checks that every amount and step is positive; the low-speed threshold may be zero
func (p Preset) Validate() error {
	switch {
	case p.ID == "":
		return errors.New("preset id should not be empty")
	case p.BaseFareYen <= 0:
		return fmt.Errorf("preset %s: base fare should be greater than 0", p.ID)
	case p.BaseDistanceKm <= 0:
		return fmt.Errorf("preset %s: base distance should be greater than 0", p.ID)
	case p.DistanceStepKm <= 0:
		return fmt.Errorf("preset %s: distance step should be greater than 0", p.ID)
	case p.DistanceStepFareYen <= 0:
		return fmt.Errorf("preset %s: distance step fare should be greater than 0", p.ID)
	case p.LowSpeedThresholdKmh < 0:
		return fmt.Errorf("preset %s: low speed threshold should not be negative", p.ID)
	case p.LowSpeedStepSeconds <= 0:
		return fmt.Errorf("preset %s: low speed step should be greater than 0", p.ID)
	case p.LowSpeedStepFareYen <= 0:
		return fmt.Errorf("preset %s: low speed step fare should be greater than 0", p.ID)
	}
	return nil
}

// Presets is an ordered list of presets, the first one is the default
type Presets []Preset

// DefaultPresets are used when the configuration does not provide any
var DefaultPresets = Presets{
	{
		ID:                   "tokyo",
		Name:                 "Tokyo special wards",
		BaseFareYen:          500,
		BaseDistanceKm:       1.096,
		DistanceStepKm:       0.255,
		DistanceStepFareYen:  100,
		LowSpeedThresholdKmh: 10,
		LowSpeedStepSeconds:  90,
		LowSpeedStepFareYen:  100,
	},
	{
		ID:                   "osaka",
		Name:                 "Osaka city",
		BaseFareYen:          600,
		BaseDistanceKm:       1.3,
		DistanceStepKm:       0.26,
		DistanceStepFareYen:  100,
		LowSpeedThresholdKmh: 10,
		LowSpeedStepSeconds:  95,
		LowSpeedStepFareYen:  100,
	},
	{
		ID:                   "short",
		Name:                 "Short distance flag fall",
		BaseFareYen:          500,
		BaseDistanceKm:       1.0,
		DistanceStepKm:       0.255,
		DistanceStepFareYen:  100,
		LowSpeedThresholdKmh: 10,
		LowSpeedStepSeconds:  90,
		LowSpeedStepFareYen:  100,
	},
}

// Validate checks every preset and that ids are unique
func (ps Presets) Validate() error {
	if len(ps) == 0 {
		return ErrNoPresets
	}
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate preset id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Find returns the preset with the given id
func (ps Presets) Find(id string) (Preset, error) {
	for _, p := range ps {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
}

// Default returns the first preset
func (ps Presets) Default() Preset {
	if len(ps) == 0 {
		return Preset{}
	}
	return ps[0]
}

// Config configures the batch estimator
type Config struct {
	Preset      Preset
	Concurrency int
}

func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("concurrency should be greater than 0")
	}
	return c.Preset.Validate()
}
