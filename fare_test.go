package taximeter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreset_Validate(t *testing.T) {
	valid := DefaultPresets[0]
	tests := []struct {
		name     string
		mutate   func(p *Preset)
		hasError bool
	}{
		{
			name:     "ok",
			mutate:   func(p *Preset) {},
			hasError: false,
		},
		{
			name:     "zero low speed threshold is allowed",
			mutate:   func(p *Preset) { p.LowSpeedThresholdKmh = 0 },
			hasError: false,
		},
		{
			name:     "empty id - error",
			mutate:   func(p *Preset) { p.ID = "" },
			hasError: true,
		},
		{
			name:     "base fare is zero - error",
			mutate:   func(p *Preset) { p.BaseFareYen = 0 },
			hasError: true,
		},
		{
			name:     "base distance is zero - error",
			mutate:   func(p *Preset) { p.BaseDistanceKm = 0 },
			hasError: true,
		},
		{
			name:     "distance step is zero - error",
			mutate:   func(p *Preset) { p.DistanceStepKm = 0 },
			hasError: true,
		},
		{
			name:     "distance step fare is zero - error",
			mutate:   func(p *Preset) { p.DistanceStepFareYen = 0 },
			hasError: true,
		},
		{
			name:     "negative low speed threshold - error",
			mutate:   func(p *Preset) { p.LowSpeedThresholdKmh = -1 },
			hasError: true,
		},
		{
			name:     "low speed step is zero - error",
			mutate:   func(p *Preset) { p.LowSpeedStepSeconds = 0 },
			hasError: true,
		},
		{
			name:     "low speed step fare is zero - error",
			mutate:   func(p *Preset) { p.LowSpeedStepFareYen = 0 },
			hasError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := valid
			test.mutate(&p)
			assert.Equal(t, test.hasError, p.Validate() != nil)
		})
	}
}

func TestPresets(t *testing.T) {
	assert.Nil(t, DefaultPresets.Validate())
	assert.Equal(t, "tokyo", DefaultPresets.Default().ID)

	p, err := DefaultPresets.Find("osaka")
	assert.Nil(t, err)
	assert.Equal(t, "osaka", p.ID)

	_, err = DefaultPresets.Find("nowhere")
	assert.True(t, errors.Is(err, ErrUnknownPreset))

	assert.Equal(t, ErrNoPresets, Presets{}.Validate())
	assert.NotNil(t, Presets{DefaultPresets[0], DefaultPresets[0]}.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		hasError bool
	}{
		{
			name: "ok",
			config: &Config{
				Preset:      DefaultPresets[0],
				Concurrency: 2,
			},
			hasError: false,
		},
		{
			name: "invalid preset - error",
			config: &Config{
				Preset:      Preset{ID: "broken"},
				Concurrency: 2,
			},
			hasError: true,
		},
		{
			name: "concurrency is zero - error",
			config: &Config{
				Preset:      DefaultPresets[0],
				Concurrency: 0,
			},
			hasError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.config.Validate()
			assert.Equal(t, test.hasError, err != nil)
		})
	}
}
