package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"svpwm-drive/svpwm"
)

// Profile defines a complete open-loop drive profile
type Profile struct {
	Meta     ProfileMeta      `json:"meta"`
	Timing   ProfileTiming    `json:"timing"`
	Inverter InverterConfig   `json:"inverter"`
	Segments []ProfileSegment `json:"segments"`

	mode svpwm.InputMode
}

// ProfileMeta contains profile metadata
type ProfileMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	InputMode   string `json:"input_mode,omitempty"` // "alpha_beta" (default) or "magnitude_angle"
}

// ProfileTiming defines the control tick
type ProfileTiming struct {
	CycleUS   int     `json:"cycle_us"`
	DurationS float64 `json:"duration_s"`
}

// InverterConfig describes the power stage the duties are computed for
type InverterConfig struct {
	NominalUdcV       float64 `json:"nominal_udc_v"`
	CounterFullScale  float64 `json:"counter_full_scale"`
	WrapAngle         bool    `json:"wrap_angle"`
	FeedbackTimeoutMS int     `json:"feedback_timeout_ms"`
}

// ProfileSegment defines a time segment of the voltage reference.
// MagnitudeV wins over VPerHz when both are set.
type ProfileSegment struct {
	T0             float64  `json:"t0"`
	T1             float64  `json:"t1"` // -1 runs to the end of the profile
	FrequencyHz    float64  `json:"frequency_hz"`
	FrequencyEndHz *float64 `json:"frequency_end_hz,omitempty"` // linear ramp target
	MagnitudeV     float64  `json:"magnitude_v,omitempty"`
	VPerHz         float64  `json:"v_per_hz,omitempty"`
	PhaseOffsetRad float64  `json:"phase_offset_rad,omitempty"`
	Comment        string   `json:"comment,omitempty"`
}

// Setpoint is the voltage reference active at one instant
type Setpoint struct {
	Enable         bool
	FrequencyHz    float64
	MagnitudeV     float64
	PhaseOffsetRad float64
}

// LoadProfile loads a profile from a JSON file
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read file: %w", err)
	}

	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return Profile{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := prof.validate(); err != nil {
		return Profile{}, err
	}
	return prof, nil
}

func (p *Profile) validate() error {
	if p.Timing.DurationS <= 0 {
		return fmt.Errorf("invalid duration_s: %f", p.Timing.DurationS)
	}
	if p.Timing.CycleUS <= 0 {
		return fmt.Errorf("invalid cycle_us: %d", p.Timing.CycleUS)
	}
	if p.Inverter.CounterFullScale <= 0 {
		return fmt.Errorf("invalid counter_full_scale: %f", p.Inverter.CounterFullScale)
	}
	if p.Inverter.NominalUdcV < 0 {
		return fmt.Errorf("invalid nominal_udc_v: %f", p.Inverter.NominalUdcV)
	}
	if p.Inverter.FeedbackTimeoutMS <= 0 {
		p.Inverter.FeedbackTimeoutMS = 500
	}

	switch p.Meta.InputMode {
	case "", "alpha_beta":
		p.Meta.InputMode = "alpha_beta"
		p.mode = svpwm.AlphaBeta
	case "magnitude_angle":
		p.mode = svpwm.MagnitudeAngle
	default:
		return fmt.Errorf("unknown input_mode %q", p.Meta.InputMode)
	}

	for i, seg := range p.Segments {
		if seg.T0 < 0 {
			return fmt.Errorf("segment %d: negative t0 %f", i, seg.T0)
		}
		if seg.T1 >= 0 && seg.T1 <= seg.T0 {
			return fmt.Errorf("segment %d: t1 %f not after t0 %f", i, seg.T1, seg.T0)
		}
		if seg.MagnitudeV < 0 {
			return fmt.Errorf("segment %d: negative magnitude_v %f", i, seg.MagnitudeV)
		}
	}
	return nil
}

// Mode returns the request representation the profile drives.
func (p *Profile) Mode() svpwm.InputMode {
	return p.mode
}

// Eval returns the voltage reference at time t. Outside every segment the
// gates are disabled.
func (p *Profile) Eval(t float64) Setpoint {
	for _, seg := range p.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = p.Timing.DurationS
		}
		if t < seg.T0 || t >= t1 {
			continue
		}

		freq := seg.FrequencyHz
		if seg.FrequencyEndHz != nil {
			frac := (t - seg.T0) / (t1 - seg.T0)
			freq += (*seg.FrequencyEndHz - seg.FrequencyHz) * frac
		}

		mag := seg.MagnitudeV
		if mag == 0 {
			mag = seg.VPerHz * math.Abs(freq)
		}

		return Setpoint{
			Enable:         true,
			FrequencyHz:    freq,
			MagnitudeV:     mag,
			PhaseOffsetRad: seg.PhaseOffsetRad,
		}
	}
	return Setpoint{}
}
