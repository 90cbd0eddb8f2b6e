package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"svpwm-drive/svpwm"
)

// SweepConfig describes one electrical revolution to tabulate
type SweepConfig struct {
	DCLinkV          float64
	Index            float64 // fraction of the largest undistorted magnitude
	CounterFullScale float64
	Steps            int
	Mode             svpwm.InputMode
}

// SweepPoint is the modulator output at one angle
type SweepPoint struct {
	AngleRad float64
	Sector   int
	DutyA    float64
	DutyB    float64
	DutyC    float64
}

// Sweep evaluates the modulator at Steps evenly spaced angles over (-pi, pi].
func Sweep(cfg SweepConfig) ([]SweepPoint, error) {
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("invalid steps: %d", cfg.Steps)
	}
	if cfg.CounterFullScale <= 0 {
		return nil, fmt.Errorf("invalid counter full scale: %f", cfg.CounterFullScale)
	}

	mag := float64(svpwm.MaxMagnitude(float32(cfg.DCLinkV))) * cfg.Index
	req := svpwm.Request{
		Mode:             cfg.Mode,
		DCLink:           float32(cfg.DCLinkV),
		CounterFullScale: float32(cfg.CounterFullScale),
	}

	points := make([]SweepPoint, 0, cfg.Steps)
	for i := 0; i < cfg.Steps; i++ {
		theta := -math.Pi + 2*math.Pi*(float64(i)+0.5)/float64(cfg.Steps)

		switch cfg.Mode {
		case svpwm.AlphaBeta:
			req.UAlpha = float32(mag * math.Cos(theta))
			req.UBeta = float32(mag * math.Sin(theta))
		default:
			req.Magnitude = float32(mag)
			req.AngleRad = float32(theta)
		}

		if err := req.Calculate(); err != nil {
			return nil, fmt.Errorf("angle %.4f: %w", theta, err)
		}
		points = append(points, SweepPoint{
			AngleRad: theta,
			Sector:   req.Sector,
			DutyA:    float64(req.DutyA),
			DutyB:    float64(req.DutyB),
			DutyC:    float64(req.DutyC),
		})
	}
	return points, nil
}

// WriteCSV writes the sweep as angle_deg,sector,duty_a,duty_b,duty_c rows.
func WriteCSV(path string, points []SweepPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"angle_deg", "sector", "duty_a", "duty_b", "duty_c"})
	for _, p := range points {
		_ = w.Write([]string{
			strconv.FormatFloat(p.AngleRad*180/math.Pi, 'f', 3, 64),
			strconv.Itoa(p.Sector),
			strconv.FormatFloat(p.DutyA, 'f', 3, 64),
			strconv.FormatFloat(p.DutyB, 'f', 3, 64),
			strconv.FormatFloat(p.DutyC, 'f', 3, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
