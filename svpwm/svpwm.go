// Package svpwm computes space-vector PWM duty cycles for a three-phase
// inverter from a target voltage vector and the DC-link voltage.
package svpwm

import (
	"errors"

	"github.com/chewxy/math32"
)

const (
	piOver3     = math32.Pi / 3
	invSqrt3    = 0.57735026918962576 // 1/sqrt(3)
	sectorCount = 6
)

var (
	ErrInvalidMode     = errors.New("svpwm: invalid input mode")
	ErrAngleOutOfRange = errors.New("svpwm: angle outside (-pi, pi]")
	ErrNegativeDCLink  = errors.New("svpwm: negative dc-link voltage")
)

// InputMode selects which representation of the voltage vector is authoritative
type InputMode uint8

const (
	AlphaBeta      InputMode = iota // Cartesian alpha-beta components
	MagnitudeAngle                  // magnitude + angle in radians
)

func (m InputMode) String() string {
	switch m {
	case AlphaBeta:
		return "alpha_beta"
	case MagnitudeAngle:
		return "magnitude_angle"
	default:
		return "unknown"
	}
}

// permutation maps (sector, phase) to an index into the interval table.
// Columns are phases A, B, C.
var permutation = [sectorCount][3]uint8{
	{1, 2, 0},
	{3, 1, 0},
	{0, 1, 2},
	{0, 3, 1},
	{2, 0, 1},
	{1, 0, 3},
}

// Request is the per-tick modulation record. The caller fills the inputs for
// the active mode, calls Calculate and reads the duty outputs.
type Request struct {
	// Inputs
	Mode             InputMode
	DCLink           float32 // DC link voltage, volts
	CounterFullScale float32 // compare value equivalent to 100% duty

	// Mode == AlphaBeta
	UAlpha float32 // volts
	UBeta  float32 // volts

	// Mode == MagnitudeAngle. Overwritten with the polar form actually used.
	Magnitude float32 // volts
	AngleRad  float32 // radians, (-pi, pi]

	// Outputs
	DutyA  float32
	DutyB  float32
	DutyC  float32
	Sector int
}

// MaxMagnitude returns the radius of the circle inscribed in the inverter
// voltage hexagon for the given DC-link voltage.
func MaxMagnitude(dcLink float32) float32 {
	return dcLink * invSqrt3
}

// NormalizeAngle wraps a finite angle into (-pi, pi].
func NormalizeAngle(a float32) float32 {
	a = math32.Mod(a, 2*math32.Pi)
	if a > math32.Pi {
		a -= 2 * math32.Pi
	} else if a <= -math32.Pi {
		a += 2 * math32.Pi
	}
	return a
}

// Intervals returns the four normalized switching instants of a
// center-aligned period for a vector of the given scaled magnitude sitting
// beta radians past the start of its sector.
func Intervals(scaled, beta float32) [4]float32 {
	tb1 := scaled * math32.Sin(piOver3-beta)
	tb2 := scaled * math32.Sin(beta)

	var ti [4]float32
	ti[0] = (1 - tb1 - tb2) * 0.5
	ti[1] = tb1 + tb2 + ti[0]
	ti[2] = tb2 + ti[0]
	ti[3] = tb1 + ti[0]
	return ti
}

// Calculate computes the three duty values for the request in place.
//
// The angle is not wrapped: in MagnitudeAngle mode it must already lie in
// (-pi, pi], see NormalizeAngle. On error the outputs are left unchanged.
func (r *Request) Calculate() error {
	if !(r.DCLink >= 0) {
		return ErrNegativeDCLink
	}

	var mag, ang float32
	switch r.Mode {
	case AlphaBeta:
		mag = math32.Hypot(r.UBeta, r.UAlpha)
		ang = math32.Atan2(r.UBeta, r.UAlpha)
	case MagnitudeAngle:
		mag = math32.Abs(r.Magnitude)
		ang = r.AngleRad
	default:
		return ErrInvalidMode
	}

	shifted := ang + math32.Pi
	if !(shifted >= 0 && shifted <= 2*math32.Pi) {
		return ErrAngleOutOfRange
	}

	sector := int(shifted / piOver3)
	if sector >= sectorCount {
		// angle == pi lands exactly on the end of the circle
		sector = 0
		shifted -= 2 * math32.Pi
	}
	beta := shifted - piOver3*float32(sector)
	if beta < 0 {
		beta = 0
	}

	maxMag := MaxMagnitude(r.DCLink)
	if mag > maxMag {
		mag = maxMag
	}
	var scaled float32
	if maxMag > 0 {
		scaled = mag / maxMag
	}

	ti := Intervals(scaled, beta)
	row := permutation[sector]

	r.Magnitude = mag
	r.AngleRad = ang
	r.Sector = sector
	r.DutyA = r.CounterFullScale * ti[row[0]]
	r.DutyB = r.CounterFullScale * ti[row[1]]
	r.DutyC = r.CounterFullScale * ti[row[2]]
	return nil
}
