package main

import (
	"math"

	"svpwm-drive/svpwm"
)

// Reference integrates the electrical angle of a rotating voltage vector.
// The angle is kept in (-pi, pi].
type Reference struct {
	angle float64
}

// Step advances the angle by one tick at the given electrical frequency.
func (r *Reference) Step(freqHz, dt float64) {
	r.angle = float64(svpwm.NormalizeAngle(float32(r.angle + 2*math.Pi*freqHz*dt)))
}

// Angle returns the current electrical angle in radians.
func (r *Reference) Angle() float64 {
	return r.angle
}

// Vector returns the alpha-beta components of a vector of magnitude m at
// the current angle plus offset.
func (r *Reference) Vector(m, offset float64) (alpha, beta float64) {
	s, c := math.Sincos(r.angle + offset)
	return m * c, m * s
}
