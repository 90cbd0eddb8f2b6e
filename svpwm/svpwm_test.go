package svpwm

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-2

func near(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func deg(d float64) float32 {
	return float32(d * math.Pi / 180)
}

func TestCalculateFullScaleAtZeroAngle(t *testing.T) {
	r := Request{
		Mode:             MagnitudeAngle,
		DCLink:           100,
		CounterFullScale: 1000,
		Magnitude:        float32(100 / math.Sqrt(3)),
		AngleRad:         0,
	}
	if err := r.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if r.Sector != 3 {
		t.Fatalf("Expected sector 3, got %d", r.Sector)
	}

	// beta = 0: Tb1 = sin(pi/3), Tb2 = 0, row 3 = {0, 3, 1}
	tb1 := math.Sin(math.Pi / 3)
	t0 := (1 - tb1) / 2
	wantA := float32(1000 * t0)
	wantB := float32(1000 * (tb1 + t0))
	wantC := float32(1000 * (tb1 + t0))

	if !near(r.DutyA, wantA, tol) || !near(r.DutyB, wantB, tol) || !near(r.DutyC, wantC, tol) {
		t.Errorf("Expected duties (%.3f, %.3f, %.3f), got (%.3f, %.3f, %.3f)",
			wantA, wantB, wantC, r.DutyA, r.DutyB, r.DutyC)
	}
}

func TestCalculateZeroMagnitude(t *testing.T) {
	for _, d := range []float64{-179, -120, -45, 0, 10, 60, 95, 150, 180} {
		r := Request{
			Mode:             MagnitudeAngle,
			DCLink:           48,
			CounterFullScale: 4000,
			AngleRad:         deg(d),
		}
		if err := r.Calculate(); err != nil {
			t.Fatalf("angle %.0f: %v", d, err)
		}
		if r.DutyA != 2000 || r.DutyB != 2000 || r.DutyC != 2000 {
			t.Errorf("angle %.0f: expected all duties 2000, got (%v, %v, %v)", d, r.DutyA, r.DutyB, r.DutyC)
		}
	}
}

func TestCalculateSaturation(t *testing.T) {
	const udc = 320
	maxMag := MaxMagnitude(udc)

	for _, d := range []float64{-150, -20, 0, 37, 121} {
		limited := Request{Mode: MagnitudeAngle, DCLink: udc, CounterFullScale: 1000, Magnitude: maxMag, AngleRad: deg(d)}
		over := Request{Mode: MagnitudeAngle, DCLink: udc, CounterFullScale: 1000, Magnitude: 3 * maxMag, AngleRad: deg(d)}
		negative := Request{Mode: MagnitudeAngle, DCLink: udc, CounterFullScale: 1000, Magnitude: -3 * maxMag, AngleRad: deg(d)}

		for _, r := range []*Request{&limited, &over, &negative} {
			if err := r.Calculate(); err != nil {
				t.Fatalf("angle %.0f: %v", d, err)
			}
		}

		if over.DutyA != limited.DutyA || over.DutyB != limited.DutyB || over.DutyC != limited.DutyC {
			t.Errorf("angle %.0f: saturated output differs from limit output", d)
		}
		if negative.DutyA != limited.DutyA || negative.DutyB != limited.DutyB || negative.DutyC != limited.DutyC {
			t.Errorf("angle %.0f: negative magnitude not treated as absolute value", d)
		}
		if over.Magnitude != maxMag {
			t.Errorf("angle %.0f: expected magnitude written back as %v, got %v", d, maxMag, over.Magnitude)
		}
	}
}

func TestCalculateSectorCoverage(t *testing.T) {
	r := Request{Mode: MagnitudeAngle, DCLink: 100, CounterFullScale: 1000, Magnitude: 30}

	prev := -1
	seen := make(map[int]int)
	// half-degree offsets keep every sample off a sector boundary
	for i := 0; i < 360; i++ {
		d := -179.5 + float64(i)
		r.AngleRad = deg(d)
		if err := r.Calculate(); err != nil {
			t.Fatalf("angle %.1f: %v", d, err)
		}

		want := int((d + 180) / 60)
		if r.Sector != want {
			t.Errorf("angle %.1f: expected sector %d, got %d", d, want, r.Sector)
		}
		if r.Sector < prev {
			t.Errorf("angle %.1f: sector decreased from %d to %d", d, prev, r.Sector)
		}
		prev = r.Sector
		seen[r.Sector]++
	}

	for s := 0; s < sectorCount; s++ {
		if seen[s] != 60 {
			t.Errorf("sector %d covered %d degrees, expected 60", s, seen[s])
		}
	}
}

func TestCalculateDutyBounds(t *testing.T) {
	const counter = 1000
	for _, frac := range []float64{0.1, 0.5, 0.9, 1.0, 1.5} {
		for d := -179.0; d <= 180; d += 3 {
			r := Request{
				Mode:             MagnitudeAngle,
				DCLink:           600,
				CounterFullScale: counter,
				Magnitude:        MaxMagnitude(600) * float32(frac),
				AngleRad:         deg(d),
			}
			if err := r.Calculate(); err != nil {
				t.Fatalf("angle %.0f: %v", d, err)
			}
			for i, duty := range []float32{r.DutyA, r.DutyB, r.DutyC} {
				if duty < -1e-3 || duty > counter+1e-3 {
					t.Errorf("frac %.1f angle %.0f phase %d: duty %v outside [0, %d]", frac, d, i, duty, counter)
				}
			}
		}
	}
}

func TestCalculateModeEquivalence(t *testing.T) {
	const m = 150.0
	for d := -175.0; d <= 180; d += 7 {
		theta := d * math.Pi / 180

		ab := Request{
			Mode:             AlphaBeta,
			DCLink:           400,
			CounterFullScale: 1000,
			UAlpha:           float32(m * math.Cos(theta)),
			UBeta:            float32(m * math.Sin(theta)),
		}
		polar := Request{
			Mode:             MagnitudeAngle,
			DCLink:           400,
			CounterFullScale: 1000,
			Magnitude:        m,
			AngleRad:         float32(theta),
		}
		if err := ab.Calculate(); err != nil {
			t.Fatalf("alpha-beta %.0f: %v", d, err)
		}
		if err := polar.Calculate(); err != nil {
			t.Fatalf("polar %.0f: %v", d, err)
		}

		if !near(ab.DutyA, polar.DutyA, tol) || !near(ab.DutyB, polar.DutyB, tol) || !near(ab.DutyC, polar.DutyC, tol) {
			t.Errorf("angle %.0f: alpha-beta (%v, %v, %v) != polar (%v, %v, %v)",
				d, ab.DutyA, ab.DutyB, ab.DutyC, polar.DutyA, polar.DutyB, polar.DutyC)
		}
		if !near(ab.Magnitude, m, 1e-3) {
			t.Errorf("angle %.0f: expected derived magnitude %v, got %v", d, m, ab.Magnitude)
		}
	}
}

func TestCalculateIdempotent(t *testing.T) {
	for _, mode := range []InputMode{AlphaBeta, MagnitudeAngle} {
		r := Request{
			Mode:             mode,
			DCLink:           200,
			CounterFullScale: 2500,
			UAlpha:           -40,
			UBeta:            75,
			Magnitude:        90,
			AngleRad:         deg(-100),
		}
		if err := r.Calculate(); err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		first := r
		if err := r.Calculate(); err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if r != first {
			t.Errorf("%s: second call changed the record: %+v -> %+v", mode, first, r)
		}
	}
}

func TestCalculateInvalidModeLeavesRecord(t *testing.T) {
	r := Request{
		Mode:             InputMode(7),
		DCLink:           100,
		CounterFullScale: 1000,
		Magnitude:        10,
		AngleRad:         1,
		DutyA:            1,
		DutyB:            2,
		DutyC:            3,
		Sector:           4,
	}
	before := r

	if err := r.Calculate(); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("Expected ErrInvalidMode, got %v", err)
	}
	if r != before {
		t.Errorf("record modified on invalid mode: %+v", r)
	}
	if InputMode(7).String() != "unknown" {
		t.Errorf("unexpected mode name %q", InputMode(7).String())
	}
}

func TestCalculateAngleOutOfRange(t *testing.T) {
	for _, a := range []float32{-4, 3.5, 7, float32(math.NaN())} {
		r := Request{Mode: MagnitudeAngle, DCLink: 100, CounterFullScale: 1000, Magnitude: 10, AngleRad: a, DutyA: 42}
		if err := r.Calculate(); !errors.Is(err, ErrAngleOutOfRange) {
			t.Errorf("angle %v: expected ErrAngleOutOfRange, got %v", a, err)
		}
		if r.DutyA != 42 {
			t.Errorf("angle %v: output changed on error", a)
		}

		r.AngleRad = NormalizeAngle(a)
		if math.IsNaN(float64(a)) {
			continue
		}
		if err := r.Calculate(); err != nil {
			t.Errorf("angle %v normalized to %v: %v", a, r.AngleRad, err)
		}
	}
}

func TestCalculateAngleAtPi(t *testing.T) {
	atPi := Request{Mode: AlphaBeta, DCLink: 100, CounterFullScale: 1000, UAlpha: -20}
	if err := atPi.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if atPi.Sector != 0 {
		t.Errorf("Expected angle pi in sector 0, got %d", atPi.Sector)
	}

	// pi and -pi describe the same vector
	atMinusPi := Request{Mode: MagnitudeAngle, DCLink: 100, CounterFullScale: 1000, Magnitude: 20, AngleRad: -math.Pi}
	if err := atMinusPi.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !near(atPi.DutyA, atMinusPi.DutyA, tol) || !near(atPi.DutyB, atMinusPi.DutyB, tol) || !near(atPi.DutyC, atMinusPi.DutyC, tol) {
		t.Errorf("pi (%v, %v, %v) != -pi (%v, %v, %v)",
			atPi.DutyA, atPi.DutyB, atPi.DutyC, atMinusPi.DutyA, atMinusPi.DutyB, atMinusPi.DutyC)
	}
}

func TestCalculateDCLink(t *testing.T) {
	r := Request{Mode: MagnitudeAngle, DCLink: 0, CounterFullScale: 1000, Magnitude: 50, AngleRad: 1}
	if err := r.Calculate(); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if r.Magnitude != 0 || r.DutyA != 500 || r.DutyB != 500 || r.DutyC != 500 {
		t.Errorf("Expected zero vector on dead bus, got mag=%v duties=(%v, %v, %v)", r.Magnitude, r.DutyA, r.DutyB, r.DutyC)
	}

	r.DCLink = -5
	if err := r.Calculate(); !errors.Is(err, ErrNegativeDCLink) {
		t.Errorf("Expected ErrNegativeDCLink, got %v", err)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{7.5, 7.5 - 2*math.Pi},
	}
	for _, tt := range tests {
		got := NormalizeAngle(float32(tt.in))
		if !near(got, float32(tt.want), 1e-5) {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got <= -math.Pi-1e-6 || got > math.Pi+1e-6 {
			t.Errorf("NormalizeAngle(%v) = %v outside (-pi, pi]", tt.in, got)
		}
	}
}

func TestIntervals(t *testing.T) {
	ti := Intervals(0, 0.3)
	for i, v := range ti {
		if v != 0.5 {
			t.Errorf("interval %d: expected 0.5 at zero magnitude, got %v", i, v)
		}
	}

	ti = Intervals(1, piOver3/2)
	// tb1 == tb2 == sin(30deg) == 0.5
	want := [4]float32{0, 1, 0.5, 0.5}
	for i := range ti {
		if !near(ti[i], want[i], 1e-5) {
			t.Errorf("interval %d: expected %v, got %v", i, want[i], ti[i])
		}
	}
}
