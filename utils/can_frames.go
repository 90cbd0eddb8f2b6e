package utils

import (
	"fmt"

	"go.einride.tech/can"
)

// Signal names of the inverter frames in the CAN map.
const (
	SignalPWMEnable = "pwm_enable"
	SignalDutyA     = "duty_a_cnt"
	SignalDutyB     = "duty_b_cnt"
	SignalDutyC     = "duty_c_cnt"
	SignalSector    = "sector"
	SignalUdc       = "udc_v"
)

// DutyCommand is the compare triplet handed to the PWM driver node once per
// control tick.
type DutyCommand struct {
	DutyA  float64
	DutyB  float64
	DutyC  float64
	Sector int
	Enable bool
}

// EncodeDutyCommand packs cmd into the named command frame. The frame must
// carry all three duty signals.
func (m *CANMap) EncodeDutyCommand(frameName string, cmd DutyCommand) (can.Frame, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return can.Frame{}, err
	}
	for _, name := range []string{SignalDutyA, SignalDutyB, SignalDutyC} {
		if _, ok := fd.Signal(name); !ok {
			return can.Frame{}, fmt.Errorf("frame %s has no %s signal", fd.Name, name)
		}
	}

	return m.EncodeEinrideFrame(frameName, map[string]float64{
		SignalPWMEnable: boolToFloat(cmd.Enable),
		SignalDutyA:     cmd.DutyA,
		SignalDutyB:     cmd.DutyB,
		SignalDutyC:     cmd.DutyC,
		SignalSector:    float64(cmd.Sector),
	})
}

// DecodeDCLink extracts the DC-link voltage from f when f is the named
// feedback frame. ok is false for any other frame.
func (m *CANMap) DecodeDCLink(f can.Frame, frameName string) (udc float64, ok bool, err error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return 0, false, err
	}
	if f.ID != fd.ID {
		return 0, false, nil
	}

	values, err := m.DecodeFrame(f.ID, f.Data[:f.Length])
	if err != nil {
		return 0, false, err
	}
	udc, ok = values[SignalUdc]
	if !ok {
		return 0, false, fmt.Errorf("frame %s has no %s signal", fd.Name, SignalUdc)
	}
	return udc, true, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
