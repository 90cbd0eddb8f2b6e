package utils

import "sort"

// SignalDef is one row of the CAN signal map.
type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// FrameDef groups the signals sharing one CAN identifier.
type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string // "tx" from the inverter loop, "rx" into it
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the definition of the named signal.
func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
