package otsim

import "sort"

// Unmapped marks a register a scenario does not provide. Reads of unmapped
// slots yield zero, writes are skipped, and the control features behind them
// (heater, relief valve, manual delta) are disabled.
const Unmapped = -1

// RegisterMap assigns semantic slots to register addresses. Deployments vary
// the slot layout but share one controller and one plant model; the map is
// the only per-scenario configuration.
type RegisterMap struct {
	Name string

	// coils (actuators)
	Pump          int
	Alarm         int
	Fan           int
	Heating       int
	EmergencyStop int
	ReliefValve   int

	// discrete inputs (bit sensors)
	DoorClosed    int
	SafetyOK      int
	FanActive     int
	HeatingActive int

	// input registers (field data)
	PumpVoltage int
	Temperature int
	Pressure    int
	Throughput  int
	FanRPM      int
	HeaterPower int

	// holding registers (configuration and commands)
	TargetTemp      int
	TargetPressure  int
	AlarmTemp       int
	AlarmPressure   int
	Mode            int
	PumpDelta       int
	ReliefThreshold int
	BleedRate       int

	// plant pressure band
	PressureMin int
	PressureMax int
}

// StandardMap is the full register layout with heater and relief valve.
func StandardMap() RegisterMap {
	return RegisterMap{
		Name: "standard",

		Pump:          0,
		Alarm:         1,
		Fan:           2,
		Heating:       3,
		EmergencyStop: 4,
		ReliefValve:   5,

		DoorClosed:    0,
		SafetyOK:      1,
		FanActive:     2,
		HeatingActive: 3,

		PumpVoltage: 0,
		Temperature: 1,
		Pressure:    2,
		Throughput:  3,
		FanRPM:      4,
		HeaterPower: 5,

		TargetTemp:      0,
		TargetPressure:  1,
		AlarmTemp:       2,
		AlarmPressure:   3,
		Mode:            4,
		PumpDelta:       5,
		ReliefThreshold: 6,
		BleedRate:       7,

		PressureMin: 600,
		PressureMax: 1400,
	}
}

// CompactMap is the reduced layout without heater, relief valve or manual
// pump delta, running the plant with a wider pressure band.
func CompactMap() RegisterMap {
	return RegisterMap{
		Name: "compact",

		Pump:          0,
		Alarm:         1,
		Fan:           2,
		Heating:       Unmapped,
		EmergencyStop: 3,
		ReliefValve:   Unmapped,

		DoorClosed:    0,
		SafetyOK:      1,
		FanActive:     2,
		HeatingActive: Unmapped,

		PumpVoltage: 0,
		Temperature: 1,
		Pressure:    2,
		Throughput:  3,
		FanRPM:      4,
		HeaterPower: Unmapped,

		TargetTemp:      1,
		TargetPressure:  2,
		AlarmTemp:       3,
		AlarmPressure:   4,
		Mode:            5,
		PumpDelta:       Unmapped,
		ReliefThreshold: Unmapped,
		BleedRate:       Unmapped,

		PressureMin: 200,
		PressureMax: 1600,
	}
}

// MapByName resolves a scenario name from the configuration file.
func MapByName(name string) RegisterMap {
	if name == "compact" {
		return CompactMap()
	}
	return StandardMap()
}

type labeledSlot struct {
	slot  int
	label string
}

func (m RegisterMap) slots(space Space) []labeledSlot {
	switch space {
	case Coils:
		return []labeledSlot{
			{m.Pump, "Pump"}, {m.Alarm, "Alarm"}, {m.Fan, "Fan"},
			{m.Heating, "Heating"}, {m.EmergencyStop, "Emergency Stop"},
			{m.ReliefValve, "Relief Valve"},
		}
	case DiscreteInputs:
		return []labeledSlot{
			{m.DoorClosed, "Door Closed"}, {m.SafetyOK, "Safety OK"},
			{m.FanActive, "Fan Active"}, {m.HeatingActive, "Heating Active"},
		}
	case InputRegisters:
		return []labeledSlot{
			{m.PumpVoltage, "Pump Voltage"}, {m.Temperature, "Temperature"},
			{m.Pressure, "Pressure"}, {m.Throughput, "Throughput"},
			{m.FanRPM, "Fan RPM"}, {m.HeaterPower, "Heater Power"},
		}
	case HoldingRegisters:
		return []labeledSlot{
			{m.TargetTemp, "Target Temp"}, {m.TargetPressure, "Target Pressure"},
			{m.AlarmTemp, "Alarm Temp Thresh"}, {m.AlarmPressure, "Alarm Pressure Thresh"},
			{m.Mode, "Mode"}, {m.PumpDelta, "Pump Delta"},
			{m.ReliefThreshold, "Relief Threshold"}, {m.BleedRate, "Bleed Rate"},
		}
	}
	return nil
}

// Labels returns the display label per mapped address of a space.
func (m RegisterMap) Labels(space Space) map[uint16]string {
	labels := make(map[uint16]string)
	for _, s := range m.slots(space) {
		if s.slot != Unmapped {
			labels[uint16(s.slot)] = s.label
		}
	}
	return labels
}

// MappedSlots returns the mapped addresses of a space in ascending order.
func (m RegisterMap) MappedSlots(space Space) []uint16 {
	var addrs []uint16
	for _, s := range m.slots(space) {
		if s.slot != Unmapped {
			addrs = append(addrs, uint16(s.slot))
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Projection returns the slots shared through the snapshot file. Mode stays
// internal so a stale snapshot can never clobber an operator's mode write.
func (m RegisterMap) Projection() Projection {
	p := make(Projection)
	for _, space := range Spaces {
		for _, addr := range m.MappedSlots(space) {
			if space == HoldingRegisters && m.Mode != Unmapped && addr == uint16(m.Mode) {
				continue
			}
			p[space] = append(p[space], addr)
		}
	}
	return p
}
