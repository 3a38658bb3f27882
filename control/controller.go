// Package control implements the PLC control policy: a small state machine
// over the register bank, dispatched on the mode holding register with an
// overriding emergency stop latch.
package control

import (
	"log/slog"

	"github.com/rwirdemann/otsim"
)

// Mode values stored in the mode holding register.
const (
	ModeIdle   = 0
	ModeAuto   = 1
	ModeManual = 2
)

const (
	maxVoltage       = 1000
	voltageFloor     = 200 // minimum pump voltage in auto mode
	lowFlowVoltage   = 250 // setpoint while throughput is below measurable flow
	targetThroughput = 100
	fanGain          = 2.5
	fanRateLimit     = 80 // max rpm change per cycle
	maxFanRPM        = 1000
	heaterGain       = 4
	maxHeaterPower   = 300
	reliefCeiling    = 1500
)

// Controller runs the control policy once per cycle. It keeps the last seen
// mode to log transitions; all plant state lives in the bank.
type Controller struct {
	regs   otsim.RegisterMap
	logger *slog.Logger

	lastMode int
}

func New(regs otsim.RegisterMap, logger *slog.Logger) *Controller {
	return &Controller{regs: regs, logger: logger, lastMode: -1}
}

// Run executes one controller cycle against the bank and returns the changes
// it applied. The emergency stop coil overrides everything: actuators are
// forced to zero and the rest of the cycle is skipped. The latch does not
// auto-clear; it persists until externally reset.
func (c *Controller) Run(bank *otsim.Bank) (otsim.ChangeSet, error) {
	m := c.regs
	cy := otsim.NewCycle(bank)

	mode := cy.Reg(otsim.HoldingRegisters, m.Mode)
	if mode != c.lastMode {
		c.logger.Info("mode changed", "from", c.lastMode, "to", mode)
		c.lastMode = mode
	}

	if cy.Bit(otsim.Coils, m.EmergencyStop) {
		cy.SetReg(otsim.InputRegisters, m.PumpVoltage, "Pump Voltage", 0)
		cy.SetReg(otsim.InputRegisters, m.FanRPM, "Fan RPM", 0)
		cy.SetReg(otsim.InputRegisters, m.HeaterPower, "Heater Power", 0)
		c.logger.Warn("emergency stop active, pump, fan and heater off")
		return cy.Changes(), cy.Err()
	}

	if mode == ModeIdle {
		return cy.Changes(), cy.Err()
	}

	cy.SetBit(otsim.Coils, m.Pump, "Pump", true)

	temp := cy.Reg(otsim.InputRegisters, m.Temperature)
	press := cy.Reg(otsim.InputRegisters, m.Pressure)

	switch mode {
	case ModeManual:
		c.manual(cy)
	case ModeAuto:
		c.auto(cy, temp, press)
	}

	alarm := temp > cy.Reg(otsim.HoldingRegisters, m.AlarmTemp) ||
		press > cy.Reg(otsim.HoldingRegisters, m.AlarmPressure)
	cy.SetBit(otsim.Coils, m.Alarm, "Alarm", alarm)

	fanOn := cy.Reg(otsim.InputRegisters, m.FanRPM) > 0
	cy.SetBit(otsim.Coils, m.Fan, "Fan", fanOn)

	return cy.Changes(), cy.Err()
}

// manual applies a pending operator delta to the pump voltage. The delta is
// single-shot: it is reset to zero in the same cycle it is consumed.
func (c *Controller) manual(cy *otsim.Cycle) {
	m := c.regs
	if m.PumpDelta == otsim.Unmapped {
		return
	}
	delta := otsim.Signed(uint16(cy.Reg(otsim.HoldingRegisters, m.PumpDelta)))
	if delta == 0 {
		return
	}
	pv := cy.Reg(otsim.InputRegisters, m.PumpVoltage)
	cy.SetReg(otsim.InputRegisters, m.PumpVoltage, "Pump Voltage",
		otsim.Clamp(pv+delta, 0, maxVoltage))
	cy.SetReg(otsim.HoldingRegisters, m.PumpDelta, "Pump Delta", 0)
}

func (c *Controller) auto(cy *otsim.Cycle, temp, press int) {
	m := c.regs

	// Pump setpoint: compensate the temperature penalty on throughput. A
	// penalty of one or more would divide by zero or invert the sign, so the
	// setpoint falls back to the maximum voltage instead.
	throughput := cy.Reg(otsim.InputRegisters, m.Throughput)
	var required int
	if throughput < 20 {
		required = lowFlowVoltage
	} else {
		penalty := float64(temp-70) / 100
		if penalty < 0 {
			penalty = 0
		}
		if penalty >= 1 {
			required = maxVoltage
		} else {
			required = int(targetThroughput / (1 - penalty))
		}
	}
	cy.SetReg(otsim.InputRegisters, m.PumpVoltage, "Pump Voltage",
		otsim.Clamp(required, voltageFloor, maxVoltage))

	// Fan: proportional to the temperature error, rate-limited per cycle.
	target := cy.Reg(otsim.HoldingRegisters, m.TargetTemp)
	rpm := cy.Reg(otsim.InputRegisters, m.FanRPM)
	drpm := otsim.Clamp(int(float64(temp-target)*fanGain), -fanRateLimit, fanRateLimit)
	cy.SetReg(otsim.InputRegisters, m.FanRPM, "Fan RPM",
		otsim.Clamp(rpm+drpm, 0, maxFanRPM))

	// Heater: hysteresis band around the target; between the thresholds the
	// previous state holds.
	if m.HeaterPower != otsim.Unmapped {
		if temp < target-1 {
			power := otsim.Clamp((target-temp)*heaterGain, 0, maxHeaterPower)
			cy.SetBit(otsim.Coils, m.Heating, "Heating", true)
			cy.SetReg(otsim.InputRegisters, m.HeaterPower, "Heater Power", power)
		} else if temp > target+2 {
			cy.SetBit(otsim.Coils, m.Heating, "Heating", false)
			cy.SetReg(otsim.InputRegisters, m.HeaterPower, "Heater Power", 0)
		}
	}

	// Relief valve: open above the threshold and bleed pressure each cycle
	// while open.
	if m.ReliefValve != otsim.Unmapped {
		if press > cy.Reg(otsim.HoldingRegisters, m.ReliefThreshold) {
			bleed := cy.Reg(otsim.HoldingRegisters, m.BleedRate)
			cy.SetBit(otsim.Coils, m.ReliefValve, "Relief Valve", true)
			cy.SetReg(otsim.InputRegisters, m.Pressure, "Pressure",
				otsim.Clamp(press-bleed, 0, reliefCeiling))
		} else {
			cy.SetBit(otsim.Coils, m.ReliefValve, "Relief Valve", false)
		}
	}
}
