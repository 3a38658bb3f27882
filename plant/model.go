// Package plant simulates the physical process behind the register bank: it
// reads the current actuator state and advances the sensor registers one tick
// per cycle using deterministic transfer functions.
package plant

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/rwirdemann/otsim"
)

const (
	minThroughput = 20
	maxThroughput = 1000
	minTemp       = 30
	maxTemp       = 150
)

// Model advances the simulated plant. Aggressiveness scales every transfer
// function: 1.0 is nominal, below is more stable, above more volatile.
type Model struct {
	regs           otsim.RegisterMap
	aggressiveness float64
	logger         *slog.Logger
	rand           *rand.Rand
}

func New(regs otsim.RegisterMap, aggressiveness float64, logger *slog.Logger) *Model {
	return &Model{
		regs:           regs,
		aggressiveness: aggressiveness,
		logger:         logger,
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the noise source, for deterministic runs.
func (p *Model) WithRand(r *rand.Rand) *Model {
	p.rand = r
	return p
}

// Step advances throughput, pressure and temperature by one tick and mirrors
// the actuator coils into the bit sensors. Only slots whose value actually
// changed are rewritten.
func (p *Model) Step(bank *otsim.Bank) (otsim.ChangeSet, error) {
	m := p.regs
	cy := otsim.NewCycle(bank)
	ag := p.aggressiveness

	pumpVoltage := cy.Reg(otsim.InputRegisters, m.PumpVoltage)
	temp := cy.Reg(otsim.InputRegisters, m.Temperature)
	press := cy.Reg(otsim.InputRegisters, m.Pressure)
	throughput := cy.Reg(otsim.InputRegisters, m.Throughput)
	fanRPM := cy.Reg(otsim.InputRegisters, m.FanRPM)
	heaterPower := cy.Reg(otsim.InputRegisters, m.HeaterPower)

	fanOn := cy.Bit(otsim.Coils, m.Fan)
	heaterOn := cy.Bit(otsim.Coils, m.Heating)
	valveOpen := cy.Bit(otsim.Coils, m.ReliefValve)

	// Throughput follows the pump voltage, penalized above 70 degrees.
	maxFlow := otsim.Clamp(pumpVoltage, 0, maxThroughput)
	penalty := math.Max(0, float64(temp-70)/100)
	rawFlow := float64(maxFlow) * (1 - penalty)
	newThroughput := otsim.Clamp(int(math.Max(rawFlow, minThroughput)), minThroughput, maxThroughput)
	newThroughput = int(float64(newThroughput) * ag)

	// Pressure: inflow from the new throughput against losses from the prior
	// one, bled by the relief valve while it is open.
	pressureInput := math.Pow(float64(newThroughput)/100, 1.2) * 10
	pressureLoss := math.Pow(float64(throughput)/120, 1.1) * 7
	newPressure := float64(press) + (pressureInput-pressureLoss)*ag
	if valveOpen && press > cy.Reg(otsim.HoldingRegisters, m.ReliefThreshold) {
		bleed := cy.Reg(otsim.HoldingRegisters, m.BleedRate)
		newPressure -= float64(bleed)
		p.logger.Info("relief valve open, bleeding pressure",
			"rate", bleed, "pressure", press)
	}
	pressureValue := otsim.Clamp(int(newPressure), m.PressureMin, m.PressureMax)

	// Temperature balance: pump friction, compression above 800, heater, fan.
	heatFromPump := math.Pow(float64(pumpVoltage)/1000, 1.5) * 25
	var heatFromPressure float64
	if press > 800 {
		heatFromPressure = math.Pow(float64(press-800)/400, 2) * 20
	}
	var heatFromHeater float64
	if heaterOn {
		heatFromHeater = math.Pow(float64(heaterPower)/200, 1.2) * 40
	}
	var coolingFromFan float64
	if fanOn {
		coolingFromFan = math.Pow(float64(fanRPM)/300, 1.4) * 60
	}
	tempDelta := (heatFromPump + heatFromPressure + heatFromHeater - coolingFromFan) * ag
	noise := p.rand.Float64()*2 - 1
	tempValue := otsim.Clamp(int(float64(temp)+tempDelta+noise), minTemp, maxTemp)

	cy.SetReg(otsim.InputRegisters, m.Throughput, "Throughput", newThroughput)
	cy.SetReg(otsim.InputRegisters, m.Pressure, "Pressure", pressureValue)
	cy.SetReg(otsim.InputRegisters, m.Temperature, "Temperature", tempValue)

	// Bit sensor feedback for the operator view.
	cy.SetBit(otsim.DiscreteInputs, m.FanActive, "Fan Active", fanOn && fanRPM > 0)
	cy.SetBit(otsim.DiscreteInputs, m.HeatingActive, "Heating Active", heaterOn)

	return cy.Changes(), cy.Err()
}
