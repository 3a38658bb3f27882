package plant

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwirdemann/otsim"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newBank(t *testing.T) *otsim.Bank {
	t.Helper()
	bank := otsim.NewBank()
	otsim.DefaultSnapshot().Apply(bank, otsim.Spaces...)
	return bank
}

func newModel(regs otsim.RegisterMap, aggressiveness float64, seed int64) *Model {
	return New(regs, aggressiveness, discard).WithRand(rand.New(rand.NewSource(seed)))
}

func reg(t *testing.T, bank *otsim.Bank, addr int) int {
	t.Helper()
	v, err := bank.ReadRegister(otsim.InputRegisters, uint16(addr))
	require.NoError(t, err)
	return int(v)
}

func TestStepThroughputFollowsPumpVoltage(t *testing.T) {
	regs := otsim.StandardMap()
	bank := newBank(t)
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 400))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Temperature), 55))

	_, err := newModel(regs, 1.0, 1).Step(bank)
	require.NoError(t, err)

	// no temperature penalty below 70 degrees
	assert.Equal(t, 400, reg(t, bank, regs.Throughput))
}

func TestStepThroughputTemperaturePenalty(t *testing.T) {
	regs := otsim.StandardMap()
	bank := newBank(t)
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 400))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Temperature), 120))

	_, err := newModel(regs, 1.0, 1).Step(bank)
	require.NoError(t, err)

	// penalty (120-70)/100 halves the flow
	assert.Equal(t, 200, reg(t, bank, regs.Throughput))
}

func TestStepAggressivenessScalesThroughput(t *testing.T) {
	regs := otsim.StandardMap()
	bank := newBank(t)
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 400))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Temperature), 55))

	_, err := newModel(regs, 0.5, 1).Step(bank)
	require.NoError(t, err)

	assert.Equal(t, 200, reg(t, bank, regs.Throughput))
}

func TestStepReliefValveBleedsBeyondOrdinaryDelta(t *testing.T) {
	regs := otsim.StandardMap()
	seed := int64(7)

	run := func(valveOpen bool) int {
		bank := newBank(t)
		require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 0))
		require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Pressure), 1350))
		require.NoError(t, bank.WriteRegister(otsim.HoldingRegisters, uint16(regs.ReliefThreshold), 1300))
		require.NoError(t, bank.WriteRegister(otsim.HoldingRegisters, uint16(regs.BleedRate), 15))
		require.NoError(t, bank.WriteBit(otsim.Coils, uint16(regs.ReliefValve), valveOpen))

		_, err := newModel(regs, 1.0, seed).Step(bank)
		require.NoError(t, err)
		return reg(t, bank, regs.Pressure)
	}

	closed := run(false)
	open := run(true)
	assert.Equal(t, closed-15, open)
	assert.LessOrEqual(t, open, 1400)
	assert.GreaterOrEqual(t, open, 600)
}

func TestStepPressureClampedToBand(t *testing.T) {
	regs := otsim.StandardMap()
	bank := newBank(t)
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Pressure), 1399))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 1000))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Throughput), 20))

	_, err := newModel(regs, 1.0, 1).Step(bank)
	require.NoError(t, err)

	assert.Equal(t, 1400, reg(t, bank, regs.Pressure))
}

func TestStepTemperatureClampedToBand(t *testing.T) {
	regs := otsim.StandardMap()
	bank := newBank(t)
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Temperature), 149))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Pressure), 1400))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 1000))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.HeaterPower), 300))
	require.NoError(t, bank.WriteBit(otsim.Coils, uint16(regs.Heating), true))
	require.NoError(t, bank.WriteBit(otsim.Coils, uint16(regs.Fan), false))

	_, err := newModel(regs, 1.0, 1).Step(bank)
	require.NoError(t, err)

	assert.Equal(t, 150, reg(t, bank, regs.Temperature))
}

func TestStepMirrorsActuatorsIntoBitSensors(t *testing.T) {
	regs := otsim.StandardMap()
	bank := newBank(t)
	require.NoError(t, bank.WriteBit(otsim.Coils, uint16(regs.Fan), true))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.FanRPM), 300))
	require.NoError(t, bank.WriteBit(otsim.Coils, uint16(regs.Heating), true))
	require.NoError(t, bank.WriteBit(otsim.DiscreteInputs, uint16(regs.FanActive), false))

	_, err := newModel(regs, 1.0, 1).Step(bank)
	require.NoError(t, err)

	fanActive, err := bank.ReadBit(otsim.DiscreteInputs, uint16(regs.FanActive))
	require.NoError(t, err)
	assert.True(t, fanActive)

	heatingActive, err := bank.ReadBit(otsim.DiscreteInputs, uint16(regs.HeatingActive))
	require.NoError(t, err)
	assert.True(t, heatingActive)
}

func TestStepCompactScenarioUsesWidePressureBand(t *testing.T) {
	regs := otsim.CompactMap()
	bank := otsim.NewBank()
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.PumpVoltage), 1000))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Temperature), 55))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Pressure), 1500))
	require.NoError(t, bank.WriteRegister(otsim.InputRegisters, uint16(regs.Throughput), 20))

	_, err := newModel(regs, 1.0, 1).Step(bank)
	require.NoError(t, err)

	// above the standard band's ceiling but legal in the compact scenario
	assert.Greater(t, reg(t, bank, regs.Pressure), 1400)
	assert.LessOrEqual(t, reg(t, bank, regs.Pressure), 1600)
}
