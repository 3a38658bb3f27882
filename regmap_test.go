package otsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectionKeepsModeInternal(t *testing.T) {
	regs := StandardMap()
	p := regs.Projection()

	assert.NotContains(t, p[HoldingRegisters], uint16(regs.Mode))
	assert.Contains(t, p[HoldingRegisters], uint16(regs.TargetTemp))
	assert.Contains(t, p[Coils], uint16(regs.EmergencyStop))
	assert.Contains(t, p[InputRegisters], uint16(regs.Temperature))
}

func TestCompactMapOmitsOptionalSlots(t *testing.T) {
	regs := CompactMap()

	labels := regs.Labels(Coils)
	for _, l := range labels {
		assert.NotEqual(t, "Heating", l)
		assert.NotEqual(t, "Relief Valve", l)
	}
	assert.NotContains(t, regs.MappedSlots(InputRegisters), uint16(5))
	assert.Equal(t, Unmapped, regs.PumpDelta)
	assert.Equal(t, 200, regs.PressureMin)
	assert.Equal(t, 1600, regs.PressureMax)
}

func TestMapByName(t *testing.T) {
	assert.Equal(t, "compact", MapByName("compact").Name)
	assert.Equal(t, "standard", MapByName("").Name)
	assert.Equal(t, "standard", MapByName("standard").Name)
}
