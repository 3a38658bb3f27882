package otsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankReadWrite(t *testing.T) {
	bank := NewBank()

	require.NoError(t, bank.WriteRegister(InputRegisters, 0, 250))
	require.NoError(t, bank.WriteRegister(HoldingRegisters, 4, 1))
	require.NoError(t, bank.WriteBit(Coils, 2, true))
	require.NoError(t, bank.WriteBit(DiscreteInputs, 1, true))

	v, err := bank.ReadRegister(InputRegisters, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(250), v)

	bits, err := bank.ReadBits(Coils, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true}, bits)

	regs, err := bank.ReadRegisters(HoldingRegisters, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), regs[4])
}

func TestBankOutOfRange(t *testing.T) {
	bank := NewBank()

	err := bank.WriteRegister(HoldingRegisters, SpaceSize, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = bank.WriteBit(Coils, SpaceSize+10, true)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = bank.ReadRegisters(InputRegisters, 95, 10)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = bank.ReadBits(DiscreteInputs, SpaceSize, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// writes inside the space never fail for value range
	assert.NoError(t, bank.WriteRegister(HoldingRegisters, SpaceSize-1, 0xFFFF))
}

func TestBankSpaceKind(t *testing.T) {
	bank := NewBank()

	_, err := bank.ReadBits(HoldingRegisters, 0, 1)
	assert.Error(t, err)

	_, err = bank.ReadRegisters(Coils, 0, 1)
	assert.Error(t, err)

	assert.Error(t, bank.WriteBit(InputRegisters, 0, true))
	assert.Error(t, bank.WriteRegister(DiscreteInputs, 0, 1))
}

func TestSignedEncoding(t *testing.T) {
	assert.Equal(t, 0, Signed(0))
	assert.Equal(t, 32767, Signed(0x7FFF))
	assert.Equal(t, -32768, Signed(0x8000))
	assert.Equal(t, -1, Signed(0xFFFF))
	assert.Equal(t, -20, Signed(Unsigned(-20)))
	assert.Equal(t, uint16(0xFFEC), Unsigned(-20))
	assert.Equal(t, uint16(20), Unsigned(20))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 1000))
	assert.Equal(t, 1000, Clamp(1200, 0, 1000))
	assert.Equal(t, 42, Clamp(42, 0, 1000))
}
