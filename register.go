package otsim

import (
	"errors"
	"fmt"
	"sync"
)

// Space identifies one of the four modbus register spaces of a device.
type Space int

const (
	Coils Space = iota
	DiscreteInputs
	InputRegisters
	HoldingRegisters
)

func (s Space) String() string {
	switch s {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete_inputs"
	case InputRegisters:
		return "input_registers"
	case HoldingRegisters:
		return "holding_registers"
	}
	return fmt.Sprintf("space(%d)", int(s))
}

// Spaces lists all register spaces in snapshot order.
var Spaces = []Space{Coils, DiscreteInputs, InputRegisters, HoldingRegisters}

// SpaceSize is the fixed length of every register space.
const SpaceSize = 100

// ErrOutOfRange is returned when a register address exceeds the space length.
// It is the only non-recoverable bank error; value range is never checked,
// callers clamp values before writing.
var ErrOutOfRange = errors.New("register address out of range")

// Bank is the in-memory register store of one simulated device and the sole
// source of truth for its state. It is safe for concurrent use; the gateway
// serves the same bank from its connection goroutines while the control loop
// mutates it.
type Bank struct {
	mu       sync.RWMutex
	coils    [SpaceSize]bool
	discrete [SpaceSize]bool
	input    [SpaceSize]uint16
	holding  [SpaceSize]uint16
}

func NewBank() *Bank {
	return &Bank{}
}

// ReadBits reads count bits starting at start from a bit space.
func (b *Bank) ReadBits(space Space, start, count uint16) ([]bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if int(start)+int(count) > SpaceSize {
		return nil, fmt.Errorf("%s[%d..%d]: %w", space, start, start+count-1, ErrOutOfRange)
	}
	var src *[SpaceSize]bool
	switch space {
	case Coils:
		src = &b.coils
	case DiscreteInputs:
		src = &b.discrete
	default:
		return nil, fmt.Errorf("%s is not a bit space", space)
	}
	out := make([]bool, count)
	copy(out, src[start:int(start)+int(count)])
	return out, nil
}

// ReadRegisters reads count 16-bit values starting at start from a register space.
func (b *Bank) ReadRegisters(space Space, start, count uint16) ([]uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if int(start)+int(count) > SpaceSize {
		return nil, fmt.Errorf("%s[%d..%d]: %w", space, start, start+count-1, ErrOutOfRange)
	}
	var src *[SpaceSize]uint16
	switch space {
	case InputRegisters:
		src = &b.input
	case HoldingRegisters:
		src = &b.holding
	default:
		return nil, fmt.Errorf("%s is not a register space", space)
	}
	out := make([]uint16, count)
	copy(out, src[start:int(start)+int(count)])
	return out, nil
}

func (b *Bank) ReadBit(space Space, address uint16) (bool, error) {
	bits, err := b.ReadBits(space, address, 1)
	if err != nil {
		return false, err
	}
	return bits[0], nil
}

func (b *Bank) ReadRegister(space Space, address uint16) (uint16, error) {
	regs, err := b.ReadRegisters(space, address, 1)
	if err != nil {
		return 0, err
	}
	return regs[0], nil
}

// WriteBit sets a single bit. Fails with ErrOutOfRange when the address
// exceeds the space length.
func (b *Bank) WriteBit(space Space, address uint16, value bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if address >= SpaceSize {
		return fmt.Errorf("%s[%d]: %w", space, address, ErrOutOfRange)
	}
	switch space {
	case Coils:
		b.coils[address] = value
	case DiscreteInputs:
		b.discrete[address] = value
	default:
		return fmt.Errorf("%s is not a bit space", space)
	}
	return nil
}

// WriteRegister sets a single 16-bit value. Value range is never rejected.
func (b *Bank) WriteRegister(space Space, address uint16, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if address >= SpaceSize {
		return fmt.Errorf("%s[%d]: %w", space, address, ErrOutOfRange)
	}
	switch space {
	case InputRegisters:
		b.input[address] = value
	case HoldingRegisters:
		b.holding[address] = value
	default:
		return fmt.Errorf("%s is not a register space", space)
	}
	return nil
}

// Signed interprets a register value as two's-complement 16-bit. Used for the
// pump delta slot, which operators write as a signed adjustment.
func Signed(v uint16) int {
	if v >= 0x8000 {
		return int(v) - 0x10000
	}
	return int(v)
}

// Unsigned encodes a signed value into its 16-bit two's-complement register form.
func Unsigned(v int) uint16 {
	return uint16(v & 0xFFFF)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
