package modbus

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/rwirdemann/otsim"
)

// Word is a 16-bit register read result. Known is false when the gateway
// could not be reached and the value carries no information; zero remains a
// legitimate value.
type Word struct {
	Value uint16
	Known bool
}

func (w Word) String() string {
	if !w.Known {
		return "unknown"
	}
	return fmt.Sprintf("%d", w.Value)
}

// Bit is a coil or discrete input read result.
type Bit struct {
	Value bool
	Known bool
}

func (b Bit) String() string {
	switch {
	case !b.Known:
		return "unknown"
	case b.Value:
		return "ON"
	}
	return "OFF"
}

// Adapter wraps a Modbus TCP client with the read/write surface the operator
// tools need. Reads degrade every slot to unknown on error instead of
// failing; failed writes are logged and counted while the caller's loop
// continues.
type Adapter struct {
	client       *modbus.ModbusClient
	logger       *slog.Logger
	failedWrites atomic.Int64
}

func NewAdapter(url string, timeout time.Duration, logger *slog.Logger) (*Adapter, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("new modbus client: %w", err)
	}
	return &Adapter{client: client, logger: logger}, nil
}

// Open connects to the gateway. Callers typically retry until it succeeds.
func (a *Adapter) Open() error {
	if err := a.client.Open(); err != nil {
		return fmt.Errorf("connect modbus gateway: %w", err)
	}
	return nil
}

func (a *Adapter) Close() {
	_ = a.client.Close()
}

// GetBits reads count bits from a bit space.
func (a *Adapter) GetBits(space otsim.Space, start, count uint16) []Bit {
	var (
		values []bool
		err    error
	)
	switch space {
	case otsim.Coils:
		values, err = a.client.ReadCoils(start, count)
	case otsim.DiscreteInputs:
		values, err = a.client.ReadDiscreteInputs(start, count)
	default:
		err = fmt.Errorf("%s is not a bit space", space)
	}
	bits := make([]Bit, count)
	if err != nil || len(values) < int(count) {
		return bits
	}
	for i := range bits {
		bits[i] = Bit{Value: values[i], Known: true}
	}
	return bits
}

// GetValues reads count 16-bit values from a register space.
func (a *Adapter) GetValues(space otsim.Space, start, count uint16) []Word {
	var regType modbus.RegType
	switch space {
	case otsim.InputRegisters:
		regType = modbus.INPUT_REGISTER
	case otsim.HoldingRegisters:
		regType = modbus.HOLDING_REGISTER
	default:
		return make([]Word, count)
	}
	values, err := a.client.ReadRegisters(start, count, regType)
	words := make([]Word, count)
	if err != nil || len(values) < int(count) {
		return words
	}
	for i := range words {
		words[i] = Word{Value: values[i], Known: true}
	}
	return words
}

// SetValue writes one holding register.
func (a *Adapter) SetValue(address uint16, value uint16) error {
	if err := a.client.WriteRegister(address, value); err != nil {
		a.failedWrites.Add(1)
		a.logger.Warn("holding register write failed",
			"addr", address, "value", value, "err", err)
		return fmt.Errorf("write holding register %d: %w", address, err)
	}
	return nil
}

// SetBit writes one coil.
func (a *Adapter) SetBit(address uint16, value bool) error {
	if err := a.client.WriteCoil(address, value); err != nil {
		a.failedWrites.Add(1)
		a.logger.Warn("coil write failed",
			"addr", address, "value", value, "err", err)
		return fmt.Errorf("write coil %d: %w", address, err)
	}
	return nil
}

// FailedWrites reports how many writes have errored since the adapter was created.
func (a *Adapter) FailedWrites() int64 {
	return a.failedWrites.Load()
}
