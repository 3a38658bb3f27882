// Package modbus connects the register bank to the wire: a TCP server
// mirroring the bank for remote operators and a client adapter for the
// operator tools.
package modbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/rwirdemann/otsim"
)

// Gateway exposes a register bank over Modbus TCP. Units can be taken
// offline, in which case their requests time out like a dead device.
type Gateway struct {
	bank   *otsim.Bank
	logger *slog.Logger
	server *modbus.ModbusServer

	mu     sync.Mutex
	online map[uint8]bool
}

func NewGateway(url string, unitID uint8, bank *otsim.Bank, logger *slog.Logger) (*Gateway, error) {
	g := &Gateway{
		bank:   bank,
		logger: logger,
		online: map[uint8]bool{unitID: true},
	}
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    30 * time.Second,
		MaxClients: 5,
	}, g)
	if err != nil {
		return nil, fmt.Errorf("new modbus server: %w", err)
	}
	g.server = server
	return g, nil
}

func (g *Gateway) Start() error {
	return g.server.Start()
}

func (g *Gateway) Stop() error {
	return g.server.Stop()
}

// Connect marks a unit as reachable.
func (g *Gateway) Connect(unitID uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.online[unitID] = true
}

// Disconnect makes the unit stop answering, simulating a dead device.
func (g *Gateway) Disconnect(unitID uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.online[unitID] = false
}

func (g *Gateway) isOnline(unitID uint8) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online[unitID]
}

// HandleCoils serves coil reads and writes from the bank.
func (g *Gateway) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	if !g.isOnline(req.UnitId) {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	if req.IsWrite {
		for i := uint16(0); i < req.Quantity; i++ {
			if err := g.bank.WriteBit(otsim.Coils, req.Addr+i, req.Args[i]); err != nil {
				return nil, modbus.ErrIllegalDataAddress
			}
			g.logger.Info("coil written",
				"client", req.ClientAddr, "addr", req.Addr+i, "value", req.Args[i])
		}
		return nil, nil
	}
	res, err := g.bank.ReadBits(otsim.Coils, req.Addr, req.Quantity)
	if err != nil {
		return nil, modbus.ErrIllegalDataAddress
	}
	return res, nil
}

// HandleDiscreteInputs serves discrete input reads; the protocol has no write
// function code for them.
func (g *Gateway) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	if !g.isOnline(req.UnitId) {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	res, err := g.bank.ReadBits(otsim.DiscreteInputs, req.Addr, req.Quantity)
	if err != nil {
		return nil, modbus.ErrIllegalDataAddress
	}
	return res, nil
}

// HandleHoldingRegisters serves holding register reads and writes.
func (g *Gateway) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if !g.isOnline(req.UnitId) {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	if req.IsWrite {
		for i := uint16(0); i < req.Quantity; i++ {
			if err := g.bank.WriteRegister(otsim.HoldingRegisters, req.Addr+i, req.Args[i]); err != nil {
				return nil, modbus.ErrIllegalDataAddress
			}
			g.logger.Info("holding register written",
				"client", req.ClientAddr, "addr", req.Addr+i, "value", req.Args[i])
		}
		return nil, nil
	}
	res, err := g.bank.ReadRegisters(otsim.HoldingRegisters, req.Addr, req.Quantity)
	if err != nil {
		return nil, modbus.ErrIllegalDataAddress
	}
	return res, nil
}

// HandleInputRegisters serves input register reads; read-only on the wire.
func (g *Gateway) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	if !g.isOnline(req.UnitId) {
		return nil, modbus.ErrGWTargetFailedToRespond
	}
	res, err := g.bank.ReadRegisters(otsim.InputRegisters, req.Addr, req.Quantity)
	if err != nil {
		return nil, modbus.ErrIllegalDataAddress
	}
	return res, nil
}
