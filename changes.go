package otsim

import "log/slog"

// Change records one register transition applied during a cycle.
type Change struct {
	Space Space
	Addr  uint16
	Label string
	Old   int
	New   int
}

// ChangeSet is the list of registers a single cycle actually changed. An
// empty set means the cycle was a no-op and the snapshot file needs no rewrite.
type ChangeSet []Change

func (cs ChangeSet) Log(logger *slog.Logger) {
	for _, c := range cs {
		logger.Info("register changed",
			"what", c.Label, "space", c.Space.String(), "addr", c.Addr,
			"old", c.Old, "new", c.New)
	}
}

// Cycle is one control or plant pass over a bank: plain reads plus labeled
// delta-only writes. A write that does not change the stored value is
// dropped. The first bank error sticks and turns later calls into no-ops;
// slots marked Unmapped read as zero and are never written.
type Cycle struct {
	bank    *Bank
	changes ChangeSet
	err     error
}

func NewCycle(bank *Bank) *Cycle {
	return &Cycle{bank: bank}
}

func (c *Cycle) Reg(space Space, slot int) int {
	if c.err != nil || slot == Unmapped {
		return 0
	}
	v, err := c.bank.ReadRegister(space, uint16(slot))
	if err != nil {
		c.err = err
		return 0
	}
	return int(v)
}

func (c *Cycle) Bit(space Space, slot int) bool {
	if c.err != nil || slot == Unmapped {
		return false
	}
	v, err := c.bank.ReadBit(space, uint16(slot))
	if err != nil {
		c.err = err
		return false
	}
	return v
}

func (c *Cycle) SetReg(space Space, slot int, label string, value int) {
	if c.err != nil || slot == Unmapped {
		return
	}
	old, err := c.bank.ReadRegister(space, uint16(slot))
	if err != nil {
		c.err = err
		return
	}
	v := uint16(value)
	if old == v {
		return
	}
	if err := c.bank.WriteRegister(space, uint16(slot), v); err != nil {
		c.err = err
		return
	}
	c.changes = append(c.changes, Change{Space: space, Addr: uint16(slot), Label: label, Old: int(old), New: int(v)})
}

func (c *Cycle) SetBit(space Space, slot int, label string, value bool) {
	if c.err != nil || slot == Unmapped {
		return
	}
	old, err := c.bank.ReadBit(space, uint16(slot))
	if err != nil {
		c.err = err
		return
	}
	if old == value {
		return
	}
	if err := c.bank.WriteBit(space, uint16(slot), value); err != nil {
		c.err = err
		return
	}
	c.changes = append(c.changes, Change{Space: space, Addr: uint16(slot), Label: label, Old: bitInt(old), New: bitInt(value)})
}

func (c *Cycle) Changes() ChangeSet { return c.changes }

func (c *Cycle) Err() error { return c.err }

func bitInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
