package otsim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Load when the snapshot file does not exist yet.
// It is recoverable: another process creates the file on its own schedule and
// callers retry on the next cycle.
var ErrNotFound = errors.New("snapshot file not found")

// BitValue is a coil or discrete input value in a snapshot file. It accepts
// both 0/1 and true/false on load and marshals as a boolean.
type BitValue bool

func (b *BitValue) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid bit value %q", string(data))
	}
	return nil
}

// Snapshot is a serializable projection of bank slots, keyed by space name
// and stringified address. It is the only state shared between the simulator
// processes.
type Snapshot struct {
	Coils            map[string]BitValue `json:"coils"`
	DiscreteInputs   map[string]BitValue `json:"discrete_inputs"`
	InputRegisters   map[string]uint16   `json:"input_registers"`
	HoldingRegisters map[string]uint16   `json:"holding_registers"`
}

// Apply writes the snapshot's slots for the given spaces into the bank.
// Malformed keys and out-of-range addresses are skipped, matching the
// tolerant parse of the snapshot format.
func (s Snapshot) Apply(bank *Bank, spaces ...Space) {
	for _, space := range spaces {
		switch space {
		case Coils, DiscreteInputs:
			bits := s.Coils
			if space == DiscreteInputs {
				bits = s.DiscreteInputs
			}
			for key, value := range bits {
				addr, err := strconv.Atoi(key)
				if err != nil || addr < 0 || addr >= SpaceSize {
					continue
				}
				_ = bank.WriteBit(space, uint16(addr), bool(value))
			}
		case InputRegisters, HoldingRegisters:
			regs := s.InputRegisters
			if space == HoldingRegisters {
				regs = s.HoldingRegisters
			}
			for key, value := range regs {
				addr, err := strconv.Atoi(key)
				if err != nil || addr < 0 || addr >= SpaceSize {
					continue
				}
				_ = bank.WriteRegister(space, uint16(addr), value)
			}
		}
	}
}

// Projection selects the bank slots a Save serializes, per space.
type Projection map[Space][]uint16

// Project builds a snapshot of the projected bank slots.
func Project(bank *Bank, projection Projection) Snapshot {
	snap := Snapshot{
		Coils:            map[string]BitValue{},
		DiscreteInputs:   map[string]BitValue{},
		InputRegisters:   map[string]uint16{},
		HoldingRegisters: map[string]uint16{},
	}
	for space, addrs := range projection {
		for _, addr := range addrs {
			key := strconv.Itoa(int(addr))
			switch space {
			case Coils, DiscreteInputs:
				v, err := bank.ReadBit(space, addr)
				if err != nil {
					continue
				}
				if space == Coils {
					snap.Coils[key] = BitValue(v)
				} else {
					snap.DiscreteInputs[key] = BitValue(v)
				}
			case InputRegisters, HoldingRegisters:
				v, err := bank.ReadRegister(space, addr)
				if err != nil {
					continue
				}
				if space == InputRegisters {
					snap.InputRegisters[key] = v
				} else {
					snap.HoldingRegisters[key] = v
				}
			}
		}
	}
	return snap
}

// Store reads and writes the shared snapshot file. Multiple processes use
// independent Stores on the same path on independent timers with no
// cross-process lock: Save is an atomic replace, the last writer wins per
// call, and every Load may return stale data.
type Store struct {
	Path string
}

// Load parses the snapshot file, stripping #-to-end-of-line comments first.
func (s Store) Load() (Snapshot, error) {
	bb, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("%s: %w", s.Path, ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(StripComments(bb), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot %s: %w", s.Path, err)
	}
	return snap, nil
}

// Save serializes the projected bank slots and atomically replaces the
// snapshot file. A concurrent reader never observes a partial write.
func (s Store) Save(bank *Bank, projection Projection) error {
	return s.Write(Project(bank, projection))
}

// Write atomically replaces the snapshot file with the given snapshot.
func (s Store) Write(snap Snapshot) error {
	bb, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	bb = append(bb, '\n')

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(bb); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

var commentPattern = regexp.MustCompile(`#.*$`)

// StripComments removes #-to-end-of-line comments and blank lines so snapshot
// and configuration files may carry inline annotations.
func StripComments(bb []byte) []byte {
	var clean []string
	for _, line := range strings.Split(string(bb), "\n") {
		line = strings.TrimSpace(commentPattern.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		clean = append(clean, line)
	}
	return []byte(strings.Join(clean, "\n"))
}

// DefaultSnapshot returns the compiled-in initial plant state used to create
// the snapshot file when no other process has written one yet.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Coils: map[string]BitValue{
			"0": true,  // pump on
			"1": false, // alarm off
			"2": true,  // fan on
			"3": false, // heating off
			"4": false, // emergency stop off
			"5": false, // relief valve closed
		},
		DiscreteInputs: map[string]BitValue{
			"0": true, // door closed
			"1": true, // safety ok
			"2": true, // fan active
			"3": false,
		},
		InputRegisters: map[string]uint16{
			"0": 250, // pump voltage
			"1": 55,  // temperature
			"2": 900, // pressure
			"3": 100, // throughput
			"4": 250, // fan rpm
			"5": 0,   // heater power
		},
		HoldingRegisters: map[string]uint16{
			"0": 55,   // target temperature
			"1": 900,  // target pressure
			"2": 75,   // alarm temp threshold
			"3": 1100, // alarm pressure threshold
			"4": 1,    // mode: auto
			"5": 0,    // pump delta
			"6": 1300, // relief threshold
			"7": 15,   // bleed rate
		},
	}
}
