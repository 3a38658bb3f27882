package otsim

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	bank := NewBank()
	DefaultSnapshot().Apply(bank, Spaces...)
	regs := StandardMap()
	projection := regs.Projection()

	store := Store{Path: filepath.Join(t.TempDir(), "sensors.tmp")}
	require.NoError(t, store.Save(bank, projection))

	loaded, err := store.Load()
	require.NoError(t, err)

	other := NewBank()
	loaded.Apply(other, Spaces...)

	for space, addrs := range projection {
		for _, addr := range addrs {
			switch space {
			case Coils, DiscreteInputs:
				want, _ := bank.ReadBit(space, addr)
				got, _ := other.ReadBit(space, addr)
				assert.Equal(t, want, got, "%s[%d]", space, addr)
			default:
				want, _ := bank.ReadRegister(space, addr)
				got, _ := other.ReadRegister(space, addr)
				assert.Equal(t, want, got, "%s[%d]", space, addr)
			}
		}
	}
}

func TestLoadStripsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.tmp")
	content := `{
  "coils": {
    "0": 1,    # Pump ON
    "4": 0     # Emergency Stop OFF
  },
  # a full-line comment
  "discrete_inputs": {"0": true},
  "input_registers": {
    "1": 55    # Temperature
  },
  "holding_registers": {"4": 1}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	snap, err := Store{Path: path}.Load()
	require.NoError(t, err)
	assert.Equal(t, BitValue(true), snap.Coils["0"])
	assert.Equal(t, BitValue(false), snap.Coils["4"])
	assert.Equal(t, BitValue(true), snap.DiscreteInputs["0"])
	assert.Equal(t, uint16(55), snap.InputRegisters["1"])
	assert.Equal(t, uint16(1), snap.HoldingRegisters["4"])
}

func TestLoadNotFound(t *testing.T) {
	store := Store{Path: filepath.Join(t.TempDir(), "missing.tmp")}
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.tmp")
	require.NoError(t, os.WriteFile(path, []byte("{ not json"), 0o644))

	_, err := Store{Path: path}.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestApplySkipsMalformedEntries(t *testing.T) {
	bank := NewBank()
	snap := Snapshot{
		InputRegisters: map[string]uint16{
			"1":    55,
			"oops": 1,
			"999":  2, // out of range
		},
	}
	snap.Apply(bank, InputRegisters)

	v, err := bank.ReadRegister(InputRegisters, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(55), v)
}

// Concurrent saves and loads on the same path must never surface a partial
// file to a reader; the atomic replace is the only guarantee the processes
// share.
func TestConcurrentSaveLoad(t *testing.T) {
	store := Store{Path: filepath.Join(t.TempDir(), "sensors.tmp")}

	bank := NewBank()
	DefaultSnapshot().Apply(bank, Spaces...)
	projection := StandardMap().Projection()
	require.NoError(t, store.Save(bank, projection))

	const iterations = 500
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = bank.WriteRegister(InputRegisters, 1, uint16(30+i%120))
			assert.NoError(t, store.Save(bank, projection))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_, err := store.Load()
			assert.NoError(t, err)
		}
	}()
	wg.Wait()
}
