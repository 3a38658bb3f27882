package otsim

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is one process section of the shared configuration file. All values
// are read-only inputs consumed at startup.
type Config struct {
	SnapshotFile   string  `json:"snapshot_file"`
	LogFile        string  `json:"log_file"`
	ListenURL      string  `json:"listen_url"`
	UnitID         uint8   `json:"unit_id"`
	StatusCycle    float64 `json:"status_cycle"`    // seconds between cycles
	LoopMultiplier int     `json:"loop_multiplier"` // controller runs every n-th cycle
	RealityCycle   float64 `json:"reality_cycle"`   // seconds between plant ticks
	Aggressiveness float64 `json:"aggressiveness"`
	MemoryView     bool    `json:"memory_view"`
	Scenario       string  `json:"scenario"`
}

// LoadConfig reads the section of a shared configuration file. The file is
// JSON with #-to-end-of-line comments permitted. A .env file in the working
// directory and OTSIM_* environment variables override file locations, so
// processes sharing one config can still be pointed at separate state in
// tests and containers.
func LoadConfig(configFile, section string) (Config, error) {
	_ = godotenv.Load()

	bb, err := os.ReadFile(configFile)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var sections map[string]Config
	if err := json.Unmarshal(StripComments(bb), &sections); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", configFile, err)
	}
	config, ok := sections[section]
	if !ok {
		return Config{}, fmt.Errorf("config %s: section %q not found", configFile, section)
	}

	if v := os.Getenv("OTSIM_SNAPSHOT_FILE"); v != "" {
		config.SnapshotFile = v
	}
	if v := os.Getenv("OTSIM_LISTEN_URL"); v != "" {
		config.ListenURL = v
	}
	if v := os.Getenv("OTSIM_LOG_FILE"); v != "" {
		config.LogFile = v
	}

	if config.SnapshotFile == "" {
		config.SnapshotFile = "sensors.tmp"
	}
	if config.ListenURL == "" {
		config.ListenURL = "tcp://0.0.0.0:5020"
	}
	if config.UnitID == 0 {
		config.UnitID = 1
	}
	if config.StatusCycle <= 0 {
		config.StatusCycle = 1
	}
	if config.LoopMultiplier <= 0 {
		config.LoopMultiplier = 5
	}
	if config.RealityCycle <= 0 {
		config.RealityCycle = 1
	}
	if config.Aggressiveness <= 0 {
		config.Aggressiveness = 1
	}
	return config, nil
}

// Map resolves the scenario's register layout.
func (c Config) Map() RegisterMap {
	return MapByName(c.Scenario)
}

func (c Config) StatusInterval() time.Duration {
	return time.Duration(c.StatusCycle * float64(time.Second))
}

func (c Config) RealityInterval() time.Duration {
	return time.Duration(c.RealityCycle * float64(time.Second))
}
