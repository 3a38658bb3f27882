// The field command runs the plant simulator process: each tick it loads the
// shared snapshot, advances the simulated sensors from the current actuator
// state and atomically publishes the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rwirdemann/otsim"
	"github.com/rwirdemann/otsim/plant"
)

func main() {
	configFile := flag.String("config", "OTdemo.conf", "path to the configuration file")
	section := flag.String("section", "modbus-plc1", "configuration section")
	silent := flag.Bool("silent", false, "suppress change output on stdout")
	flag.Parse()

	os.Exit(run(*configFile, *section, *silent))
}

func run(configFile, section string, silent bool) int {
	config, err := otsim.LoadConfig(configFile, section)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	logger, closeLog, err := otsim.NewLogger(config.LogFile)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	regs := config.Map()
	store := otsim.Store{Path: config.SnapshotFile}
	model := plant.New(regs, config.Aggressiveness, logger)
	projection := regs.Projection()

	// Bootstrap the shared state from the compiled-in defaults when no other
	// process has written a snapshot yet.
	if _, err := store.Load(); errors.Is(err, otsim.ErrNotFound) {
		if err := store.Write(otsim.DefaultSnapshot()); err != nil {
			logger.Error("write initial snapshot", "err", err)
			return 1
		}
		if !silent {
			fmt.Printf("Generated %s from defaults\n", config.SnapshotFile)
		}
	}

	fmt.Printf("Reality loop: dst=%s, interval=%s, aggressiveness=%.2f\n",
		config.SnapshotFile, config.RealityInterval(), config.Aggressiveness)

	for {
		snap, err := store.Load()
		if err != nil {
			// Recoverable: another writer may be mid-schedule or the file is
			// malformed; skip this tick and retry on the next.
			logger.Warn("could not read snapshot", "err", err)
		} else {
			bank := otsim.NewBank()
			snap.Apply(bank, otsim.Spaces...)

			changes, err := model.Step(bank)
			if err != nil {
				logger.Warn("plant step error", "err", err)
			} else if len(changes) > 0 {
				changes.Log(logger)
				if !silent {
					for _, c := range changes {
						fmt.Printf("%s changed from %d to %d\n", c.Label, c.Old, c.New)
					}
				}
				if err := store.Save(bank, projection); err != nil {
					logger.Warn("snapshot save failed", "err", err)
				}
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("reality loop exiting")
			return 0
		case <-time.After(config.RealityInterval()):
		}
	}
}
