// The plc command runs the controller process: it seeds its register bank
// from the shared snapshot, mirrors the bank over Modbus TCP and executes the
// control policy every n-th status cycle.
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
	"github.com/rwirdemann/otsim/control"
	"github.com/rwirdemann/otsim/modbus"
)

func main() {
	configFile := flag.String("config", "OTdemo.conf", "path to the configuration file")
	section := flag.String("section", "modbus-plc1", "configuration section")
	flag.Parse()

	os.Exit(run(*configFile, *section))
}

func run(configFile, section string) int {
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

	// The field simulator publishes the first snapshot.
	fmt.Printf("PLC waiting for %s...\n", config.SnapshotFile)
	var snap otsim.Snapshot
	for {
		snap, err = store.Load()
		if err == nil {
			break
		}
		if !errors.Is(err, otsim.ErrNotFound) {
			logger.Warn("snapshot load failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return 0
		case <-time.After(time.Second):
		}
	}

	bank := otsim.NewBank()
	snap.Apply(bank, otsim.Spaces...)

	gateway, err := modbus.NewGateway(config.ListenURL, config.UnitID, bank, logger)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	if err := gateway.Start(); err != nil {
		logger.Error("start gateway", "err", err)
		return 1
	}
	defer func() { _ = gateway.Stop() }()
	logger.Info("modbus gateway listening", "url", config.ListenURL, "unit", config.UnitID)

	controller := control.New(regs, logger)
	projection := regs.Projection()

	iteration := 0
	for {
		iteration++

		// Refresh the sensor view from the shared snapshot. A malformed or
		// missing file is recoverable: log and keep the previous values.
		if snap, err := store.Load(); err != nil {
			logger.Warn("memory update error", "err", err)
		} else {
			snap.Apply(bank, otsim.DiscreteInputs, otsim.InputRegisters)
		}

		if iteration%config.LoopMultiplier == 0 {
			changes, err := controller.Run(bank)
			if err != nil {
				logger.Warn("plc cycle error", "err", err)
			} else {
				changes.Log(logger)
				if len(changes) > 0 {
					if err := store.Save(bank, projection); err != nil {
						logger.Warn("snapshot save failed", "err", err)
					}
				}
			}
		}

		if config.MemoryView {
			printMemoryView(bank, regs, iteration)
		}

		select {
		case <-ctx.Done():
			logger.Info("plc exiting")
			return 0
		case <-time.After(config.StatusInterval()):
		}
	}
}

func printMemoryView(bank *otsim.Bank, regs otsim.RegisterMap, iteration int) {
	onOff := func(v bool) string {
		if v {
			return "ON"
		}
		return "OFF"
	}

	mode, _ := bank.ReadRegister(otsim.HoldingRegisters, uint16(regs.Mode))
	modeName := "IDLE"
	switch mode {
	case control.ModeAuto:
		modeName = "AUTO"
	case control.ModeManual:
		modeName = "MANUAL"
	}

	fmt.Print("\033[H\033[J")
	fmt.Printf("======== MEMORY VIEW / PLC STATUS ITERATION: %d ========\n", iteration)
	fmt.Printf("MODE: %s (HR[%d] = %d)\n\n", modeName, regs.Mode, mode)

	sections := []struct {
		title string
		space otsim.Space
	}{
		{"COILS", otsim.Coils},
		{"DISCRETE INPUTS", otsim.DiscreteInputs},
		{"INPUT REGISTERS", otsim.InputRegisters},
		{"HOLDING REGISTERS", otsim.HoldingRegisters},
	}
	for _, s := range sections {
		fmt.Printf("%s:\n", s.title)
		labels := regs.Labels(s.space)
		for _, addr := range regs.MappedSlots(s.space) {
			switch s.space {
			case otsim.Coils, otsim.DiscreteInputs:
				v, _ := bank.ReadBit(s.space, addr)
				fmt.Printf("  - %-30s: %s\n", labels[addr], onOff(v))
			default:
				v, _ := bank.ReadRegister(s.space, addr)
				fmt.Printf("  - %-30s: %d\n", labels[addr], v)
			}
		}
		fmt.Println()
	}
	fmt.Println("============================================================")
}
