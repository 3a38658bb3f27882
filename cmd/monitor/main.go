// The monitor command is a read-only GUI view of the shared snapshot file.
// It refreshes whenever a simulator process replaces the file.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/fsnotify/fsnotify"

	"github.com/rwirdemann/otsim"
)

type entry struct {
	space otsim.Space
	addr  uint16
	label string
	value string
}

var (
	snapshotFile string
	scenario     string
)

func main() {
	flag.StringVar(&snapshotFile, "snapshot", "sensors.tmp", "path to the snapshot file")
	flag.StringVar(&scenario, "scenario", "standard", "register map scenario")
	flag.Parse()

	os.Exit(run())
}

func run() int {
	regs := otsim.MapByName(scenario)
	store := otsim.Store{Path: snapshotFile}

	var data []*entry
	for _, space := range otsim.Spaces {
		labels := regs.Labels(space)
		for _, addr := range regs.MappedSlots(space) {
			data = append(data, &entry{space: space, addr: addr, label: labels[addr], value: "unknown"})
		}
	}

	myApp := app.New()
	myWindow := myApp.NewWindow("OT Monitor")

	logArea := widget.NewTextGrid()
	logScrollContainer := container.NewScroll(logArea)
	logScrollContainer.SetMinSize(fyne.NewSize(400, 600))

	appendAndScroll := func(text string) {
		ts := time.Now().Format(time.DateTime)
		logArea.Append(ts + " " + text)
		logScrollContainer.ScrollToBottom()
	}

	list := widget.NewList(
		func() int {
			return len(data)
		},
		func() fyne.CanvasObject {
			space := widget.NewLabel("template")
			label := widget.NewLabel("template")
			value := widget.NewLabel("template")
			return container.NewHBox(space, label, value)
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			cont := o.(*fyne.Container)
			spaceLabel := cont.Objects[0].(*widget.Label)
			nameLabel := cont.Objects[1].(*widget.Label)
			valueLabel := cont.Objects[2].(*widget.Label)

			e := data[i]
			spaceLabel.SetText(fmt.Sprintf("%s[%d]", e.space, e.addr))
			nameLabel.SetText(e.label)
			valueLabel.SetText(e.value)
		})

	reload := func() {
		snap, err := store.Load()
		if err != nil {
			appendAndScroll(err.Error())
			return
		}
		bank := otsim.NewBank()
		snap.Apply(bank, otsim.Spaces...)
		for _, e := range data {
			var value string
			switch e.space {
			case otsim.Coils, otsim.DiscreteInputs:
				v, _ := bank.ReadBit(e.space, e.addr)
				value = "OFF"
				if v {
					value = "ON"
				}
			default:
				v, _ := bank.ReadRegister(e.space, e.addr)
				value = strconv.Itoa(int(v))
			}
			if value != e.value && e.value != "unknown" {
				appendAndScroll(fmt.Sprintf("%s: %s -> %s", e.label, e.value, value))
			}
			e.value = value
		}
		list.Refresh()
	}
	reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error(err.Error())
		return 1
	}
	defer watcher.Close()

	// The writers replace the file via rename, so watch its directory and
	// filter events by name.
	dir := filepath.Dir(snapshotFile)
	base := filepath.Base(snapshotFile)
	if err := watcher.Add(dir); err != nil {
		slog.Error(err.Error())
		return 1
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
					fyne.Do(reload)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watch error", "err", err)
			}
		}
	}()

	rightSide := container.NewVBox()
	rightSide.Add(logScrollContainer)

	split := container.NewHSplit(list, rightSide)
	split.SetOffset(0.5)

	myWindow.Resize(fyne.NewSize(900, 600))
	myWindow.SetContent(split)
	myWindow.ShowAndRun()
	return 0
}
