// The cockpit command is the operator console: a TUI that polls the PLC
// gateway, shows the labeled register map and sends mode, pump delta and
// emergency stop commands.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rwirdemann/panels"

	"github.com/rwirdemann/otsim"
	"github.com/rwirdemann/otsim/control"
	mb "github.com/rwirdemann/otsim/modbus"
)

const deltaStep = 20

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240"))

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
	Light: "#909090",
	Dark:  "#626262",
}).Padding(0, 1)

func main() {
	url := flag.String("url", "tcp://localhost:5020", "gateway url")
	timeout := flag.Duration("timeout", time.Second, "request timeout")
	scenario := flag.String("scenario", "standard", "register map scenario")
	poll := flag.Duration("poll", time.Second, "poll interval")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	adapter, err := mb.NewAdapter(*url, *timeout, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer adapter.Close()

	fmt.Printf("Connecting to %s ...\n", *url)
	for adapter.Open() != nil {
		fmt.Println("Waiting...")
		time.Sleep(time.Second)
	}

	m := newModel(adapter, otsim.MapByName(*scenario), *poll)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

// state is one polled view of the device registers. Unknown values mean the
// gateway was unreachable for that read.
type state struct {
	coils    []mb.Bit
	discrete []mb.Bit
	input    []mb.Word
	holding  []mb.Word
}

func poll(adapter *mb.Adapter) state {
	const count = 10
	return state{
		coils:    adapter.GetBits(otsim.Coils, 0, count),
		discrete: adapter.GetBits(otsim.DiscreteInputs, 0, count),
		input:    adapter.GetValues(otsim.InputRegisters, 0, count),
		holding:  adapter.GetValues(otsim.HoldingRegisters, 0, count),
	}
}

func (s state) mode(regs otsim.RegisterMap) (int, bool) {
	if regs.Mode == otsim.Unmapped || regs.Mode >= len(s.holding) {
		return 0, false
	}
	w := s.holding[regs.Mode]
	return int(w.Value), w.Known
}

type logger struct {
	items    []string
	maxItems int
}

func (l *logger) Append(s string) {
	ts := time.Now().Format(time.DateTime)
	l.items = append(l.items, ts+" "+s)
	if l.maxItems > 0 && len(l.items) > l.maxItems {
		l.items = l.items[1:]
	}
}

type model struct {
	width, height int
	adapter       *mb.Adapter
	regs          otsim.RegisterMap
	pollInterval  time.Duration

	registerTable table.Model
	state         state
	pendingDelta  int
	logger        *logger
	rootPanel     *panels.Panel
}

func newModel(adapter *mb.Adapter, regs otsim.RegisterMap, pollInterval time.Duration) model {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)

	columns := []table.Column{
		{Title: "Space", Width: 18},
		{Title: "Addr", Width: 5},
		{Title: "Label", Width: 24},
		{Title: "Value", Width: 10},
	}
	registerTable := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	registerTable.SetStyles(s)

	m := model{
		adapter:       adapter,
		regs:          regs,
		pollInterval:  pollInterval,
		registerTable: registerTable,
		logger:        &logger{maxItems: 50},
	}
	m.state = poll(adapter)
	m.registerTable.SetRows(m.rows())

	rootPanel := panels.NewPanel(panels.LayoutDirectionHorizontal, true, true, 1.0, nil)
	rootPanel.Append(panels.NewPanel(panels.LayoutDirectionNone, true, false, 0.6, renderRegisterView))
	rootPanel.Append(panels.NewPanel(panels.LayoutDirectionNone, true, false, 0.4, renderLogView))
	m.rootPanel = rootPanel
	return m
}

func (m model) rows() []table.Row {
	var rows []table.Row
	add := func(space otsim.Space, value func(addr uint16) string) {
		labels := m.regs.Labels(space)
		for _, addr := range m.regs.MappedSlots(space) {
			rows = append(rows, table.Row{space.String(), fmt.Sprintf("%d", addr), labels[addr], value(addr)})
		}
	}
	add(otsim.Coils, func(a uint16) string { return m.state.coils[a].String() })
	add(otsim.DiscreteInputs, func(a uint16) string { return m.state.discrete[a].String() })
	add(otsim.InputRegisters, func(a uint16) string { return m.state.input[a].String() })
	add(otsim.HoldingRegisters, func(a uint16) string {
		w := m.state.holding[a]
		if m.regs.PumpDelta != otsim.Unmapped && a == uint16(m.regs.PumpDelta) {
			if m.pendingDelta != 0 {
				return fmt.Sprintf("%+d (pending)", m.pendingDelta)
			}
			if w.Known {
				return fmt.Sprintf("%d", otsim.Signed(w.Value))
			}
		}
		return w.String()
	})
	return rows
}

type tickMsg time.Time

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd { return m.tickCmd() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.registerTable.SetHeight(msg.Height - 5)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "m":
			mode, known := m.state.mode(m.regs)
			if !known {
				m.logger.Append("mode unknown, not toggling")
				break
			}
			newMode := control.ModeAuto
			if mode == control.ModeAuto {
				newMode = control.ModeManual
			}
			if err := m.adapter.SetValue(uint16(m.regs.Mode), uint16(newMode)); err != nil {
				m.logger.Append(err.Error())
			} else {
				m.logger.Append(fmt.Sprintf("mode set to %d", newMode))
			}

		case "e":
			if m.regs.EmergencyStop == otsim.Unmapped {
				break
			}
			estop := m.state.coils[m.regs.EmergencyStop]
			if !estop.Known {
				m.logger.Append("emergency stop state unknown, not toggling")
				break
			}
			if err := m.adapter.SetBit(uint16(m.regs.EmergencyStop), !estop.Value); err != nil {
				m.logger.Append(err.Error())
			} else {
				m.logger.Append(fmt.Sprintf("emergency stop -> %v", !estop.Value))
			}

		case "+":
			m.pendingDelta += deltaStep
		case "-":
			m.pendingDelta -= deltaStep

		case "s":
			if m.regs.PumpDelta == otsim.Unmapped || m.pendingDelta == 0 {
				break
			}
			if err := m.adapter.SetValue(uint16(m.regs.PumpDelta), otsim.Unsigned(m.pendingDelta)); err != nil {
				m.logger.Append(err.Error())
			} else {
				m.logger.Append(fmt.Sprintf("sent delta %+d", m.pendingDelta))
				m.pendingDelta = 0
			}
		}

		var cmd tea.Cmd
		m.registerTable, cmd = m.registerTable.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		m.state = poll(m.adapter)
		m.registerTable.SetRows(m.rows())
		cmds = append(cmds, m.tickCmd())
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	mode, known := m.state.mode(m.regs)
	modeName := "unknown"
	if known {
		switch mode {
		case control.ModeIdle:
			modeName = "Idle"
		case control.ModeAuto:
			modeName = "Auto"
		case control.ModeManual:
			modeName = "Manual"
		default:
			modeName = fmt.Sprintf("%d", mode)
		}
	}
	status := fmt.Sprintf("Mode: %s • failed writes: %d", modeName, m.adapter.FailedWrites())
	help := helpStyle.Render("m - toggle mode • e - emergency stop • +/- adjust delta • s - send delta • q - quit")
	return lipgloss.JoinVertical(lipgloss.Top,
		m.rootPanel.View(m, m.width, m.height-2),
		helpStyle.Render(status),
		help)
}

func renderRegisterView(tm tea.Model, w, h int) string {
	m := tm.(model)
	m.registerTable.SetWidth(w)
	m.registerTable.SetHeight(h)
	return m.registerTable.View()
}

func renderLogView(tm tea.Model, w, h int) string {
	m := tm.(model)
	items := m.logger.items
	if len(items) == 0 {
		return baseStyle.Render("no commands sent yet")
	}
	if h > 0 && len(items) > h {
		items = items[len(items)-h:]
	}
	return strings.Join(items, "\n")
}
