// Command timerctl configures the ATmega32 timers and external interrupts
// over the serial link, or against the in-process simulator with -sim.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"avrpwm/host/mcu"
	"avrpwm/host/serial"
	"avrpwm/host/sim"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud    = flag.Int("baud", serial.DefaultBaud, "Baud rate")
	useSim  = flag.Bool("sim", false, "Run against the in-process simulator")
	period  = flag.Duration("period", 20*time.Millisecond, "Simulator application loop period (0 = manual step)")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

// replies maps commands to the response they are answered with. Commands
// not listed have no reply unless they fail.
var replies = map[string]string{
	"get_config":     "config",
	"config_timer":   "timer_state",
	"timer_start":    "timer_state",
	"timer_stop":     "timer_state",
	"timer_deinit":   "timer_state",
	"query_timer":    "timer_state",
	"config_ext_irq": "irq_state",
	"ext_irq_deinit": "irq_state",
	"query_irq":      "irq_state",
	"query_speed":    "speed_state",
	"query_stats":    "stats",
}

type session struct {
	mcu *mcu.MCU
	sim *sim.Simulator
	out io.Writer
}

func main() {
	flag.Parse()

	s := &session{mcu: mcu.NewMCU(), out: os.Stdout}
	if *verbose {
		s.mcu.Log = os.Stderr
	}

	if *useSim {
		var opts []sim.Option
		opts = append(opts, sim.WithAppPeriod(*period))
		if *verbose {
			opts = append(opts, sim.WithDebug(os.Stderr))
		}
		s.sim = sim.New(opts...)
		if err := s.sim.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: simulator: %v\n", err)
			os.Exit(1)
		}
		defer s.sim.Close()
		s.mcu.ConnectPort(s.sim.Port())
		fmt.Println("Connected to simulator")
	} else {
		fmt.Printf("Connecting to MCU on %s...\n", *device)
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		if err := s.mcu.ConnectWithConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
	}
	defer s.mcu.Close()

	if err := s.mcu.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	d := s.mcu.GetDictionary()
	fmt.Printf("%s (%s), %d commands\n", d.Version, d.Config["MCU"], len(d.Commands))
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		words, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" || words[0] == "exit" || words[0] == "q" {
			return
		}
		if err := s.run(words[0], words[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

var errNeedSim = errors.New("only available with -sim")

func (s *session) run(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		s.help()
		return nil
	case "dict":
		s.mcu.PrintDictionary(s.out)
		return nil
	case "raw":
		raw := s.mcu.GetDictionaryRaw()
		fmt.Fprintf(s.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
		return nil
	case "events":
		return s.events()
	case "raise", "pot", "step", "display":
		if s.sim == nil {
			return fmt.Errorf("%s: %w", cmd, errNeedSim)
		}
		return s.simCommand(cmd, args)
	}

	parsed, err := s.mcu.ParseArgs(cmd, args)
	if err != nil {
		return err
	}
	if resp, ok := replies[cmd]; ok {
		msg, err := s.mcu.Query(cmd, resp, parsed...)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, s.mcu.Describe(msg))
		return nil
	}
	if err := s.mcu.Exec(cmd, parsed...); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "ok")
	return nil
}

// events pages through the firmware event ring.
func (s *session) events() error {
	for start := uint32(0); ; {
		if err := s.mcu.Send("dump_events", start); err != nil {
			return err
		}
		var last *mcu.Message
		for {
			msg, err := s.mcu.Await("dump_events", "event", 200*time.Millisecond)
			if err != nil {
				break
			}
			last = msg
			fmt.Fprintln(s.out, s.mcu.Describe(msg))
		}
		if last == nil || last.Uint("index")+1 >= last.Uint("total") {
			return nil
		}
		start = last.Uint("index") + 1
	}
}

func (s *session) simCommand(cmd string, args []string) error {
	switch cmd {
	case "raise":
		if len(args) != 1 {
			return errors.New("usage: raise <vector>")
		}
		dispatched, err := s.sim.RaiseByName(strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		if dispatched {
			fmt.Fprintln(s.out, "dispatched")
		} else {
			fmt.Fprintln(s.out, "flag latched, vector disabled")
		}
	case "pot":
		if len(args) != 1 {
			return errors.New("usage: pot <0-1023>")
		}
		v, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("pot: %w", err)
		}
		s.sim.SetPotentiometer(uint16(v))
	case "step":
		n := 1
		if len(args) == 1 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("step: %w", err)
			}
		}
		for i := 0; i < n; i++ {
			if err := s.sim.Step(); err != nil {
				return err
			}
		}
	case "display":
		for _, line := range s.sim.Display.Lines() {
			fmt.Fprintf(s.out, "|%s|\n", line)
		}
	}
	return nil
}

func (s *session) help() {
	fmt.Fprintln(s.out, "\nAvailable commands:")
	fmt.Fprintln(s.out, "  help           - Show this help message")
	fmt.Fprintln(s.out, "  dict           - Print dictionary summary")
	fmt.Fprintln(s.out, "  raw            - Print raw dictionary data")
	fmt.Fprintln(s.out, "  events         - Dump the firmware event ring")
	fmt.Fprintln(s.out, "  quit/exit/q    - Exit the program")
	fmt.Fprintln(s.out, "\nFirmware commands (enumerations accept names, e.g. mode=fast_pwm):")
	for _, name := range []string{
		"get_config", "config_timer", "timer_start", "timer_stop", "timer_deinit",
		"set_compare", "query_timer", "config_ext_irq", "ext_irq_deinit", "query_irq",
		"query_speed", "query_stats", "emergency_stop", "clear_shutdown", "set_debug",
	} {
		fmt.Fprintf(s.out, "  %s\n", s.mcu.Usage(name))
	}
	if s.sim != nil {
		fmt.Fprintln(s.out, "\nSimulator:")
		fmt.Fprintln(s.out, "  raise <vector> - Latch an interrupt flag (e.g. INT1, TIMER0_OVF)")
		fmt.Fprintln(s.out, "  pot <value>    - Set the potentiometer (0-1023)")
		fmt.Fprintln(s.out, "  step [n]       - Run the application loop n times")
		fmt.Fprintln(s.out, "  display        - Show the character display")
	}
	fmt.Fprintln(s.out)
}
