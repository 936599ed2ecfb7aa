package command

import (
	"bufio"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/pmaher/treatbot/internal/speed"
)

// Console reads operator commands line by line. Start/treat commands go to
// the bus; speed commands act on the speed control directly so they work
// even while the orchestrator is blocked in a motion sequence.
type Console struct {
	bus   *Bus
	speed *speed.Control
}

// NewConsole creates a Console posting to bus and adjusting spd.
func NewConsole(bus *Bus, spd *speed.Control) *Console {
	return &Console{bus: bus, speed: spd}
}

// Run reads r until EOF. Intended to be run as a goroutine on os.Stdin;
// when the process has no attached terminal it simply returns on EOF.
func (c *Console) Run(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.handle(scanner.Text())
	}
}

func (c *Console) handle(line string) {
	low := strings.ToLower(strings.TrimSpace(line))

	switch {
	case low == "":
		// ignore blank lines

	case low == "start" || low == "manual" || low == "manual start hour":
		c.bus.Post(Event{Kind: ManualStart})

	case low == "treat" || low == "dispense" || low == "candy":
		c.bus.Post(Event{Kind: ManualTreat})

	case strings.HasPrefix(low, "speed "):
		parts := strings.Fields(low)
		if len(parts) != 2 {
			log.Printf("usage: speed <number>")
			return
		}
		val, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || val <= 0 {
			log.Printf("invalid speed value %q (example: speed 2)", parts[1])
			return
		}
		c.speed.SetSpeed(val)
		log.Printf("speed updated: %s", c.speed.Info())

	case low == "faster":
		c.speed.Faster()
		log.Printf("speed updated: %s", c.speed.Info())

	case low == "slower":
		c.speed.Slower()
		log.Printf("speed updated: %s", c.speed.Info())

	case low == "speed?" || low == "speed" || low == "status":
		log.Printf("speed: %s", c.speed.Info())

	case low == "help" || low == "?":
		printHelp()

	default:
		log.Printf("unknown command %q (type \"help\")", line)
	}
}

func printHelp() {
	log.Printf("commands:")
	log.Printf("  start               -> start an episode now (primary only)")
	log.Printf("  treat               -> dispense a reward (idle, primary only)")
	log.Printf("  speed <x>           -> set speed factor (speed 2 = faster, speed 0.5 = slower)")
	log.Printf("  faster / slower     -> adjust speed by 1.25x")
	log.Printf("  speed?              -> show current speed settings")
	log.Printf("  help                -> show this help")
}
