// Package buttons reads the two panel push buttons and turns presses into
// commands. The real implementation uses the Linux GPIO character device;
// the fake allows testing without hardware.
package buttons

import (
	"log"
	"time"

	"github.com/pmaher/treatbot/internal/command"
)

// Pin definitions (BCM numbering)
const (
	PinStart = 5 // start an episode now
	PinTreat = 6 // dispense a treat now
)

// PollInterval is how often the buttons are sampled.
const PollInterval = 50 * time.Millisecond

// debounce suppresses repeat fires from switch bounce and held buttons.
const debounce = 250 * time.Millisecond

// Reader reads the two button states.
type Reader interface {
	// Read returns (startPressed, treatPressed). The raw GPIO values are
	// inverted: buttons are wired active-low with pull-ups.
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Poller samples a Reader and posts a command on each press edge.
type Poller struct {
	r   Reader
	bus *command.Bus
	now func() time.Time

	startDown bool
	treatDown bool
	startLast time.Time
	treatLast time.Time
}

// NewPoller creates a Poller posting to the given bus.
func NewPoller(r Reader, bus *command.Bus) *Poller {
	return &Poller{r: r, bus: bus, now: time.Now}
}

// Run samples on every tick until stop is closed. Read errors are logged
// and the sample skipped; a flaky line must not kill the poller.
func (p *Poller) Run(tick <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-tick:
			start, treat, err := p.r.Read()
			if err != nil {
				log.Printf("buttons: read error: %v", err)
				continue
			}
			p.handle(start, treat)
		}
	}
}

// handle fires on press edges only, with a per-button debounce window.
func (p *Poller) handle(start, treat bool) {
	now := p.now()

	if start && !p.startDown && now.Sub(p.startLast) >= debounce {
		p.startLast = now
		if !p.bus.Post(command.Event{Kind: command.ManualStart}) {
			log.Printf("buttons: command bus full, start press dropped")
		}
	}
	p.startDown = start

	if treat && !p.treatDown && now.Sub(p.treatLast) >= debounce {
		p.treatLast = now
		if !p.bus.Post(command.Event{Kind: command.ManualTreat}) {
			log.Printf("buttons: command bus full, treat press dropped")
		}
	}
	p.treatDown = treat
}
