// Command treatbot runs one node of the two-robot treat dispenser: hourly
// play sessions with the cat, proximity-confirmed success over MQTT, and a
// serial handshake with the peer robot before the reward drops.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pmaher/treatbot/internal/buttons"
	"github.com/pmaher/treatbot/internal/command"
	"github.com/pmaher/treatbot/internal/config"
	"github.com/pmaher/treatbot/internal/detect"
	"github.com/pmaher/treatbot/internal/motion"
	"github.com/pmaher/treatbot/internal/peer"
	"github.com/pmaher/treatbot/internal/servo"
	"github.com/pmaher/treatbot/internal/session"
	"github.com/pmaher/treatbot/internal/speed"
	"github.com/pmaher/treatbot/internal/status"
	"github.com/pmaher/treatbot/internal/telemetry"
	"github.com/pmaher/treatbot/internal/web"
)

// Movement pacing at speed factor 1.0. Calibrated with the rig.
var baseSpeed = speed.Base{
	StepDegrees:   1.0,
	StepDelay:     40 * time.Millisecond,
	RandomWaitMin: 1500 * time.Millisecond,
	RandomWaitMax: 2800 * time.Millisecond,
}

// PCA9685 attachment: address 0x40, 50Hz servo PWM, channels in rig order.
var hardwareConfig = servo.HardwareConfig{
	Addr:   0x40,
	FreqHz: 50,
	Channels: map[servo.ID]int{
		servo.Dispense: 0,
		servo.InOut:    1,
		servo.Deploy:   2,
		servo.Door:     3,
	},
	Pulse: servo.PulseCal{MinUS: 500, MaxUS: 2400},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Flags default to the environment values, so either works.
	role := flag.String("role", cfg.Role, "node role: primary or secondary")
	device := flag.String("device", cfg.SerialDevice, "serial device for the peer link")
	baud := flag.Int("baud", cfg.SerialBaud, "serial baud rate")
	broker := flag.String("broker", cfg.Broker, "MQTT broker address")
	scoreTopic := flag.String("score-topic", cfg.ScoreTopic, "MQTT topic carrying proximity scores")
	httpAddr := flag.String("http", cfg.HTTPPort, "HTTP status address (empty to disable)")
	tick := flag.Duration("tick", time.Duration(cfg.TickMs)*time.Millisecond, "orchestrator tick interval")
	startHour := flag.Int("start-hour", cfg.StartHour, "first eligible hour of day for scheduled sessions")
	maxCycles := flag.Int("max-cycles", cfg.MaxCyclesPerHour, "session quota per hour")
	speedFactor := flag.Float64("speed", cfg.Speed, "initial movement speed factor")
	dryRun := flag.Bool("dry-run", cfg.DryRun, "log servo moves instead of driving hardware")
	buttonsOn := flag.Bool("buttons", cfg.ButtonsEnabled, "enable the panel button poller")
	flag.Parse()

	cfg.Role = *role
	cfg.SerialDevice = *device
	cfg.SerialBaud = *baud
	cfg.Broker = *broker
	cfg.ScoreTopic = *scoreTopic
	cfg.HTTPPort = *httpAddr
	cfg.TickMs = tick.Milliseconds()
	cfg.StartHour = *startHour
	cfg.MaxCyclesPerHour = *maxCycles
	cfg.Speed = *speedFactor
	cfg.DryRun = *dryRun
	cfg.ButtonsEnabled = *buttonsOn

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	// Every log line carries the node role; with both robots logging to one
	// place the interleaved streams stay readable.
	log.SetPrefix("[" + strings.ToUpper(cfg.Role) + "] ")

	spd := speed.New(baseSpeed, cfg.Speed)

	var drv servo.Driver
	if cfg.DryRun {
		log.Printf("dry run: servo moves are logged, not driven")
		drv = servo.NewDryRunDriver()
	} else {
		real, err := servo.NewRealDriver(hardwareConfig)
		if err != nil {
			return fmt.Errorf("init servos: %w", err)
		}
		drv = real
	}
	defer drv.Close()

	ctl := motion.New(drv, spd)
	bus := command.NewBus()

	link := peer.NewSerialLink(cfg.SerialDevice, cfg.SerialBaud, bus)
	go link.Run()

	console := command.NewConsole(bus, spd)
	go console.Run(os.Stdin)

	if cfg.ButtonsEnabled {
		reader, err := buttons.NewRealReader(cfg.PinStart, cfg.PinTreat)
		if err != nil {
			log.Printf("buttons disabled: %v", err)
		} else {
			defer reader.Close()
			poller := buttons.NewPoller(reader, bus)
			ticker := time.NewTicker(buttons.PollInterval)
			defer ticker.Stop()
			stop := make(chan struct{})
			defer close(stop)
			go poller.Run(ticker.C, stop)
		}
	}

	scores, err := detect.NewMQTTSource(cfg.Broker, "treatbot-"+cfg.Role+"-score", cfg.ScoreTopic)
	if err != nil {
		return fmt.Errorf("init score source: %w", err)
	}
	defer scores.Close()

	publisher, err := telemetry.NewRealPublisher(cfg.Broker, session.Role(cfg.Role))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Role:             cfg.Role,
		TickMs:           cfg.TickMs,
		Broker:           cfg.Broker,
		HTTPPort:         cfg.HTTPPort,
		SerialDevice:     cfg.SerialDevice,
		SerialBaud:       cfg.SerialBaud,
		StartHour:        cfg.StartHour,
		MaxCyclesPerHour: cfg.MaxCyclesPerHour,
	})
	tracker.SetSpeedFactor(spd.Factor())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := telemetry.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTPPort != "" {
		srv := web.New(cfg.HTTPPort, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPPort)
	}

	orch := session.New(session.Config{
		Role:             session.Role(cfg.Role),
		StartHour:        cfg.StartHour,
		MaxCyclesPerHour: cfg.MaxCyclesPerHour,
		PeerTimeout:      cfg.PeerTimeout,
		CloseThreshold:   cfg.CloseThreshold,
		CloseHold:        cfg.CloseHold,
		NoSignalTimeout:  cfg.NoSignalTimeout,
		NoCloseTimeout:   cfg.NoCloseTimeout,
	}, ctl, link, time.Now())

	log.Printf("started: role=%s device=%s broker=%s tick=%dms start-hour=%02d:00 max-cycles=%d",
		cfg.Role, cfg.SerialDevice, cfg.Broker, cfg.TickMs, cfg.StartHour, cfg.MaxCyclesPerHour)

	ticker := time.NewTicker(time.Duration(cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(orch, bus, scores, publisher, publisher, link.Connected, tracker, spd, time.Now, ticker.C, sigCh)

	// Park the rig before the process exits.
	if ctl.Running() {
		ctl.StopEpisode()
	}
	return err
}

// runLoop is the orchestrator heartbeat: drain commands, read the held
// score, advance the state machine, publish and record what it decided.
// Runs until a shutdown signal arrives.
func runLoop(
	orch *session.Orchestrator,
	bus *command.Bus,
	scores detect.Source,
	publisher telemetry.Publisher,
	mqttStatus telemetry.ConnectionStatus,
	peerUp func() bool,
	tracker *status.Tracker,
	spd *speed.Control,
	now func() time.Time,
	tick <-chan time.Time,
	sig <-chan os.Signal,
) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := telemetry.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			score, ok := scores.Latest()

			events := orch.Tick(t, score, ok, bus.Drain())

			for _, event := range events {
				if event.Reason != "" {
					log.Printf("event: %s (%s) state=%s cycles=%d", event.Type, event.Reason, event.State, event.Cycles)
				} else {
					log.Printf("event: %s state=%s cycles=%d", event.Type, event.State, event.Cycles)
				}
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if tracker != nil {
				next, scheduled := orch.NextStart()
				tracker.Update(orch.State(), score, ok, orch.Cycles(), next, scheduled)
				tracker.SetSpeedFactor(spd.Factor())
				if peerUp != nil {
					tracker.SetPeerConnected(peerUp())
				}
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}
