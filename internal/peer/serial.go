package peer

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/pmaher/treatbot/internal/command"
)

const (
	devicePollInterval = 500 * time.Millisecond
	waitLogPeriod      = 5 * time.Second
	readTimeout        = time.Second
	reopenBackoff      = time.Second
	readChunkSize      = 256
)

// port is the subset of the serial port used by the link. Narrow so the
// framing and send paths are testable without a device node.
type port interface {
	io.ReadWriteCloser
	Drain() error
}

// openFunc opens the transport. Replaced in tests.
type openFunc func(device string, baud int) (port, error)

func openSerial(device string, baud int) (port, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// SerialLink supervises a line-delimited serial connection to the peer.
// Inbound messages are posted to the shared command bus; Send writes
// directly, serialized by a send lock.
type SerialLink struct {
	device string
	baud   int
	bus    *command.Bus

	open   openFunc
	exists func(string) bool
	sleep  func(time.Duration)

	mu     sync.Mutex // guards cur
	cur    port       // nil while disconnected
	sendMu sync.Mutex // serializes concurrent senders
}

// NewSerialLink creates a link for the given device node (e.g. /dev/rfcomm0).
func NewSerialLink(device string, baud int, bus *command.Bus) *SerialLink {
	return &SerialLink{
		device: device,
		baud:   baud,
		bus:    bus,
		open:   openSerial,
		exists: func(p string) bool { _, err := os.Stat(p); return err == nil },
		sleep:  time.Sleep,
	}
}

// Run supervises the connection forever: wait for the device node, open,
// read until error, clean up, back off, repeat. Intended as a goroutine.
func (l *SerialLink) Run() {
	var lastWaitLog time.Time

	for {
		if !l.exists(l.device) {
			if time.Since(lastWaitLog) > waitLogPeriod {
				log.Printf("waiting for %s (peer transport not connected yet)", l.device)
				lastWaitLog = time.Now()
			}
			l.sleep(devicePollInterval)
			continue
		}

		p, err := l.open(l.device, l.baud)
		if err != nil {
			log.Printf("peer open error: %v", err)
			l.sleep(reopenBackoff)
			continue
		}
		log.Printf("peer link %s opened", l.device)
		l.setPort(p)

		err = l.readLoop(p)
		log.Printf("peer link error: %v", err)

		l.setPort(nil)
		p.Close() // best effort
		l.sleep(reopenBackoff)
	}
}

// readLoop reads raw bytes, splits on newlines and posts trimmed non-empty
// messages to the bus. Returns the transport error that ended the loop.
func (l *SerialLink) readLoop(r io.Reader) error {
	buf := make([]byte, readChunkSize)
	var acc []byte

	for {
		n, err := r.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			// read timeout, nothing buffered
			continue
		}
		acc = append(acc, buf[:n]...)

		for {
			i := bytes.IndexByte(acc, '\n')
			if i < 0 {
				break
			}
			line := acc[:i]
			acc = acc[i+1:]

			// Invalid bytes are dropped, not fatal.
			msg := strings.TrimSpace(strings.ToValidUTF8(string(line), ""))
			if msg == "" {
				continue
			}
			log.Printf("peer recv: %s", msg)
			if !l.bus.Post(command.Event{Kind: command.Peer, Token: msg}) {
				log.Printf("command bus full, dropping peer message %q", msg)
			}
		}
	}
}

// Send writes a line-terminated message if connected, dropping it otherwise.
func (l *SerialLink) Send(msg string) {
	l.mu.Lock()
	p := l.cur
	l.mu.Unlock()

	if p == nil {
		log.Printf("peer link down, cannot send %q", msg)
		return
	}

	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if _, err := p.Write([]byte(msg + "\n")); err != nil {
		log.Printf("peer send error: %v", err)
		return
	}
	if err := p.Drain(); err != nil {
		log.Printf("peer drain error: %v", err)
		return
	}
	log.Printf("peer sent: %s", msg)
}

// Connected reports whether the link currently has an open transport.
func (l *SerialLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur != nil
}

func (l *SerialLink) setPort(p port) {
	l.mu.Lock()
	l.cur = p
	l.mu.Unlock()
}
