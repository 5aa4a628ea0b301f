// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package serialptt keys a transmitter by toggling a CAT serial port's
// RTS or DTR line, the common amateur-radio PTT wiring for rigs with
// no CAT command set (or for interfaces, like a SignaLink, that wire
// PTT straight to a handshaking line).
package serialptt

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/albenik/go-serial/v2"
)

// Line selects which serial handshaking line keys the transmitter.
type Line int

const (
	RTS Line = iota
	DTR
)

// Port is a PTT sink backed by a serial port's RTS or DTR line. It
// implements transport.PTTController.
type Port struct {
	mu   sync.Mutex
	port *serial.Port
	line Line
	log  *log.Logger
}

// Open opens the named serial port (e.g. "/dev/ttyUSB0" or "COM3") and
// returns a Port that keys the transmitter on the given line.
func Open(name string, line Line) (*Port, error) {
	port, err := serial.Open(name, serial.WithBaudrate(9600))
	if err != nil {
		return nil, fmt.Errorf("serialptt: open %s: %w", name, err)
	}
	return &Port{port: port, line: line, log: log.New(os.Stderr, "", log.LstdFlags)}, nil
}

// SetLogger overrides the logger used to report failed line toggles.
func (p *Port) SetLogger(l *log.Logger) { p.log = l }

// Close closes the underlying serial port.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port.Close()
}

// SetPTT implements transport.PTTController by asserting or clearing
// the configured handshaking line. There is no error return: a failed
// toggle is logged, since the caller has no meaningful recovery beyond
// retrying on the next PTT transition.
func (p *Port) SetPTT(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	switch p.line {
	case DTR:
		err = p.port.SetDTR(on)
	default:
		err = p.port.SetRTS(on)
	}
	if err != nil {
		p.log.Printf("serialptt: set %s %v: %v", p.lineName(), on, err)
	}
}

func (p *Port) lineName() string {
	if p.line == DTR {
		return "DTR"
	}
	return "RTS"
}
