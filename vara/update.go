// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package vara

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kc1gsl/varafbb/callsign"
)

// ConnectionState is the TNC's link state, as seen on the control
// channel. It only ever changes in response to a TNC update line, never
// from a locally issued command directly.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Pending
	Canceled
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Canceled:
		return "Canceled"
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// TransceiverCommand is the PTT state reported by the TNC.
type TransceiverCommand int

const (
	Receive TransceiverCommand = iota
	Transmit
)

// CommandResult is the TNC's acknowledgement of a previously issued
// command: OK or WRONG.
type CommandResult int

const (
	ResultOK CommandResult = iota
	ResultWrong
)

// Update is a single classified unsolicited control-channel line.
// Only the fields belonging to Kind are meaningful; a Connected
// connection update also carries MyStation and OtherStation.
type Update struct {
	Kind Kind

	Buffer       int
	Busy         bool
	Transceiver  TransceiverCommand
	Connection   ConnectionState
	MyStation    callsign.StationId
	OtherStation callsign.StationId
	Registered   callsign.StationId
	Result       CommandResult
}

// Kind identifies which field of Update is populated.
type Kind int

const (
	KindHeartbeat Kind = iota
	KindBuffer
	KindBusy
	KindTransceiver
	KindConnection
	KindRegistered
	KindResult
)

// ParseUpdate classifies a single \r-stripped control line.
//
// Any line not matching a known update or command result is reported
// as an error; the caller should log and drop it rather than treat it
// as a protocol violation, since the TNC protocol allows unrecognized
// informational lines.
func ParseUpdate(line string) (Update, error) {
	switch {
	case line == "IAMALIVE":
		return Update{Kind: KindHeartbeat}, nil
	case line == "OK":
		return Update{Kind: KindResult, Result: ResultOK}, nil
	case line == "WRONG":
		return Update{Kind: KindResult, Result: ResultWrong}, nil
	case strings.HasPrefix(line, "BUFFER "):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "BUFFER "))
		if err != nil {
			return Update{}, fmt.Errorf("vara: bad BUFFER update %q: %w", line, err)
		}
		return Update{Kind: KindBuffer, Buffer: n}, nil
	case strings.HasPrefix(line, "BUSY "):
		on, err := parseOnOff(strings.TrimPrefix(line, "BUSY "))
		if err != nil {
			return Update{}, err
		}
		return Update{Kind: KindBusy, Busy: on}, nil
	case strings.HasPrefix(line, "PTT "):
		on, err := parseOnOff(strings.TrimPrefix(line, "PTT "))
		if err != nil {
			return Update{}, err
		}
		cmd := Receive
		if on {
			cmd = Transmit
		}
		return Update{Kind: KindTransceiver, Transceiver: cmd}, nil
	case strings.HasPrefix(line, "REGISTERED "):
		call, err := callsign.Parse(strings.TrimPrefix(line, "REGISTERED "))
		if err != nil {
			return Update{}, fmt.Errorf("vara: bad REGISTERED update %q: %w", line, err)
		}
		return Update{Kind: KindRegistered, Registered: call}, nil
	case line == "DISCONNECTED":
		return Update{Kind: KindConnection, Connection: Disconnected}, nil
	case line == "PENDING":
		return Update{Kind: KindConnection, Connection: Pending}, nil
	case line == "CANCELPENDING":
		return Update{Kind: KindConnection, Connection: Canceled}, nil
	case strings.HasPrefix(line, "CONNECTED "):
		fields := strings.Fields(strings.TrimPrefix(line, "CONNECTED "))
		if len(fields) != 2 {
			return Update{}, fmt.Errorf("vara: bad CONNECTED update %q: expected 2 stations", line)
		}
		my, err := callsign.Parse(fields[0])
		if err != nil {
			return Update{}, fmt.Errorf("vara: bad CONNECTED update %q: %w", line, err)
		}
		other, err := callsign.Parse(fields[1])
		if err != nil {
			return Update{}, fmt.Errorf("vara: bad CONNECTED update %q: %w", line, err)
		}
		return Update{Kind: KindConnection, Connection: Connected, MyStation: my, OtherStation: other}, nil
	default:
		return Update{}, fmt.Errorf("vara: unrecognized control line %q", line)
	}
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("vara: expected ON/OFF, got %q", s)
	}
}
