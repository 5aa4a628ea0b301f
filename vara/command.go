// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package vara implements a client for the VARA soft-TNC's control
// and data TCP ports: a line-oriented command/reply protocol on the
// control port, and a raw byte stream on the data port.
package vara

import (
	"fmt"
	"strings"

	"github.com/kc1gsl/varafbb/callsign"
)

// ListenMode controls whether the TNC answers inbound connect requests.
type ListenMode int

const (
	ListenOff ListenMode = iota
	ListenCQ
	ListenOn
)

func (m ListenMode) String() string {
	switch m {
	case ListenCQ:
		return "CQ"
	case ListenOn:
		return "ON"
	default:
		return "OFF"
	}
}

// CompressionMode selects the TNC's own link-layer compression, which
// is independent of and orthogonal to the FBB/LZHUF compression
// applied at the application layer.
type CompressionMode int

const (
	CompressionOff CompressionMode = iota
	CompressionText
	CompressionFiles
)

func (m CompressionMode) String() string {
	switch m {
	case CompressionText:
		return "TEXT"
	case CompressionFiles:
		return "FILES"
	default:
		return "OFF"
	}
}

// Bandwidth selects the VARA HF channel bandwidth in Hz.
type Bandwidth int

const (
	Bandwidth500 Bandwidth = 500
	Bandwidth2300 Bandwidth = 2300
	Bandwidth2750 Bandwidth = 2750
)

func (b Bandwidth) String() string { return fmt.Sprintf("%d", int(b)) }

// ConnectPath is the digipeater path of a CONNECT command: zero, one
// or two hops between origin and target.
type ConnectPath struct {
	Digis []callsign.StationId
}

func (p ConnectPath) String() string {
	if len(p.Digis) == 0 {
		return ""
	}
	calls := make([]string, len(p.Digis))
	for i, d := range p.Digis {
		calls[i] = d.String()
	}
	return " via " + strings.Join(calls, " ")
}

func renderListen(mode ListenMode) string { return "LISTEN " + mode.String() }

func renderConnect(origin, target callsign.StationId, path ConnectPath) string {
	return fmt.Sprintf("CONNECT %s %s%s", origin, target, path)
}

func renderDisconnect() string { return "DISCONNECT" }

func renderAbort() string { return "ABORT" }

func renderSetCall(primary callsign.StationId, aliases []callsign.StationId) string {
	parts := make([]string, 0, 1+len(aliases))
	parts = append(parts, "MYCALL "+primary.String())
	for _, a := range aliases {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

func renderSetCompression(mode CompressionMode) string { return "COMPRESSION " + mode.String() }

func renderSetBandwidth(bw Bandwidth) string { return "BW" + bw.String() }
