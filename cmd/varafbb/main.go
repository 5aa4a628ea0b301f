// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Command varafbb connects to a running VARA TNC and runs a single B2F
// forwarding exchange against a remote station, either by listening
// for an inbound connect or by dialing out.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/kc1gsl/varafbb/callsign"
	"github.com/kc1gsl/varafbb/proposal"
	"github.com/kc1gsl/varafbb/rigcontrol/rigctl"
	"github.com/kc1gsl/varafbb/rigcontrol/serialptt"
	"github.com/kc1gsl/varafbb/session"
	"github.com/kc1gsl/varafbb/transport"
	"github.com/kc1gsl/varafbb/vara"
)

const ident = "varafbb-0.1"

func main() {
	var (
		host        = flag.String("host", vara.DefaultHost, "VARA TNC control host")
		port        = flag.Int("port", vara.DefaultControlPort, "VARA TNC control port")
		mycallFlag  = flag.String("mycall", "", "this station's callsign (required)")
		listen      = flag.Bool("listen", false, "listen for an inbound connect instead of dialing target")
		target      = flag.String("target", "", "target callsign to dial (required unless -listen)")
		rigctldAddr = flag.String("rigctld", "", "rigctld address for CAT PTT, e.g. localhost:4532")
		serialPort  = flag.String("ptt-serial", "", "serial port for RTS/DTR PTT keying, e.g. /dev/ttyUSB0")
		serialLine  = flag.String("ptt-line", "RTS", "serial PTT line: RTS or DTR")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	mycall, err := callsign.Parse(*mycallFlag)
	if err != nil {
		logger.Fatalf("invalid -mycall: %v", err)
	}
	if !*listen && *target == "" {
		logger.Fatal("one of -listen or -target is required")
	}

	ctrl, err := vara.Dial(*host, *port, mycall)
	if err != nil {
		logger.Fatalf("dial VARA TNC: %v", err)
	}
	defer ctrl.Close()

	if ptt, err := openPTT(*rigctldAddr, *serialPort, *serialLine); err != nil {
		logger.Fatalf("open PTT: %v", err)
	} else if ptt != nil {
		ctrl.SetPTT(ptt)
	}

	h := &mailbox{log: logger}

	var conn net.Conn
	if *listen {
		logger.Printf("listening as %s", mycall)
		if err := ctrl.Listen(vara.ListenOn); err != nil {
			logger.Fatalf("enable listen: %v", err)
		}
		var other callsign.StationId
		conn, other, err = waitForIncoming(ctrl)
		if err == nil {
			logger.Printf("accepted connect from %s", other)
		}
	} else {
		var to callsign.StationId
		to, err = callsign.Parse(*target)
		if err == nil {
			logger.Printf("connecting to %s", to)
			conn, err = ctrl.Connect(mycall, to, vara.ConnectPath{})
		}
	}
	if err != nil {
		logger.Fatalf("establish link: %v", err)
	}

	e := session.NewExchange(conn, h)
	e.SetLogger(logger)
	if err := e.Run(ident, *listen); err != nil {
		logger.Fatalf("exchange: %v", err)
	}
}

// waitForIncoming blocks until the controller reports a Connected
// transition following an inbound connect request, and reports the
// remote station's callsign from that CONNECTED line.
func waitForIncoming(ctrl *vara.Controller) (net.Conn, callsign.StationId, error) {
	sub, closeSub := ctrl.Subscribe()
	defer closeSub()
	for upd := range sub {
		if upd.Kind != vara.KindConnection {
			continue
		}
		if upd.Connection != vara.Connected {
			continue
		}
		return ctrl.Data(), upd.OtherStation, nil
	}
	return nil, callsign.StationId{}, fmt.Errorf("varafbb: controller closed while waiting for connect")
}

// ptt is satisfied by both rigcontrol/rigctl.Rig and
// rigcontrol/serialptt.Port.
type ptt interface {
	transport.PTTController
}

func openPTT(rigctldAddr, serialPort, serialLine string) (ptt, error) {
	switch {
	case rigctldAddr != "":
		return rigctl.Open(rigctldAddr), nil
	case serialPort != "":
		var line serialptt.Line
		switch serialLine {
		case "RTS":
			line = serialptt.RTS
		case "DTR":
			line = serialptt.DTR
		default:
			return nil, fmt.Errorf("varafbb: unknown ptt-line %q", serialLine)
		}
		return serialptt.Open(serialPort, line)
	default:
		return nil, nil
	}
}

// mailbox is a minimal session.Handler with no outbound traffic: it
// accepts everything offered and logs delivered messages, intended as
// a smoke-test handler rather than a real message store.
type mailbox struct {
	log *log.Logger
}

func (m *mailbox) Outbound() []*session.OutboundMessage { return nil }

func (m *mailbox) GetInboundAnswer(p proposal.Proposal) proposal.Answer {
	return proposal.Accept
}

func (m *mailbox) ProcessInbound(p proposal.Proposal, body []byte) error {
	m.log.Printf("received %s %q (%d bytes)", p.MID, p.Title, len(body))
	return nil
}

func (m *mailbox) SetSent(mid string, rejected bool) {
	m.log.Printf("sent %s (rejected=%v)", mid, rejected)
}

func (m *mailbox) SetDeferred(mid string) {
	m.log.Printf("deferred %s", mid)
}
