// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package session orchestrates a single B2F forwarding exchange over
// an already-connected net.Conn (typically the data-plane stream
// returned by vara.Controller.Connect): the handshake banner, the
// proposal/answer batches (package proposal), and the compressed
// message transfer (packages lzhuf and b2f).
package session

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/kc1gsl/varafbb/proposal"
)

// OutboundMessage pairs a proposal describing a message with the
// plaintext body to compress and send if the proposal is accepted.
type OutboundMessage struct {
	Proposal *proposal.Proposal
	Body     []byte
}

// Handler supplies the application-level policy an Exchange needs:
// what to offer, how to answer what's offered, and what to do with
// what arrives. It deliberately knows nothing about the wire protocol.
type Handler interface {
	// Outbound returns the messages this station wants to offer this
	// exchange. At most proposal.MaxBatchSize are sent per turn; the
	// rest remain queued for a later exchange.
	Outbound() []*OutboundMessage

	// GetInboundAnswer decides how to answer a single inbound
	// proposal not already deferred as a duplicate.
	GetInboundAnswer(p proposal.Proposal) proposal.Answer

	// ProcessInbound is called with the decompressed body of an
	// accepted inbound message.
	ProcessInbound(p proposal.Proposal, body []byte) error

	// SetSent reports the final disposition of an offered message:
	// rejected is true if the remote already had it.
	SetSent(mid string, rejected bool)

	// SetDeferred reports that an offered message was deferred by the
	// remote and should be retried in a future exchange.
	SetDeferred(mid string)
}

// FeatureFlags is the B2F capability token advertised in the
// handshake banner: B2 Forward, Basic Binary, FBB Compression,
// Winlink, Internet relay, HF, compressed batch, Message-ID, checksum.
const FeatureFlags = "B2FWIHJM$"

// Banner renders the handshake line a client emits immediately after
// connecting, where ident is conventionally "<program>-<version>".
func Banner(ident string) string {
	return fmt.Sprintf("[%s-%s]\r", ident, FeatureFlags)
}

// Exchange drives one B2F session turn-by-turn over conn until either
// side sends FQ.
type Exchange struct {
	conn net.Conn
	rd   *bufio.Reader
	h    Handler

	log  *log.Logger
	pLog *log.Logger // protocol-trace logger, one line per wire command

	remoteNoMsgs bool
}

// NewExchange wraps conn for a B2F exchange driven by h.
func NewExchange(conn net.Conn, h Handler) *Exchange {
	return &Exchange{
		conn: conn,
		rd:   bufio.NewReader(conn),
		h:    h,
		log:  log.New(io.Discard, "", 0),
		pLog: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets the logger used for session-level progress messages.
func (e *Exchange) SetLogger(l *log.Logger) { e.log = l }

// SetTraceLogger sets the logger used to echo every line sent and
// parsed on the wire, one per call, mirroring fbb.Session's pLog.
func (e *Exchange) SetTraceLogger(l *log.Logger) { e.pLog = l }

// Run exchanges handshake banners and then alternates outbound and
// inbound turns until the session ends.
//
// master distinguishes the two roles of a B2F exchange: the answering
// station (e.g. a CMS or RMS gateway, master == true) sends its banner
// first and waits; the connecting station (master == false) reads the
// master's banner before sending its own, and then always opens the
// first message turnover — even an empty one (FF) — with the master
// replying in kind. This ordering, not just role, is what keeps a
// synchronous stream from having both ends write before either reads.
func (e *Exchange) Run(ident string, master bool) error {
	banner := Banner(ident)

	if master {
		e.pLog.Printf(">%s", banner[:len(banner)-1])
		if _, err := io.WriteString(e.conn, banner); err != nil {
			return fmt.Errorf("session: writing banner: %w", err)
		}
	}

	peerBanner, err := e.nextLine()
	if err != nil {
		return fmt.Errorf("session: reading peer banner: %w", err)
	}
	e.pLog.Printf("<%s", peerBanner)

	if !master {
		e.pLog.Printf(">%s", banner[:len(banner)-1])
		if _, err := io.WriteString(e.conn, banner); err != nil {
			return fmt.Errorf("session: writing banner: %w", err)
		}
	}

	for {
		var quitSent, quitReceived bool
		var err error

		if master {
			quitReceived, err = e.handleInbound()
			if err != nil {
				return err
			}
			if !quitReceived {
				quitSent, err = e.handleOutbound()
				if err != nil {
					return err
				}
			}
		} else {
			quitSent, err = e.handleOutbound()
			if err != nil {
				return err
			}
			if !quitSent {
				quitReceived, err = e.handleInbound()
				if err != nil {
					return err
				}
			}
		}

		if quitSent || quitReceived {
			return nil
		}
	}
}

// nextLine reads one \r-terminated protocol line, stripping the \r.
func (e *Exchange) nextLine() (string, error) {
	line, err := e.rd.ReadString('\r')
	if err != nil {
		return "", err
	}
	return line[:len(line)-1], nil
}
