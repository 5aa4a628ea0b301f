// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package session

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kc1gsl/varafbb/b2f"
	"github.com/kc1gsl/varafbb/lzhuf"
	"github.com/kc1gsl/varafbb/proposal"
)

// handleOutbound runs one outbound turn: offer a batch of messages
// (if any), then either send FF (nothing more to offer) or FQ (both
// sides have nothing left and the remote already said so).
func (e *Exchange) handleOutbound() (quitSent bool, err error) {
	outbound := e.h.Outbound()

	var sent map[string]bool
	if len(outbound) > 0 {
		sent, err = e.sendOutbound(outbound)
		if err != nil {
			return false, err
		}
	}

	for mid, rejected := range sent {
		if rejected {
			e.h.SetSent(mid, true)
			delete(sent, mid)
		}
	}

	switch {
	case len(outbound) > 0:
		// Turnover is implied by the batch just sent.
	case e.remoteNoMsgs && len(sent) == 0:
		e.pLog.Print(">FQ")
		fmt.Fprint(e.conn, "FQ\r")
		return true, nil
	default:
		e.pLog.Print(">FF")
		fmt.Fprint(e.conn, "FF\r")
	}

	for mid, rejected := range sent {
		e.h.SetSent(mid, rejected)
	}
	return false, nil
}

// sendOutbound offers outbound (capped at proposal.MaxBatchSize),
// waits for the remote's FS answer, and transmits every accepted
// message's compressed body. sent maps message ID to whether the
// remote already had it (true = rejected).
func (e *Exchange) sendOutbound(outbound []*OutboundMessage) (sent map[string]bool, err error) {
	sent = make(map[string]bool)

	if len(outbound) > proposal.MaxBatchSize {
		outbound = outbound[:proposal.MaxBatchSize]
	}

	lines := make([]string, len(outbound))
	for i, m := range outbound {
		lines[i] = m.Proposal.Format()
		e.pLog.Printf(">%s", lines[i])
		fmt.Fprintf(e.conn, "%s\r", lines[i])
	}

	trailer := proposal.FormatBatchTrailer(lines)
	e.pLog.Printf(">%s", trailer)
	fmt.Fprintf(e.conn, "%s\r", trailer)

	var reply string
	for reply == "" {
		line, err := e.nextLine()
		switch {
		case err != nil:
			return sent, err
		case strings.HasPrefix(line, "FS "):
			reply = line
		case strings.HasPrefix(line, ";"):
			continue // comment
		default:
			return sent, fmt.Errorf("session: expected proposal answer, got %q", line)
		}
	}

	props := make([]*proposal.Proposal, len(outbound))
	for i, m := range outbound {
		props[i] = m.Proposal
	}
	if err := proposal.ParseAnswers(reply, props); err != nil {
		return sent, fmt.Errorf("session: parsing proposal answer: %w", err)
	}

	for _, m := range outbound {
		switch m.Proposal.Answer {
		case proposal.Defer:
			e.h.SetDeferred(m.Proposal.MID)
		case proposal.Reject:
			sent[m.Proposal.MID] = true
		case proposal.Accept:
			if err := e.sendCompressed(m); err != nil {
				return sent, err
			}
			sent[m.Proposal.MID] = false
		}
	}
	return sent, nil
}

// sendCompressed LZHUF-compresses m.Body and transmits it as a single
// B2 frame, honoring any resumption offset the remote requested.
func (e *Exchange) sendCompressed(m *OutboundMessage) error {
	e.log.Printf("transmitting %s [offset %d]", m.Proposal.MID, m.Proposal.Offset)

	var buf bytes.Buffer
	zw := lzhuf.NewB2Writer(&buf)
	if _, err := zw.Write(m.Body); err != nil {
		return fmt.Errorf("session: compressing %s: %w", m.Proposal.MID, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("session: compressing %s: %w", m.Proposal.MID, err)
	}

	payload := buf.Bytes()
	if m.Proposal.Offset > len(payload) {
		return fmt.Errorf("session: offset %d exceeds compressed size %d for %s", m.Proposal.Offset, len(payload), m.Proposal.MID)
	}

	frame := b2f.Frame{
		Title:   proposal.EncodeTitle(m.Proposal.Title),
		Offset:  m.Proposal.Offset,
		Payload: payload[m.Proposal.Offset:],
	}
	return b2f.WriteFrame(e.conn, frame)
}
