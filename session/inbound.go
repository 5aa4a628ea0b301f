// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kc1gsl/varafbb/b2f"
	"github.com/kc1gsl/varafbb/lzhuf"
	"github.com/kc1gsl/varafbb/proposal"
)

// handleInbound runs one inbound turn: collect a batch of offered
// proposals (if any), answer them, and receive the accepted ones.
func (e *Exchange) handleInbound() (quitReceived bool, err error) {
	var lines []string
	var proposals []*proposal.Proposal

loop:
	for {
		line, err := e.nextLine()
		if err != nil {
			return false, err
		}

		if line == "" || line[0] == ';' {
			continue // comment or blank line
		}
		if len(line) < 2 || line[0] != 'F' {
			return false, fmt.Errorf("session: unexpected protocol line %q", line)
		}

		switch line[:2] {
		case "FA", "FB", "FC", "FD":
			lines = append(lines, line)
			prop, err := proposal.ParseProposal(line)
			if err != nil {
				return false, fmt.Errorf("session: parsing proposal: %w", err)
			}
			proposals = append(proposals, prop)

		case proposal.NoMoreMessages: // "FF"
			e.remoteNoMsgs = true
			return false, nil

		case proposal.Quit: // "FQ"
			return true, nil

		case "F>":
			if err := proposal.VerifyBatchTrailer(line, lines); err != nil {
				return false, err
			}
			if len(proposals) == 0 {
				e.remoteNoMsgs = true
				return false, nil
			}
			e.remoteNoMsgs = false
			e.log.Printf("%d proposal(s) received", len(proposals))
			if err := e.answerProposals(proposals); err != nil {
				return false, err
			}
			break loop

		default:
			return false, fmt.Errorf("session: unknown protocol command %q", line[:2])
		}
	}

	for _, prop := range proposals {
		if prop.Answer != proposal.Accept {
			continue
		}
		body, err := e.readCompressed(prop)
		if err != nil {
			return false, err
		}
		if err := e.h.ProcessInbound(*prop, body); err != nil {
			return false, err
		}
	}
	return false, nil
}

// answerProposals asks the handler how to dispose of each proposal
// not already deferred as a within-batch duplicate, then writes the
// FS response line.
func (e *Exchange) answerProposals(props []*proposal.Proposal) error {
	proposal.DeferDuplicates(props)

	for _, p := range props {
		if p.Answer == proposal.Defer {
			e.log.Printf("deferring duplicate %s", p.MID)
			continue
		}
		if p.Code != proposal.Wl2k && p.Code != proposal.Gzip {
			e.log.Printf("deferring %s (unsupported format)", p.MID)
			p.Answer = proposal.Defer
			continue
		}
		p.Answer = e.h.GetInboundAnswer(*p)
		if p.Answer == proposal.Accept {
			e.log.Printf("accepting %s", p.MID)
		}
	}

	line := "FS " + proposal.FormatAnswers(props)
	e.pLog.Printf(">%s", line)
	_, err := fmt.Fprintf(e.conn, "%s\r", line)
	return err
}

// readCompressed reads p's B2 frame and returns the decompressed body.
func (e *Exchange) readCompressed(p *proposal.Proposal) ([]byte, error) {
	frame, err := b2f.ReadFrame(e.rd)
	if err != nil {
		return nil, fmt.Errorf("session: reading frame for %s: %w", p.MID, err)
	}

	p.Title = proposal.DecodeTitle(frame.Title)
	if frame.Offset != p.Offset {
		return nil, fmt.Errorf("session: expected offset %d for %s, got %d", p.Offset, p.MID, frame.Offset)
	}
	e.log.Printf("receiving %s [offset %d]", p.MID, p.Offset)

	zr, err := lzhuf.NewB2Reader(bytes.NewReader(frame.Payload))
	if err != nil {
		return nil, fmt.Errorf("session: decompressing %s: %w", p.MID, err)
	}

	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("session: decompressing %s: %w", p.MID, err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("session: verifying %s: %w", p.MID, err)
	}
	return body, nil
}
