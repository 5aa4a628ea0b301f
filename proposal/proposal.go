// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package proposal implements the B2F ASCII proposal grammar: the
// line-based, \r-terminated FA/FB/FC/F>/FS/FF/FQ exchange that two
// B2F peers use to offer, accept, defer and reject messages before
// the binary B2 frame (see package b2f) carries the actual bytes.
package proposal

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/paulrosania/go-charset/charset"
	_ "github.com/paulrosania/go-charset/data"
)

// ProtocolOffsetSizeLimit is the largest resumption offset the B2F
// binary protocol can express (6 ASCII digits). RMS Express silently
// resets larger requested offsets to 0 instead of rejecting them, and
// we follow that behavior for interoperability.
const ProtocolOffsetSizeLimit = 999999

// MaxBatchSize caps the number of proposals offered in a single
// outbound batch before a prompt ("F>") is expected.
const MaxBatchSize = 5

// Code identifies the proposal's wire format.
type Code byte

const (
	Legacy  Code = 'A' // FA: plain/private legacy proposal
	LegacyB Code = 'B' // FB: bulletin legacy proposal
	Wl2k    Code = 'C' // FC: Winlink/BQP extended B2 proposal
	Gzip    Code = 'D' // FC-compatible gzip-compressed experiment
)

// Answer is a B2F proposal disposition, both as parsed from and
// written to the wire: its byte value is the canonical response
// character used in an "FS" line.
type Answer byte

const (
	Unanswered Answer = 0
	Accept     Answer = 'Y'
	Reject     Answer = 'N'
	Defer      Answer = 'L'
)

// Proposal is a single offered message, either outbound (about to be
// sent) or inbound (received and awaiting a local disposition).
type Proposal struct {
	Code Code

	// MsgType is "P", "B" or "T" for a legacy (FA/FB) proposal, and
	// "EM" for a Winlink/BQP (FC) proposal.
	MsgType string

	MID            string
	Sender         string
	MBO            string
	Recipient      string
	Size           int // uncompressed size, bytes
	CompressedSize int

	// Title and Offset are populated once the proposal is Accepted
	// and its B2 frame header has been read (see package b2f).
	Title  string
	Offset int

	Answer Answer
}

// ParseProposal parses a single FA/FB/FC proposal line (without the
// trailing \r).
func ParseProposal(line string) (*Proposal, error) {
	if len(line) < 2 {
		return nil, fmt.Errorf("proposal: line too short: %q", line)
	}

	switch line[:2] {
	case "FA", "FB":
		return parseLegacyProposal(line)
	case "FC", "FD":
		return parseWl2kProposal(line)
	default:
		return nil, fmt.Errorf("proposal: unknown proposal tag %q", line[:2])
	}
}

// A legacy proposal is "FA/FB <type> <sender> <mbo> <recipient> <msgid> <size>".
func parseLegacyProposal(line string) (*Proposal, error) {
	fields := strings.Fields(line[3:])
	if len(fields) != 6 {
		return nil, fmt.Errorf("proposal: expected 6 fields in legacy proposal, got %d", len(fields))
	}

	size, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("proposal: bad size: %w", err)
	}

	code := Legacy
	if line[1] == 'B' {
		code = LegacyB
	}

	return &Proposal{
		Code:      code,
		MsgType:   fields[0],
		Sender:    fields[1],
		MBO:       fields[2],
		Recipient: fields[3],
		MID:       fields[4],
		Size:      size,
	}, nil
}

func parseWl2kProposal(line string) (*Proposal, error) {
	fields := strings.Fields(line[3:])
	if len(fields) < 4 {
		return nil, fmt.Errorf("proposal: expected at least 4 fields in Wl2k proposal, got %d", len(fields))
	}
	if fields[0] != "EM" {
		return nil, fmt.Errorf("proposal: unsupported message type %q", fields[0])
	}

	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("proposal: bad uncompressed size: %w", err)
	}
	compressedSize, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("proposal: bad compressed size: %w", err)
	}

	code := Wl2k
	if line[1] == 'D' {
		code = Gzip
	}

	p := &Proposal{
		Code:           code,
		MsgType:        fields[0],
		MID:            fields[1],
		Size:           size,
		CompressedSize: compressedSize,
	}

	if len(fields) >= 6 {
		p.Sender = fields[4]
		p.MBO = fields[5]
	}
	if len(fields) >= 7 {
		p.Recipient = fields[6]
	}

	return p, nil
}

// Format renders p as the proposal line the original sender would
// transmit, without a trailing \r.
func (p *Proposal) Format() string {
	switch p.Code {
	case Legacy, LegacyB:
		return fmt.Sprintf("F%c %s %s %s %s %s %d", p.Code, p.MsgType, p.Sender, p.MBO, p.Recipient, p.MID, p.Size)
	default:
		return fmt.Sprintf("F%c %s %s %d %d", p.Code, p.MsgType, p.MID, p.Size, p.CompressedSize)
	}
}

// ErrTooManyAnswers is returned by ParseAnswers when the answer line
// carries more dispositions than there were outstanding proposals.
var ErrTooManyAnswers = errors.New("proposal: got answer for more proposals than expected")

// ParseAnswers parses an "FS <choices>" line (with or without the
// "FS " prefix) and applies each disposition, in order, to props.
//
// An accept token may carry a resumption offset ("A<offset>" /
// "!<offset>"); offsets beyond ProtocolOffsetSizeLimit are silently
// reset to 0, matching RMS Express behavior.
func ParseAnswers(line string, props []*Proposal) error {
	line = strings.TrimPrefix(line, "FS ")

	for i := 0; len(line) > 0; i++ {
		if i >= len(props) {
			return ErrTooManyAnswers
		}
		p := props[i]

		c := line[0]
		line = line[1:]

		switch c {
		case 'Y', 'y', '+':
			p.Answer = Accept
		case 'N', 'n', 'R', 'r', '-':
			p.Answer = Reject
		case 'L', 'l', '=', 'H', 'h':
			p.Answer = Defer
		case 'A', 'a', '!':
			idx := strings.IndexFunc(line, func(r rune) bool { return r < '0' || r > '9' })
			if idx < 0 {
				idx = len(line)
			}
			if idx == 0 {
				return errors.New("proposal: accept-with-offset token missing digits")
			}
			p.Answer = Accept
			p.Offset, _ = strconv.Atoi(line[:idx])
			if p.Offset > ProtocolOffsetSizeLimit {
				p.Offset = 0
			}
			line = line[idx:]
		default:
			return fmt.Errorf("proposal: invalid answer character %q", c)
		}
	}
	return nil
}

// FormatAnswers renders the dispositions of props as an "FS" line
// body (without the "FS " prefix or trailing \r), one character per
// proposal in order.
func FormatAnswers(props []*Proposal) string {
	b := make([]byte, len(props))
	for i, p := range props {
		b[i] = byte(p.Answer)
	}
	return string(b)
}

var titleDecoder = &mime.WordDecoder{
	CharsetReader: func(cs string, input io.Reader) (io.Reader, error) {
		return charset.NewReader(cs, input)
	},
}

// DecodeTitle decodes a possibly RFC 2047 encoded-word proposal
// title. Real-world gateways put the raw message subject header here,
// which may carry non-ASCII text behind a declared legacy charset;
// go-charset supplies the conversion tables mime.WordDecoder needs
// for charsets the standard library does not know natively.
func DecodeTitle(raw string) string {
	decoded, err := titleDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// EncodeTitle word-encodes title for transmission, since the B2F
// binary header's title field must be ASCII-only.
func EncodeTitle(title string) string {
	return mime.QEncoding.Encode("utf-8", title)
}
