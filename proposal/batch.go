// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package proposal

import (
	"errors"
	"fmt"
	"strconv"
)

// Protocol turnover lines outside the proposal/answer exchange itself.
const (
	NoMoreMessages = "FF"
	Quit           = "FQ"
)

// ErrChecksum indicates a proposal batch's trailing "F>" checksum did
// not match the lines that preceded it.
var ErrChecksum = errors.New("proposal: batch checksum mismatch")

// BatchChecksum computes the running 8-bit two's-complement checksum
// of a proposal batch: the sum of every byte in each \r-terminated
// line (including the \r itself), negated mod 256. This is the
// ASCII-level sibling of the B2 frame's binary checksum (package
// b2f), verified by the trailing "F> %02X" line.
func BatchChecksum(lines []string) byte {
	var sum int
	for _, line := range lines {
		for _, c := range line {
			sum += int(c)
		}
		sum += int('\r')
	}
	return byte((-sum) & 0xff)
}

// FormatBatchTrailer renders the "F> XX" checksum line (without the
// trailing \r) for the given proposal lines.
func FormatBatchTrailer(lines []string) string {
	return fmt.Sprintf("F> %02X", BatchChecksum(lines))
}

// VerifyBatchTrailer parses a received "F> XX" line and compares its
// checksum against the lines that preceded it.
func VerifyBatchTrailer(trailer string, lines []string) error {
	trailer = trailer[len("F> "):]
	want, err := strconv.ParseUint(trailer, 16, 8)
	if err != nil {
		return fmt.Errorf("proposal: malformed batch checksum %q: %w", trailer, err)
	}
	if byte(want) != BatchChecksum(lines) {
		return ErrChecksum
	}
	return nil
}

// DeferDuplicates marks every proposal after the first occurrence of
// a given message ID as Defer, so the same message is never accepted
// twice out of one inbound batch. Radio-only gateways sometimes
// resend the same proposal within a batch; deferring the duplicate
// avoids double delivery once the first copy is confirmed received.
func DeferDuplicates(props []*Proposal) {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if seen[p.MID] {
			p.Answer = Defer
		}
		seen[p.MID] = true
	}
}
