// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package callsign implements the StationId value type: a normalized,
// validated amateur radio callsign used to address VARA connections and
// to key registration sets.
package callsign

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid is returned by Parse when the input does not match the
// callsign grammar.
var ErrInvalid = errors.New("callsign: invalid station id")

// pattern is compiled once at package initialization and shared by
// every caller.
var pattern = regexp.MustCompile(`^[0-9]?[A-Za-z]+[0-9]+[A-Za-z][A-Za-z0-9]*$`)

// StationId is a non-empty, upper-case amateur radio callsign. The zero
// value is not a valid StationId; construct one with Parse.
type StationId struct {
	call string
}

// Parse validates and normalizes s into a StationId. Lower-case input is
// upper-cased; already upper-case input is returned without copying.
func Parse(s string) (StationId, error) {
	if !pattern.MatchString(s) {
		return StationId{}, ErrInvalid
	}
	return StationId{call: normalize(s)}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for
// constants known to be valid at compile time (e.g. in tests).
func MustParse(s string) StationId {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func normalize(s string) string {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return strings.ToUpper(s)
		}
	}
	return s
}

// String returns the canonical upper-case representation.
func (id StationId) String() string { return id.call }

// IsZero reports whether id is the zero value (never produced by Parse).
func (id StationId) IsZero() bool { return id.call == "" }

// Equal reports whether id and other represent the same station.
func (id StationId) Equal(other StationId) bool { return id.call == other.call }
