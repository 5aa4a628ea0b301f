// Copyright 2015 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package rigctl is a PTT-only client for hamlib's rigctld TCP daemon.
//
// It speaks rigctld's line-based TCP protocol, trimmed
// to the single operation a B2F forwarding session needs from a rig:
// keying and unkeying the transmitter. VFO frequency and mode control
// is out of scope.
package rigctl

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultAddr is rigctld's conventional bind address.
const DefaultAddr = "localhost:4532"

// TCPTimeout bounds dial, read and write operations.
var TCPTimeout = time.Second

// Rig is a PTT sink backed by a rigctld TCP connection. It implements
// transport.PTTController: SetPTT logs and swallows transport errors
// rather than returning them, since the B2F session has no use for a
// failed key/unkey beyond knowing to retry next time.
type Rig struct {
	mu      sync.Mutex
	conn    *textproto.Conn
	tcpConn net.Conn
	addr    string
	log     *log.Logger
}

// Open returns a Rig that will lazily dial addr on first use.
func Open(addr string) *Rig {
	return &Rig{addr: addr, log: log.New(os.Stderr, "", log.LstdFlags)}
}

// SetLogger overrides the logger used to report failed PTT commands.
func (r *Rig) SetLogger(l *log.Logger) { r.log = l }

// Close closes the connection to rigctld.
func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Ping checks that rigctld is reachable, dialing if necessary.
func (r *Rig) Ping() error {
	_, err := r.cmd(`\get_info`, 1)
	return err
}

// GetPTT returns the rig's current PTT state.
func (r *Rig) GetPTT() (bool, error) {
	resp, err := r.cmd("t", 1)
	if err != nil {
		return false, err
	}
	switch resp[0] {
	case "0":
		return false, nil
	case "1", "2", "3":
		return true, nil
	default:
		return false, fmt.Errorf("rigctl: unexpected PTT value %q", resp[0])
	}
}

// SetPTT implements transport.PTTController by keying or unkeying the
// rig. Unlike the richer set/get API, it has no error return: a failed
// key/unkey is logged and otherwise ignored, matching the "opaque
// command sink" role a PTT driver plays in a forwarding session.
func (r *Rig) SetPTT(on bool) {
	state := 0
	if on {
		state = 1
	}
	if _, err := r.cmd(`\set_ptt %d`, 0, state); err != nil {
		r.log.Printf("rigctl: set_ptt %v: %v", on, err)
	}
}

func (r *Rig) dial() error {
	if r.conn != nil {
		r.conn.Close()
	}
	conn, err := net.DialTimeout("tcp", r.addr, TCPTimeout)
	if err != nil {
		return err
	}
	r.tcpConn = conn
	r.conn = textproto.NewConn(conn)
	return nil
}

// cmd sends a rigctld command expecting nresults values back, making up
// to three attempts. After io.EOF or a network error the connection is
// dropped and redialed on the next attempt; a failed dial ends the loop.
func (r *Rig) cmd(format string, nresults int, args ...interface{}) (resp []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < 3; i++ {
		if r.conn == nil {
			if err = r.dial(); err != nil {
				break
			}
		}

		resp, err = r.doCmd(format, nresults, args...)
		if err == nil {
			break
		}

		_, isNetError := err.(net.Error)
		if err == io.EOF || isNetError {
			r.conn = nil
		}
	}
	return resp, err
}

func (r *Rig) doCmd(format string, nresults int, args ...interface{}) ([]string, error) {
	r.tcpConn.SetDeadline(time.Now().Add(TCPTimeout))
	id, err := r.conn.Cmd(format, args...)
	if err != nil {
		r.tcpConn.SetDeadline(time.Time{})
		return nil, err
	}

	r.conn.StartResponse(id)
	defer r.conn.EndResponse(id)
	defer r.tcpConn.SetDeadline(time.Time{})

	var results []string
	if nresults == 0 {
		resp, err := r.conn.ReadLine()
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(resp, "RPRT 0") {
			return nil, fmt.Errorf("rigctl: command %q returned %s", fmt.Sprintf(format, args...), resp)
		}
		return nil, nil
	}

	for i := 0; i < nresults; i++ {
		resp, err := r.conn.ReadLine()
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(resp, "RPRT") {
			return nil, fmt.Errorf("rigctl: command %q returned %s", format, resp)
		}
		results = append(results, resp)
	}
	if len(results) != nresults {
		return nil, fmt.Errorf("rigctl: command %q returned %d results; expected %d", format, len(results), nresults)
	}
	return results, nil
}
