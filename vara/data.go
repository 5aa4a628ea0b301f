// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package vara

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// ErrConnectionAborted is returned by Write once the controller's
// connection state has transitioned to Disconnected. Read does not
// return it: it drains already-buffered data and then returns io.EOF.
var ErrConnectionAborted = errors.New("vara: connection aborted")

// DataConn wraps the VARA data TCP connection as a net.Conn whose
// lifetime tracks the control channel's connection state: reads
// return io.EOF and writes fail as soon as the controller observes
// Disconnected, even if the socket itself has not yet been closed.
type DataConn struct {
	conn net.Conn
	ctrl *Controller

	in     chan []byte
	readMu sync.Mutex
	buf    bytes.Buffer

	closed    chan struct{}
	closeOnce sync.Once
}

func newDataConn(conn net.Conn, ctrl *Controller) *DataConn {
	d := &DataConn{
		conn:   conn,
		ctrl:   ctrl,
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go d.readLoop()
	return d
}

func (d *DataConn) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case d.in <- chunk:
			case <-d.closed:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// signalClosed is called by the controller when the link transitions
// to Disconnected, or on controller shutdown. It is safe to call more
// than once.
func (d *DataConn) signalClosed() {
	d.closeOnce.Do(func() { close(d.closed) })
}

// Read implements net.Conn.
func (d *DataConn) Read(p []byte) (int, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if d.buf.Len() > 0 {
		return d.buf.Read(p)
	}

	select {
	case chunk, ok := <-d.in:
		if !ok {
			return 0, io.EOF
		}
		d.buf.Write(chunk)
		return d.buf.Read(p)
	case <-d.closed:
		// Drain anything already queued before reporting EOF.
		select {
		case chunk := <-d.in:
			d.buf.Write(chunk)
			return d.buf.Read(p)
		default:
			return 0, io.EOF
		}
	}
}

// Write implements net.Conn.
func (d *DataConn) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, ErrConnectionAborted
	default:
	}
	if d.ctrl.State() == Disconnected {
		return 0, ErrConnectionAborted
	}
	return d.conn.Write(p)
}

// Close closes the data socket. If the link is still connected, it
// schedules a best-effort Disconnect on the controller first.
func (d *DataConn) Close() error {
	if d.ctrl.State() != Disconnected {
		go d.ctrl.Disconnect() //nolint:errcheck // best-effort; caller already closing
	}
	d.signalClosed()
	return d.conn.Close()
}

func (d *DataConn) LocalAddr() net.Addr  { return d.conn.LocalAddr() }
func (d *DataConn) RemoteAddr() net.Addr { return d.conn.RemoteAddr() }

func (d *DataConn) SetDeadline(t time.Time) error      { return d.conn.SetDeadline(t) }
func (d *DataConn) SetReadDeadline(t time.Time) error  { return d.conn.SetReadDeadline(t) }
func (d *DataConn) SetWriteDeadline(t time.Time) error { return d.conn.SetWriteDeadline(t) }
