// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package vara

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/kc1gsl/varafbb/callsign"
	"github.com/kc1gsl/varafbb/transport"
)

// DefaultHost and DefaultControlPort are the VARA TNC's conventional
// bind address and control port; the data port is control port + 1.
const (
	DefaultHost        = "127.0.0.1"
	DefaultControlPort = 8300
)

var (
	ErrClosed         = errors.New("vara: controller closed")
	ErrCommandFailed  = errors.New("vara: command returned WRONG")
	ErrConnectFailed  = errors.New("vara: connect did not reach Connected state")
	ErrAlreadyBusy    = errors.New("vara: connect already in progress")
)

// Controller owns the VARA control TCP connection: a request/reply
// channel for commands, plus a fan-out of unsolicited status updates.
type Controller struct {
	ctrl net.Conn
	mu   sync.Mutex // guards pending and writes, keeping submission order == reply order

	pending []chan error

	stateMu      sync.RWMutex
	state        ConnectionState
	myStation    callsign.StationId
	otherStation callsign.StationId
	busy         bool
	buffer       int
	registered   map[string]bool
	lastAlive    time.Time

	updates *broadcaster

	ptt transport.PTTController

	data *DataConn

	closed   bool
	closeErr error
}

// Dial connects to a VARA TNC's control and data ports at host (data
// port is assumed to be the control port + 1) and sets mycall.
func Dial(host string, controlPort int, mycall callsign.StationId) (*Controller, error) {
	return DialContext(context.Background(), host, controlPort, mycall)
}

// DialContext is Dial with cancellation support for the initial TCP
// connects. The control loop itself runs for the lifetime of the
// Controller regardless of ctx.
func DialContext(ctx context.Context, host string, controlPort int, mycall callsign.StationId) (*Controller, error) {
	if host == "" {
		host = DefaultHost
	}
	if controlPort == 0 {
		controlPort = DefaultControlPort
	}

	var d net.Dialer
	ctrlAddr := net.JoinHostPort(host, strconv.Itoa(controlPort))
	ctrlConn, err := d.DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return nil, fmt.Errorf("vara: dial control port: %w", err)
	}

	dataAddr := net.JoinHostPort(host, strconv.Itoa(controlPort+1))
	dataConn, err := d.DialContext(ctx, "tcp", dataAddr)
	if err != nil {
		ctrlConn.Close()
		return nil, fmt.Errorf("vara: dial data port: %w", err)
	}

	c := newController(ctrlConn, dataConn)
	go c.runControlLoop()

	if err := c.SetCall(mycall, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("vara: set mycall: %w", err)
	}

	return c, nil
}

func newController(ctrl, data net.Conn) *Controller {
	c := &Controller{
		ctrl:       ctrl,
		registered: make(map[string]bool),
		updates:    newBroadcaster(),
	}
	c.data = newDataConn(data, c)
	return c
}

// SetPTT registers the PTT sink the controller should drive in
// response to PTT ON/OFF control lines. If nil, PTT updates are
// ignored.
func (c *Controller) SetPTT(ptt transport.PTTController) { c.ptt = ptt }

func (c *Controller) runControlLoop() {
	r := bufio.NewReader(c.ctrl)
	for {
		line, err := r.ReadString('\r')
		if err != nil {
			c.shutdown(err)
			return
		}
		line = line[:len(line)-1] // strip trailing \r

		upd, err := ParseUpdate(line)
		if err != nil {
			// unrecognized informational line: log and drop
			log.Printf("vara: dropping control line %q: %v", line, err)
			continue
		}

		if upd.Kind == KindResult {
			c.resolveNext(upd.Result)
			continue
		}

		c.applyUpdate(upd)
		c.updates.Send(upd)
	}
}

func (c *Controller) applyUpdate(upd Update) {
	c.stateMu.Lock()
	switch upd.Kind {
	case KindHeartbeat:
		c.lastAlive = time.Now()
	case KindBuffer:
		c.buffer = upd.Buffer
	case KindBusy:
		c.busy = upd.Busy
	case KindConnection:
		c.state = upd.Connection
		if upd.Connection == Connected {
			c.myStation = upd.MyStation
			c.otherStation = upd.OtherStation
		}
		if upd.Connection == Disconnected {
			c.myStation = callsign.StationId{}
			c.otherStation = callsign.StationId{}
			c.stateMu.Unlock()
			c.data.signalClosed()
			return
		}
	case KindRegistered:
		c.registered[upd.Registered.String()] = true
	}
	c.stateMu.Unlock()

	if upd.Kind == KindTransceiver && c.ptt != nil {
		c.ptt.SetPTT(upd.Transceiver == Transmit)
	}
}

// resolveNext pops the oldest pending reply slot and resolves it,
// per the reply-ordering guarantee: exactly one OK/WRONG per issued
// command, FIFO.
func (c *Controller) resolveNext(result CommandResult) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		// mismatched reply: log and drop
		log.Printf("vara: dropping command reply %v with no pending command", result)
		return
	}
	ch := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()

	if result == ResultWrong {
		ch <- ErrCommandFailed
	} else {
		ch <- nil
	}
	close(ch)
}

func (c *Controller) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- ErrClosed
		close(ch)
	}

	c.data.signalClosed()
	c.updates.Close()
}

// do submits cmd and blocks for its reply, in FIFO order with any
// other concurrent callers.
func (c *Controller) do(cmd string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	reply := make(chan error, 1)
	c.pending = append(c.pending, reply)
	_, err := fmt.Fprintf(c.ctrl, "%s\r", cmd)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return <-reply
}

// Listen enables or disables the TNC's response to inbound connect
// requests.
func (c *Controller) Listen(mode ListenMode) error { return c.do(renderListen(mode)) }

// SetCall sets the primary callsign and any auxiliary callsigns the
// TNC should answer to.
func (c *Controller) SetCall(primary callsign.StationId, aliases []callsign.StationId) error {
	return c.do(renderSetCall(primary, aliases))
}

// SetCompression selects the TNC's own link-layer compression.
func (c *Controller) SetCompression(mode CompressionMode) error {
	return c.do(renderSetCompression(mode))
}

// SetBandwidth selects the VARA HF channel bandwidth.
func (c *Controller) SetBandwidth(bw Bandwidth) error { return c.do(renderSetBandwidth(bw)) }

// Abort immediately aborts an in-progress connect or the active link.
func (c *Controller) Abort() error { return c.do(renderAbort()) }

// Disconnect gracefully tears down the active link. It is a no-op if
// already disconnected.
func (c *Controller) Disconnect() error {
	if c.State() == Disconnected {
		return nil
	}
	return c.do(renderDisconnect())
}

// Connect issues a CONNECT command and blocks until the link either
// reaches Connected or the connect attempt fails.
//
// It resolves by awaiting the first post-OK connection transition,
// per the B2F/VARA connect FSM: success iff that transition lands on
// Connected.
func (c *Controller) Connect(origin, target callsign.StationId, path ConnectPath) (net.Conn, error) {
	sub := c.updates.Subscribe()
	defer sub.Close()

	if err := c.do(renderConnect(origin, target, path)); err != nil {
		return nil, err
	}

	for upd := range sub.Updates() {
		if upd.Kind != KindConnection {
			continue
		}
		if upd.Connection == Connected {
			return c.data, nil
		}
		return nil, ErrConnectFailed
	}
	return nil, ErrClosed
}

// Data returns the data-plane connection. It is valid to read and
// write before a link is established; Write returns ErrConnectionAborted
// while the state is Disconnected, and for good once a DISCONNECTED line
// or controller shutdown has closed the stream. Callers accepting an inbound
// connect (after Listen) use this to obtain the stream Connect would
// otherwise have returned.
func (c *Controller) Data() net.Conn { return c.data }

// State returns the controller's current connection state.
func (c *Controller) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Status is a point-in-time snapshot of the controller's observables.
//
// MyStation and OtherStation are only meaningful while Connection is
// Connected: they carry the two callsigns from the CONNECTED line,
// which for an inbound accept (see Data) is the only place the
// remote station's identity is learned.
type Status struct {
	Connection   ConnectionState
	MyStation    callsign.StationId
	OtherStation callsign.StationId
	Busy         bool
	Buffer       int
	LastAlive    time.Time
	Registered   []string
}

// Status returns a copy of the controller's current status snapshot.
func (c *Controller) Status() Status {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	regs := make([]string, 0, len(c.registered))
	for call := range c.registered {
		regs = append(regs, call)
	}
	return Status{
		Connection:   c.state,
		MyStation:    c.myStation,
		OtherStation: c.otherStation,
		Busy:         c.busy,
		Buffer:       c.buffer,
		LastAlive:    c.lastAlive,
		Registered:   regs,
	}
}

// ConnectedStations returns the two callsigns from the most recent
// CONNECTED line, and whether the controller is currently connected.
// For an inbound accept (after Listen), this is how the caller learns
// which remote station connected.
func (c *Controller) ConnectedStations() (mine, other callsign.StationId, ok bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.myStation, c.otherStation, c.state == Connected
}

// Subscribe returns a channel of unsolicited updates. The caller must
// call the returned close function when done to release resources.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	sub := c.updates.Subscribe()
	return sub.Updates(), sub.Close
}

// Close closes the control and data connections, reporting every
// failure rather than just the first.
func (c *Controller) Close() error {
	c.shutdown(ErrClosed)
	return multierr.Combine(c.ctrl.Close(), c.data.Close())
}
