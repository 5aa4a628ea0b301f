package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kc1gsl/varafbb/proposal"
)

// memHandler is an in-memory Handler used to drive exchanges in tests.
type memHandler struct {
	mu sync.Mutex

	toSend []*OutboundMessage

	received map[string][]byte
	sent     map[string]bool // mid -> rejected
	deferred map[string]bool

	answer proposal.Answer
}

func newMemHandler() *memHandler {
	return &memHandler{
		received: make(map[string][]byte),
		sent:     make(map[string]bool),
		deferred: make(map[string]bool),
		answer:   proposal.Accept,
	}
}

func (h *memHandler) Outbound() []*OutboundMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toSend
}

func (h *memHandler) GetInboundAnswer(p proposal.Proposal) proposal.Answer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.answer
}

func (h *memHandler) ProcessInbound(p proposal.Proposal, body []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received[p.MID] = body
	return nil
}

func (h *memHandler) SetSent(mid string, rejected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent[mid] = rejected
	h.removeLocked(mid)
}

func (h *memHandler) SetDeferred(mid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deferred[mid] = true
	h.removeLocked(mid)
}

// removeLocked drops mid from toSend once its disposition is final, so
// a message already sent, rejected or deferred isn't offered again on
// the next turn. Callers hold h.mu.
func (h *memHandler) removeLocked(mid string) {
	for i, m := range h.toSend {
		if m.Proposal.MID == mid {
			h.toSend = append(h.toSend[:i], h.toSend[i+1:]...)
			return
		}
	}
}

func newOutboundMessage(mid string, body []byte) *OutboundMessage {
	return &OutboundMessage{
		Proposal: &proposal.Proposal{
			Code:    proposal.Wl2k,
			MsgType: "EM",
			MID:     mid,
			Size:    len(body),
			Title:   "test message " + mid,
		},
		Body: body,
	}
}

func runExchange(t *testing.T, conn net.Conn, h Handler, ident string, master bool, done chan<- error) {
	t.Helper()
	e := NewExchange(conn, h)
	done <- e.Run(ident, master)
}

func TestExchangeDeliversOneMessage(t *testing.T) {
	clientConn, masterConn := net.Pipe()

	clientHandler := newMemHandler()
	msg := newOutboundMessage("MSGID000001", []byte("hello from the client station"))
	clientHandler.toSend = []*OutboundMessage{msg}

	masterHandler := newMemHandler()

	clientErr := make(chan error, 1)
	masterErr := make(chan error, 1)

	go runExchange(t, clientConn, clientHandler, "varafbb-test", false, clientErr)
	go runExchange(t, masterConn, masterHandler, "CMS-test", true, masterErr)

	select {
	case err := <-clientErr:
		if err != nil {
			t.Errorf("client exchange: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client exchange")
	}
	select {
	case err := <-masterErr:
		if err != nil {
			t.Errorf("master exchange: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for master exchange")
	}

	body, ok := masterHandler.received["MSGID000001"]
	if !ok {
		t.Fatal("master never received MSGID000001")
	}
	if string(body) != "hello from the client station" {
		t.Errorf("received body = %q; want %q", body, "hello from the client station")
	}

	if rejected, ok := clientHandler.sent["MSGID000001"]; !ok || rejected {
		t.Errorf("client SetSent(MSGID000001) = (%v, %v); want (false, true)", rejected, ok)
	}
}

func TestExchangeNoMessagesEitherWay(t *testing.T) {
	clientConn, masterConn := net.Pipe()

	clientErr := make(chan error, 1)
	masterErr := make(chan error, 1)

	go runExchange(t, clientConn, newMemHandler(), "varafbb-test", false, clientErr)
	go runExchange(t, masterConn, newMemHandler(), "CMS-test", true, masterErr)

	select {
	case err := <-clientErr:
		if err != nil {
			t.Errorf("client exchange: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client exchange")
	}
	select {
	case err := <-masterErr:
		if err != nil {
			t.Errorf("master exchange: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for master exchange")
	}
}

func TestExchangeRemoteDefers(t *testing.T) {
	clientConn, masterConn := net.Pipe()

	clientHandler := newMemHandler()
	msg := newOutboundMessage("MSGID000002", []byte("deferred body"))
	clientHandler.toSend = []*OutboundMessage{msg}

	masterHandler := newMemHandler()
	masterHandler.answer = proposal.Defer

	clientErr := make(chan error, 1)
	masterErr := make(chan error, 1)

	go runExchange(t, clientConn, clientHandler, "varafbb-test", false, clientErr)
	go runExchange(t, masterConn, masterHandler, "CMS-test", true, masterErr)

	if err := <-clientErr; err != nil {
		t.Errorf("client exchange: %v", err)
	}
	if err := <-masterErr; err != nil {
		t.Errorf("master exchange: %v", err)
	}

	if !clientHandler.deferred["MSGID000002"] {
		t.Error("expected MSGID000002 to be deferred")
	}
	if _, ok := masterHandler.received["MSGID000002"]; ok {
		t.Error("deferred message should not have been received")
	}
}

func TestBanner(t *testing.T) {
	got := Banner("varafbb-1.0")
	want := "[varafbb-1.0-B2FWIHJM$]\r"
	if got != want {
		t.Errorf("Banner() = %q; want %q", got, want)
	}
}
