package vara

import "testing"

func TestParseUpdateSimple(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
	}{
		{"IAMALIVE", KindHeartbeat},
		{"OK", KindResult},
		{"WRONG", KindResult},
		{"BUFFER 128", KindBuffer},
		{"BUSY ON", KindBusy},
		{"BUSY OFF", KindBusy},
		{"PTT ON", KindTransceiver},
		{"REGISTERED KC1GSL", KindRegistered},
		{"DISCONNECTED", KindConnection},
		{"PENDING", KindConnection},
		{"CANCELPENDING", KindConnection},
		{"CONNECTED KC1GSL KW1U", KindConnection},
	}
	for _, tt := range tests {
		upd, err := ParseUpdate(tt.line)
		if err != nil {
			t.Errorf("ParseUpdate(%q): %v", tt.line, err)
			continue
		}
		if upd.Kind != tt.kind {
			t.Errorf("ParseUpdate(%q).Kind = %v; want %v", tt.line, upd.Kind, tt.kind)
		}
	}
}

func TestParseUpdateBuffer(t *testing.T) {
	upd, err := ParseUpdate("BUFFER 42")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if upd.Buffer != 42 {
		t.Errorf("Buffer = %d; want 42", upd.Buffer)
	}
}

func TestParseUpdateBusy(t *testing.T) {
	upd, err := ParseUpdate("BUSY ON")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if !upd.Busy {
		t.Errorf("Busy = false; want true")
	}
}

func TestParseUpdatePTT(t *testing.T) {
	upd, err := ParseUpdate("PTT ON")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if upd.Transceiver != Transmit {
		t.Errorf("Transceiver = %v; want Transmit", upd.Transceiver)
	}

	upd, err = ParseUpdate("PTT OFF")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if upd.Transceiver != Receive {
		t.Errorf("Transceiver = %v; want Receive", upd.Transceiver)
	}
}

func TestParseUpdateRegistered(t *testing.T) {
	upd, err := ParseUpdate("REGISTERED KC1GSL")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if got, want := upd.Registered.String(), "KC1GSL"; got != want {
		t.Errorf("Registered = %q; want %q", got, want)
	}
}

func TestParseUpdateConnected(t *testing.T) {
	upd, err := ParseUpdate("CONNECTED KC1GSL KW1U")
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if upd.Connection != Connected {
		t.Errorf("Connection = %v; want Connected", upd.Connection)
	}
	if got, want := upd.MyStation.String(), "KC1GSL"; got != want {
		t.Errorf("MyStation = %q; want %q", got, want)
	}
	if got, want := upd.OtherStation.String(), "KW1U"; got != want {
		t.Errorf("OtherStation = %q; want %q", got, want)
	}
}

func TestParseUpdateConnectedBadFieldCount(t *testing.T) {
	if _, err := ParseUpdate("CONNECTED KC1GSL"); err == nil {
		t.Error("expected error for CONNECTED with only one station")
	}
}

func TestParseUpdateDisconnectedStates(t *testing.T) {
	cases := map[string]ConnectionState{
		"DISCONNECTED":  Disconnected,
		"PENDING":       Pending,
		"CANCELPENDING": Canceled,
	}
	for line, want := range cases {
		upd, err := ParseUpdate(line)
		if err != nil {
			t.Errorf("ParseUpdate(%q): %v", line, err)
			continue
		}
		if upd.Connection != want {
			t.Errorf("ParseUpdate(%q).Connection = %v; want %v", line, upd.Connection, want)
		}
	}
}

func TestParseUpdateUnrecognized(t *testing.T) {
	if _, err := ParseUpdate("SOME GARBAGE LINE"); err == nil {
		t.Error("expected error for unrecognized control line")
	}
}

func TestParseUpdateBadBuffer(t *testing.T) {
	if _, err := ParseUpdate("BUFFER abc"); err == nil {
		t.Error("expected error for non-numeric BUFFER value")
	}
}
