package bitstate

import (
	"encoding/json"
	"testing"
)

func TestHistoryPackRoundTrip(t *testing.T) {
	cases := []History{
		newHistory(),
		{Serial: 1, Recent: 0},
		{Serial: 1<<40 - 1, Recent: MaxIndex, Flags: StatusError | StatusRace | StatusDone | StatusHeld, Brand: 127},
		{Serial: 42, Recent: 7, Flags: StatusDone, Brand: 5},
	}
	for _, h := range cases {
		word := h.Pack()
		if word>>63 != 0 {
			t.Fatalf("bit 63 must stay clear, got %x", word)
		}
		if got := UnpackHistory(word); got != h {
			t.Fatalf("round trip mismatch: %+v != %+v", got, h)
		}
	}
}

func TestHistoryPackTruncates(t *testing.T) {
	h := History{Serial: 1<<40 + 3, Recent: 99, Brand: 0xff}
	got := UnpackHistory(h.Pack())
	if got.Serial != 3 {
		t.Fatalf("expected serial to wrap at 40 bits, got %d", got.Serial)
	}
	if got.Recent != NoRecent {
		t.Fatalf("expected invalid recent to pack as none, got %d", got.Recent)
	}
	if got.Brand != 0x7f {
		t.Fatalf("expected brand truncated to 7 bits, got %x", got.Brand)
	}
}

func TestStatusString(t *testing.T) {
	if Status(0).String() != "none" {
		t.Fatalf("unexpected empty status string")
	}
	if got := (StatusError | StatusHeld).String(); got != "error|held" {
		t.Fatalf("unexpected status string %q", got)
	}
}

func TestStateWordsRoundTrip(t *testing.T) {
	s := NewState()
	s.Bits = Bit(0) | Bit(62)
	s.Disabled = Bit(3)
	s.Radio = Span(10, 12)
	s.History = History{Serial: 9, Recent: 62, Brand: 4}

	words := s.Words()
	if got := StateFromWords(words); got != s {
		t.Fatalf("round trip mismatch: %+v != %+v", got, s)
	}
	if got := StateFromWords([4]uint64{1 << 63, 1 << 63, 1 << 63, words[3]}); got.Bits != 0 || got.Disabled != 0 || got.Radio != 0 {
		t.Fatalf("bit 63 must be masked off, got %+v", got)
	}
}

func TestStateJSON(t *testing.T) {
	s := NewState()
	s.Bits = 0b101
	s.History.Serial = 2
	s.History.Recent = 2

	payload, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]uint64
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if len(wire) != 4 || wire["bits"] != 5 || wire["history"] != s.History.Pack() {
		t.Fatalf("unexpected wire form %s", payload)
	}

	var decoded State
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != s {
		t.Fatalf("decoded mismatch: %+v != %+v", decoded, s)
	}
	if err := json.Unmarshal([]byte(`{"bits":"x"}`), &decoded); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStateWithoutHistory(t *testing.T) {
	s := NewState()
	s.Bits = Bit(1)
	s.Radio = Span(0, 2)
	s.History = History{Serial: 7, Recent: 1, Flags: StatusError, Brand: 2}

	got := s.WithoutHistory()
	if got.Bits != s.Bits || got.Radio != s.Radio {
		t.Fatalf("values and configuration must survive")
	}
	if got.History != (History{Recent: NoRecent, Brand: 2}) {
		t.Fatalf("unexpected history %+v", got.History)
	}
}
