package bitstate

import (
	"encoding/json"
	"fmt"
)

// State is the serializable value of a register: exactly four words.
type State struct {
	Bits     Mask
	Disabled Mask
	Radio    Mask
	History  History
}

// NewState returns an all-zero state with no recent change recorded.
func NewState() State {
	return State{History: newHistory()}
}

// Words returns the four raw words in storage order: bits, disabled, radio
// groups, packed history.
func (s State) Words() [4]uint64 {
	return [4]uint64{
		uint64(s.Bits & fullMask),
		uint64(s.Disabled & fullMask),
		uint64(s.Radio & fullMask),
		s.History.Pack(),
	}
}

// StateFromWords rebuilds a State from the words produced by Words.
func StateFromWords(words [4]uint64) State {
	return State{
		Bits:     Mask(words[0]) & fullMask,
		Disabled: Mask(words[1]) & fullMask,
		Radio:    Mask(words[2]) & fullMask,
		History:  UnpackHistory(words[3]),
	}
}

type stateWire struct {
	Bits     uint64 `json:"bits"`
	Disabled uint64 `json:"disabled"`
	Radio    uint64 `json:"radio"`
	History  uint64 `json:"history"`
}

// MarshalJSON encodes the state as its four words.
func (s State) MarshalJSON() ([]byte, error) {
	words := s.Words()
	return json.Marshal(stateWire{
		Bits:     words[0],
		Disabled: words[1],
		Radio:    words[2],
		History:  words[3],
	})
}

// UnmarshalJSON decodes the four-word form written by MarshalJSON.
func (s *State) UnmarshalJSON(payload []byte) error {
	var wire stateWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return fmt.Errorf("bitstate: decode state: %w", err)
	}
	*s = StateFromWords([4]uint64{wire.Bits, wire.Disabled, wire.Radio, wire.History})
	return nil
}

// WithoutHistory returns s with a fresh history, keeping values and radio
// configuration. Applications that do not persist generation tracking use it
// before saving or after loading.
func (s State) WithoutHistory() State {
	brand := s.History.Brand
	s.History = newHistory()
	s.History.Brand = brand
	return s
}

func (s State) field(f field) Mask {
	if f == fieldDisabled {
		return s.Disabled
	}
	return s.Bits
}

func (s *State) setField(f field, value Mask) {
	if f == fieldDisabled {
		s.Disabled = value
		return
	}
	s.Bits = value
}

// diff returns the indices whose value or disabled bit differs.
func (s State) diff(other State) Mask {
	return (s.Bits ^ other.Bits) | (s.Disabled ^ other.Disabled)
}

type field uint8

const (
	fieldBits field = iota
	fieldDisabled
)
