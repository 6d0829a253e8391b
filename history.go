package bitstate

import "strings"

// Status holds the diagnostic and control flags of a register.
type Status uint8

const (
	// StatusError marks a failed operation since the last ClearErrors.
	StatusError Status = 1 << iota
	// StatusRace marks a proposal abandoned because the live generation moved.
	StatusRace
	// StatusDone suppresses the next automatic sink notification.
	StatusDone
	// StatusHeld marks a live register that drops new proposals.
	StatusHeld
)

// Has reports whether every flag in f is set.
func (s Status) Has(f Status) bool {
	return s&f == f
}

func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, entry := range []struct {
		flag Status
		name string
	}{
		{StatusError, "error"},
		{StatusRace, "race"},
		{StatusDone, "done"},
		{StatusHeld, "held"},
	} {
		if s.Has(entry.flag) {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, "|")
}

// NoRecent is the Recent value of a register that has not seen a change.
const NoRecent = -1

// History tracks commit order and status for a register.
type History struct {
	// Serial is the generation counter. It advances by one per commit on a
	// live register and is frozen on snapshots.
	Serial uint64
	// Recent is the index of the most recent single incoming change.
	Recent int
	Flags  Status
	// Brand is an owner-defined tag used to tell registers apart when they
	// share callbacks. It survives copies.
	Brand uint8
}

// Packed layout of the history word. Bit 63 is never used.
const (
	serialBits  = 40
	serialMask  = 1<<serialBits - 1
	recentShift = 40
	recentMask  = 0x3f
	recentNone  = recentMask
	flagsShift  = 48
	flagsMask   = 0x0f
	brandShift  = 56
	brandMask   = 0x7f
)

func newHistory() History {
	return History{Recent: NoRecent}
}

// copied returns h with the per-object flags reset, as every copy and clone
// starts without error, race, done or held.
func (h History) copied() History {
	h.Flags = 0
	return h
}

// Pack encodes h into a single word. Serial wraps at 40 bits and Brand is
// truncated to 7 bits.
func (h History) Pack() uint64 {
	recent := uint64(recentNone)
	if validIndex(h.Recent) {
		recent = uint64(h.Recent)
	}
	return h.Serial&serialMask |
		recent<<recentShift |
		uint64(h.Flags&flagsMask)<<flagsShift |
		uint64(h.Brand&brandMask)<<brandShift
}

// UnpackHistory decodes a word produced by History.Pack.
func UnpackHistory(word uint64) History {
	h := History{
		Serial: word & serialMask,
		Recent: int(word >> recentShift & recentMask),
		Flags:  Status(word >> flagsShift & flagsMask),
		Brand:  uint8(word >> brandShift & brandMask),
	}
	if h.Recent == recentNone {
		h.Recent = NoRecent
	}
	return h
}
