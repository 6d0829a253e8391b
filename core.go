package bitstate

import (
	"errors"
	"fmt"
)

// Reader is implemented by every register role and exposes its raw value.
type Reader interface {
	State() State
}

// Aged is a Reader that can be ordered by generation.
type Aged interface {
	Reader
	IsLive() bool
}

// core holds the value fields shared by every register role along with the
// read-only queries. Write primitives stay unexported so each role decides
// how a computed change is applied.
type core struct {
	state   State
	changed Mask
	err     error
}

func newCore(s State) core {
	s.History = s.History.copied()
	return core{state: s}
}

// State returns a copy of the four raw words.
func (c *core) State() State {
	return c.state
}

// Get reports whether item i is set. Out-of-range indices read as false and
// flag an error.
func (c *core) Get(i int) bool {
	if !c.checkIndex(i) {
		return false
	}
	return c.state.Bits.Has(i)
}

// IsActive reports whether item i is not disabled.
func (c *core) IsActive(i int) bool {
	if !c.checkIndex(i) {
		return false
	}
	return !c.state.Disabled.Has(i)
}

// InRadioGroup reports whether item i belongs to a configured radio group.
func (c *core) InRadioGroup(i int) bool {
	if !c.checkIndex(i) {
		return false
	}
	return c.state.Radio.Has(i)
}

func (c *core) Values() Mask       { return c.state.Bits }
func (c *core) DisabledMask() Mask { return c.state.Disabled }
func (c *core) RadioMask() Mask    { return c.state.Radio }
func (c *core) History() History   { return c.state.History }
func (c *core) Serial() uint64     { return c.state.History.Serial }
func (c *core) Recent() int        { return c.state.History.Recent }
func (c *core) Status() Status     { return c.state.History.Flags }
func (c *core) Brand() uint8       { return c.state.History.Brand }

// HasError reports whether an error has been flagged since the last reset.
func (c *core) HasError() bool {
	return c.state.History.Flags.Has(StatusError)
}

// HasRace reports whether a proposal was abandoned by the race check.
func (c *core) HasRace() bool {
	return c.state.History.Flags.Has(StatusRace)
}

// Err returns the most recent failure, or nil.
func (c *core) Err() error {
	return c.err
}

// AnyInRange reports whether any item in [first, last] is set.
func (c *core) AnyInRange(first, last int) bool {
	return c.state.Bits&Span(first, last) != 0
}

// AnyIn reports whether any item under mask is set.
func (c *core) AnyIn(mask Mask) bool {
	return c.state.Bits&mask != 0
}

// DiffersInRange compares value and disabled bits with other over
// [first, last].
func (c *core) DiffersInRange(other Reader, first, last int) bool {
	return c.DiffersIn(other, Span(first, last))
}

// DiffersIn compares value and disabled bits with other under mask.
func (c *core) DiffersIn(other Reader, mask Mask) bool {
	if other == nil {
		return false
	}
	return c.state.diff(other.State())&mask != 0
}

// ChangedMask returns the indices touched by the most recent change.
func (c *core) ChangedMask() Mask {
	return c.changed
}

// Changed reports whether the most recent change touched any index in mask.
func (c *core) Changed(mask Mask) bool {
	return c.changed&mask != 0
}

// ChangedAt reports whether the most recent change touched index i.
func (c *core) ChangedAt(i int) bool {
	return c.changed.Has(i)
}

// IsLive reports false; only Live registers represent the present.
func (c *core) IsLive() bool {
	return false
}

// IsOlderThan reports whether c precedes other. Any live register is newer
// than a copy; between copies the smaller serial is older.
func (c *core) IsOlderThan(other Aged) bool {
	if other == nil {
		return false
	}
	if other.IsLive() {
		return true
	}
	return c.state.History.Serial < other.State().History.Serial
}

// Snapshot returns a frozen value-only copy with handlers stripped.
func (c *core) Snapshot() *Register {
	return &Register{core: newCore(c.state), frozen: true}
}

func (c *core) checkIndex(i int) bool {
	if validIndex(i) {
		return true
	}
	c.fail(fmt.Errorf("%w: %d", ErrIndexOutOfRange, i))
	return false
}

func (c *core) fail(err error) {
	c.state.History.Flags |= StatusError
	if errors.Is(err, ErrRace) {
		c.state.History.Flags |= StatusRace
	}
	c.err = err
	assertFailure(err)
}

func (c *core) clearErrors() {
	c.state.History.Flags &^= StatusError | StatusRace
	c.err = nil
}

type op uint8

const (
	opSet op = iota
	opClear
	opToggle
	opEnable
	opDisable
)

func setOrClear(value bool) op {
	if value {
		return opSet
	}
	return opClear
}

func disableOrEnable(disabled bool) op {
	if disabled {
		return opDisable
	}
	return opEnable
}

// next computes the new value of the field touched by o at index i without
// writing it. ok is false for invalid indices, guarded calls on disabled
// items and writes that would not change anything.
func (c *core) next(o op, i int, opts []WriteOption) (f field, value Mask, ok bool) {
	if !c.checkIndex(i) {
		return fieldBits, 0, false
	}
	cfg := applyWriteOptions(opts)
	s := c.state
	if cfg.ifActive && s.Disabled.Has(i) {
		return fieldBits, s.Bits, false
	}
	if o == opToggle {
		o = opSet
		if s.Bits.Has(i) {
			o = opClear
		}
	}
	switch o {
	case opSet:
		f, value = fieldBits, setWithRadio(s.Bits, s.Radio, i)
	case opClear:
		f, value = fieldBits, s.Bits&^Bit(i)
	case opEnable:
		f, value = fieldDisabled, s.Disabled&^Bit(i)
	case opDisable:
		f, value = fieldDisabled, s.Disabled|Bit(i)
	}
	return f, value, value != s.field(f)
}

func (c *core) configureRadio(first, last int) error {
	if !validIndex(first) || !validIndex(last) || first >= last {
		err := fmt.Errorf("%w: bounds [%d, %d]", ErrRadioGroup, first, last)
		c.fail(err)
		return err
	}
	if c.state.Radio&Span(first-1, last+1) != 0 {
		err := fmt.Errorf("%w: [%d, %d] touches an existing group", ErrRadioGroup, first, last)
		c.fail(err)
		return err
	}
	c.state.Radio |= Span(first, last)
	return nil
}
