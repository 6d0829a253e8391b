package bitstate

// Register is a value-only holder of the four raw words. Writes apply
// immediately with no validation or notification. A fresh register advances
// its serial once per effective write; a snapshot keeps the serial it was
// taken with.
type Register struct {
	core
	frozen bool
}

// NewRegister returns an all-zero register.
func NewRegister() *Register {
	return &Register{core: newCore(NewState())}
}

// RegisterFromState returns a register holding s. Status flags are cleared.
func RegisterFromState(s State) *Register {
	return &Register{core: newCore(s)}
}

// IsSnapshot reports whether the register's serial is frozen.
func (r *Register) IsSnapshot() bool {
	return r.frozen
}

func (r *Register) Set(i int, opts ...WriteOption) bool {
	return r.apply(opSet, i, opts)
}

func (r *Register) Clear(i int, opts ...WriteOption) bool {
	return r.apply(opClear, i, opts)
}

// Toggle clears a set item and sets a clear one through the radio-aware path.
func (r *Register) Toggle(i int, opts ...WriteOption) bool {
	return r.apply(opToggle, i, opts)
}

func (r *Register) SetTo(i int, value bool, opts ...WriteOption) bool {
	return r.apply(setOrClear(value), i, opts)
}

func (r *Register) Enable(i int) bool {
	return r.apply(opEnable, i, nil)
}

func (r *Register) Disable(i int) bool {
	return r.apply(opDisable, i, nil)
}

func (r *Register) SetDisabled(i int, disabled bool) bool {
	return r.apply(disableOrEnable(disabled), i, nil)
}

// ConfigureRadioGroup declares [first, last] as a mutually exclusive run.
// Existing values are left untouched.
func (r *Register) ConfigureRadioGroup(first, last int) error {
	return r.configureRadio(first, last)
}

// SetBrand tags the register with an owner-defined brand.
func (r *Register) SetBrand(brand uint8) {
	r.state.History.Brand = brand
}

// ClearErrors resets the error and race flags along with Err.
func (r *Register) ClearErrors() {
	r.clearErrors()
}

func (r *Register) apply(o op, i int, opts []WriteOption) bool {
	f, value, ok := r.next(o, i, opts)
	if !ok {
		return false
	}
	prev := r.state
	r.state.setField(f, value)
	r.changed = r.state.diff(prev)
	r.state.History.Recent = i
	if !r.frozen {
		r.state.History.Serial++
	}
	return true
}
