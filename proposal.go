package bitstate

// PriorView is a read-only projection of a live register as it was when a
// transition round opened.
type PriorView struct {
	*core
}

func newPriorView(s State) PriorView {
	c := newCore(s)
	return PriorView{core: &c}
}

// Proposal is the mutable working copy handed to a validator. Writes apply
// to the copy only, radio groups included, and become visible on the live
// register if the validator accepts and the round commits.
type Proposal struct {
	core
	prior   State
	base    uint64
	signals Mask
	tag     any
}

func (p *Proposal) Set(i int, opts ...WriteOption) bool {
	return p.apply(opSet, i, opts)
}

func (p *Proposal) Clear(i int, opts ...WriteOption) bool {
	return p.apply(opClear, i, opts)
}

func (p *Proposal) Toggle(i int, opts ...WriteOption) bool {
	return p.apply(opToggle, i, opts)
}

func (p *Proposal) SetTo(i int, value bool, opts ...WriteOption) bool {
	return p.apply(setOrClear(value), i, opts)
}

func (p *Proposal) Enable(i int) bool {
	return p.apply(opEnable, i, nil)
}

func (p *Proposal) Disable(i int) bool {
	return p.apply(opDisable, i, nil)
}

func (p *Proposal) SetDisabled(i int, disabled bool) bool {
	return p.apply(disableOrEnable(disabled), i, nil)
}

// Delta returns the indices where the proposal differs from the prior state.
func (p *Proposal) Delta() Mask {
	return p.state.diff(p.prior)
}

// Signals returns the signals delivered to this round, including those that
// arrived while the validator was running.
func (p *Proposal) Signals() Mask {
	return p.signals
}

// Signaled reports whether index i was signaled during this round.
func (p *Proposal) Signaled(i int) bool {
	return p.signals.Has(i)
}

// SignalTag returns the diagnostic tag of the signal that opened the round.
func (p *Proposal) SignalTag() any {
	return p.tag
}

// MarkDone suppresses the automatic sink notification for this commit.
func (p *Proposal) MarkDone() {
	p.state.History.Flags |= StatusDone
}

// MarkError flags the commit with err. The flag is carried onto the live
// register if the round commits.
func (p *Proposal) MarkError(err error) {
	p.state.History.Flags |= StatusError
	if err != nil {
		p.err = err
	}
}

func (p *Proposal) apply(o op, i int, opts []WriteOption) bool {
	f, value, ok := p.next(o, i, opts)
	if !ok {
		return false
	}
	p.state.setField(f, value)
	p.changed = p.Delta()
	return true
}
