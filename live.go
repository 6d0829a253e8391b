package bitstate

import (
	"fmt"
	"time"
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseValidating
	phaseNotifying
)

// Live is a register wired to a validator, a commit hook and/or a sink.
// Every effective write runs a transition round:
//
//	propose -> validate -> commit -> notify
//
// Live is not safe for concurrent use. A validator that lets other code
// write to the same register while it runs has its proposal abandoned by the
// race check.
type Live struct {
	core
	cfg liveConfig

	// round is the proposal whose validator is running; it receives the
	// signals that arrive in the meantime.
	round *Proposal
	phase phase
	// pending collects signals raised while a commit is being notified;
	// pendingTag is the tag of the first of them.
	pending    Mask
	pendingTag any
}

// NewLive constructs a live register, all-zero unless WithState is given.
func NewLive(opts ...Option) *Live {
	cfg := applyOptions(opts)
	if cfg.logger == nil {
		cfg.logger = noopTransitionLogger{}
	}
	initial := NewState()
	if cfg.initial != nil {
		initial = *cfg.initial
	}
	if cfg.brand != nil {
		initial.History.Brand = *cfg.brand
	}
	cfg.initial, cfg.brand = nil, nil
	return &Live{core: newCore(initial), cfg: cfg}
}

// Clone returns a deep copy sharing the same handlers. The copy starts with
// no status flags and an empty change mask.
func (l *Live) Clone() *Live {
	return &Live{core: newCore(l.state), cfg: l.cfg}
}

// IsLive reports whether a validator, commit hook or sink is attached. A
// register without any still commits writes but ages like a copy.
func (l *Live) IsLive() bool {
	return l.cfg.validator != nil || l.cfg.hook != nil || l.cfg.sink != nil
}

// IsOlderThan reports false while l is live: a live register is never older
// than anything.
func (l *Live) IsOlderThan(other Aged) bool {
	if l.IsLive() {
		return false
	}
	return l.core.IsOlderThan(other)
}

func (l *Live) Set(i int, opts ...WriteOption) bool {
	return l.apply(opSet, i, opts)
}

func (l *Live) Clear(i int, opts ...WriteOption) bool {
	return l.apply(opClear, i, opts)
}

// Toggle clears a set item and sets a clear one through the radio-aware path.
func (l *Live) Toggle(i int, opts ...WriteOption) bool {
	return l.apply(opToggle, i, opts)
}

func (l *Live) SetTo(i int, value bool, opts ...WriteOption) bool {
	return l.apply(setOrClear(value), i, opts)
}

func (l *Live) Enable(i int) bool {
	return l.apply(opEnable, i, nil)
}

func (l *Live) Disable(i int) bool {
	return l.apply(opDisable, i, nil)
}

func (l *Live) SetDisabled(i int, disabled bool) bool {
	return l.apply(disableOrEnable(disabled), i, nil)
}

// ConfigureRadioGroup declares [first, last] as a mutually exclusive run.
// It does not run a transition round.
func (l *Live) ConfigureRadioGroup(first, last int) error {
	if err := l.outsideCallbacks("configure radio group"); err != nil {
		return err
	}
	return l.configureRadio(first, last)
}

// Signal reports an externally observed event at index i to the validator.
// While a validator runs the signal joins its proposal instead of opening a
// new round; while a commit is being notified it is delivered in one
// follow-up round after the current one completes.
func (l *Live) Signal(i int, tag any) {
	if !l.checkIndex(i) {
		return
	}
	if l.Held() {
		l.log(TransitionLogEvent{Kind: TransitionDropped, Signals: Bit(i)})
		return
	}
	switch l.phase {
	case phaseValidating:
		l.round.signals |= Bit(i)
		l.log(TransitionLogEvent{Kind: TransitionCoalesced, Serial: l.round.base + 1, Signals: l.round.signals})
		return
	case phaseNotifying:
		if l.pending == 0 {
			l.pendingTag = tag
		}
		l.pending |= Bit(i)
		return
	}
	l.signalRound(Bit(i), tag)
	l.drain()
}

// Hold makes the register drop new proposals and signals until Resume.
func (l *Live) Hold() error {
	if err := l.outsideCallbacks("hold"); err != nil {
		return err
	}
	l.state.History.Flags |= StatusHeld
	return nil
}

// Resume re-enables proposals after Hold.
func (l *Live) Resume() error {
	if err := l.outsideCallbacks("resume"); err != nil {
		return err
	}
	l.state.History.Flags &^= StatusHeld
	return nil
}

// Held reports whether the register is on hold.
func (l *Live) Held() bool {
	return l.state.History.Flags.Has(StatusHeld)
}

// InRound reports whether a validator or commit hook is running.
func (l *Live) InRound() bool {
	return l.phase != phaseIdle
}

// ClearErrors resets the error and race flags along with Err.
func (l *Live) ClearErrors() {
	l.clearErrors()
}

// SetBrand tags the register with an owner-defined brand.
func (l *Live) SetBrand(brand uint8) {
	l.state.History.Brand = brand
}

// Sink returns the attached sink, or nil.
func (l *Live) Sink() Sink {
	return l.cfg.sink
}

// ObserverCount reports the sink's observer count when it tracks one.
func (l *Live) ObserverCount() int {
	if counter, ok := l.cfg.sink.(ObserverCounter); ok {
		return counter.ObserverCount()
	}
	return 0
}

// Detach releases the sink when it supports it and stops notifying it.
func (l *Live) Detach() {
	if detacher, ok := l.cfg.sink.(Detacher); ok {
		detacher.Detach()
	}
	l.cfg.sink = nil
}

func (l *Live) apply(o op, i int, opts []WriteOption) bool {
	f, value, ok := l.next(o, i, opts)
	if !ok {
		return false
	}
	if l.Held() {
		l.log(TransitionLogEvent{Kind: TransitionDropped, Recent: i, Changed: Bit(i)})
		return false
	}
	p := l.propose(i)
	p.state.setField(f, value)
	p.changed = p.Delta()
	committed := l.run(p)
	l.drain()
	return committed
}

// propose opens a working copy of the live values with a tentative next
// serial. Signal rounds pass NoRecent.
func (l *Live) propose(recent int) *Proposal {
	working := l.state
	working.History = working.History.copied()
	working.History.Serial++
	working.History.Recent = recent
	return &Proposal{
		core:  core{state: working},
		prior: l.state,
		base:  l.state.History.Serial,
	}
}

func (l *Live) run(p *Proposal) bool {
	start := time.Now()
	prior := newPriorView(p.prior)
	if l.cfg.validator != nil {
		if !l.validate(prior, p) {
			l.log(l.roundEvent(TransitionRejected, p, 0, start, nil))
			return false
		}
		if serial := l.state.History.Serial; serial != p.base {
			err := fmt.Errorf("%w: proposal based on serial %d, register at %d", ErrRace, p.base, serial)
			l.log(l.roundEvent(TransitionAbandoned, p, 0, start, err))
			l.fail(err)
			return false
		}
	}
	changed := p.Delta()
	if changed == 0 {
		l.log(l.roundEvent(TransitionNoop, p, 0, start, nil))
		return false
	}
	l.commit(p, changed)
	l.log(l.roundEvent(TransitionCommitted, p, changed, start, nil))
	l.notify(prior, changed)
	return true
}

// validate runs the validator with p as the open round. The outer round is
// restored even if the validator panics.
func (l *Live) validate(prior PriorView, p *Proposal) bool {
	outerRound, outerPhase := l.round, l.phase
	l.round, l.phase = p, phaseValidating
	defer func() {
		l.round, l.phase = outerRound, outerPhase
	}()
	return l.cfg.validator.Validate(prior, p)
}

func (l *Live) commit(p *Proposal, changed Mask) {
	const sticky = StatusError | StatusRace
	current := l.state.History
	proposed := p.state.History
	l.state.Bits = p.state.Bits
	l.state.Disabled = p.state.Disabled
	l.state.History = History{
		Serial: p.base + 1,
		Recent: proposed.Recent,
		Flags:  current.Flags&(sticky|StatusHeld) | proposed.Flags&(sticky|StatusDone),
		Brand:  current.Brand,
	}
	if p.err != nil {
		l.err = p.err
	}
	l.changed = changed
}

func (l *Live) notify(prior PriorView, changed Mask) {
	outer := l.phase
	l.phase = phaseNotifying
	defer func() {
		l.state.History.Flags &^= StatusDone
		l.phase = outer
	}()
	switch {
	case l.cfg.hook != nil:
		l.cfg.hook.AfterCommit(prior, l)
	case l.cfg.sink != nil && !l.state.History.Flags.Has(StatusDone):
		l.cfg.sink.Pump(changed)
	}
}

func (l *Live) signalRound(signals Mask, tag any) bool {
	if l.cfg.validator == nil {
		return false
	}
	p := l.propose(NoRecent)
	p.signals = signals
	p.tag = tag
	return l.run(p)
}

// drain delivers signals raised during notification once the register is
// back between rounds. Each batch runs as a single round.
func (l *Live) drain() {
	for l.phase == phaseIdle && l.pending != 0 {
		signals, tag := l.pending, l.pendingTag
		l.pending, l.pendingTag = 0, nil
		if l.Held() {
			l.log(TransitionLogEvent{Kind: TransitionDropped, Signals: signals})
			return
		}
		l.signalRound(signals, tag)
	}
}

func (l *Live) outsideCallbacks(action string) error {
	if l.phase == phaseIdle {
		return nil
	}
	err := fmt.Errorf("%w: %s", ErrInCallback, action)
	l.fail(err)
	return err
}

func (l *Live) roundEvent(kind TransitionKind, p *Proposal, changed Mask, start time.Time, err error) TransitionLogEvent {
	return TransitionLogEvent{
		Kind:     kind,
		Serial:   p.base + 1,
		Recent:   p.state.History.Recent,
		Changed:  changed,
		Signals:  p.signals,
		Brand:    l.state.History.Brand,
		Duration: time.Since(start),
		Err:      err,
	}
}

func (l *Live) log(event TransitionLogEvent) {
	if event.Brand == 0 {
		event.Brand = l.state.History.Brand
	}
	l.cfg.logger.LogTransition(event)
}
