package bitstate

// Validator decides whether a proposal is committed. It may read prior
// freely and edit next, including changes beyond the one that opened the
// round. prior must be treated as read-only.
type Validator interface {
	Validate(prior PriorView, next *Proposal) bool
}

// ValidatorFunc allows plain functions to satisfy Validator.
type ValidatorFunc func(prior PriorView, next *Proposal) bool

// Validate dispatches to the underlying function.
func (fn ValidatorFunc) Validate(prior PriorView, next *Proposal) bool {
	if fn == nil {
		return true
	}
	return fn(prior, next)
}

// CommitHook runs after every commit. When attached it owns all further
// propagation, including pumping a sink. It must not write live values.
type CommitHook interface {
	AfterCommit(prior PriorView, live *Live)
}

// CommitHookFunc allows plain functions to satisfy CommitHook.
type CommitHookFunc func(prior PriorView, live *Live)

// AfterCommit dispatches to the underlying function.
func (fn CommitHookFunc) AfterCommit(prior PriorView, live *Live) {
	if fn != nil {
		fn(prior, live)
	}
}

// Sink receives the change mask of every commit not marked done when no
// commit hook is attached.
type Sink interface {
	Pump(changed Mask)
}

// SinkFunc allows plain functions to satisfy Sink.
type SinkFunc func(changed Mask)

// Pump dispatches to the underlying function.
func (fn SinkFunc) Pump(changed Mask) {
	if fn != nil {
		fn(changed)
	}
}

// ObserverCounter is optionally implemented by sinks that track observers.
type ObserverCounter interface {
	ObserverCount() int
}

// Detacher is optionally implemented by sinks that hold resources.
type Detacher interface {
	Detach()
}

type chain []Validator

// Chain runs validators in order and rejects on the first refusal. Nil
// entries are skipped.
func Chain(validators ...Validator) Validator {
	out := make(chain, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (c chain) Validate(prior PriorView, next *Proposal) bool {
	for _, v := range c {
		if !v.Validate(prior, next) {
			return false
		}
	}
	return true
}
