package bitstate

import "errors"

var (
	// ErrIndexOutOfRange reports an item index outside [0, MaxIndex].
	ErrIndexOutOfRange = errors.New("bitstate: index out of range")
	// ErrRadioGroup reports inverted, out-of-range, adjacent or overlapping
	// radio group bounds.
	ErrRadioGroup = errors.New("bitstate: invalid radio group")
	// ErrRace reports a proposal abandoned because the live register was
	// committed to while its validator ran.
	ErrRace = errors.New("bitstate: data race on update")
	// ErrInCallback reports a call that is not allowed from inside a
	// validator or commit hook.
	ErrInCallback = errors.New("bitstate: not allowed inside a transition callback")
)
