// Package state persists registers. A Store only loads and saves the four
// words of one register for one Ref; Save, Restore and Mutate layer snapshot
// ids, ETag checks and history stripping on top.
//
// Data flow:
//
//	Live/Register -> State -> Store.Save
//	Store.Load -> State -> bitstate.NewLive(bitstate.WithState(...))
//
// Deterministic keys:
//
//	Ref.Identifier() returns "<domain>/<name>". Adapters should use it as the
//	storage key so every backend agrees on where a register lives.
package state
