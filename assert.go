//go:build !bitstate_debug

package bitstate

// assertFailure is called for every flagged failure. Release builds only
// keep the status flag; build with the bitstate_debug tag to panic instead.
func assertFailure(error) {}
