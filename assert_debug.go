//go:build bitstate_debug

package bitstate

func assertFailure(err error) {
	panic(err)
}
