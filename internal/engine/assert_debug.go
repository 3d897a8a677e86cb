//go:build debugassert

package engine

import "fmt"

// assertDebug panics when cond is false, turning an internal invariant
// violation into a hard failure in debugassert builds. Outside this build
// tag (see assert.go) it is a no-op, matching the release behavior of
// silently skipping the offending move.
func assertDebug(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+msg, args...))
	}
}
