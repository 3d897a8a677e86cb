//go:build !debugassert

package engine

// assertDebug is a no-op outside debugassert builds, matching §7's "silently
// skipped" release behavior for internal invariant violations.
func assertDebug(cond bool, msg string, args ...interface{}) {}
