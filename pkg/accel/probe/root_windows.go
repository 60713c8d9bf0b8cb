//go:build windows

package probe

// userIsRoot is conservative on Windows: without an elevation check the
// engine assumes a non-admin session, so admin-requiring actions report
// privilege-denied instead of failing mid-command.
func userIsRoot() bool {
	return false
}
