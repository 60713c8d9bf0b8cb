//go:build !windows

package probe

import "os"

// userIsRoot reports whether the process runs with an effective uid of 0.
func userIsRoot() bool {
	return os.Geteuid() == 0
}
