//go:build !linux && !darwin

package probe

import "runtime"

// Resources reports CPU cores only; RAM detection is not implemented for
// this platform and is left at zero.
func Resources() (SystemResources, error) {
	return SystemResources{CPUCores: runtime.NumCPU()}, nil
}
