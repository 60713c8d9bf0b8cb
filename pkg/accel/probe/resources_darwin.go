//go:build darwin

package probe

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Resources detects CPU and RAM on macOS via sysctl.
func Resources() (SystemResources, error) {
	resources := SystemResources{CPUCores: runtime.NumCPU()}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return resources, fmt.Errorf("sysctl hw.memsize: %w", err)
	}

	resources.TotalRAM = int64(memsize)
	return resources, nil
}
