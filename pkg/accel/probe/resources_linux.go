//go:build linux

package probe

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Resources detects CPU and RAM on Linux via sysinfo(2).
func Resources() (SystemResources, error) {
	resources := SystemResources{CPUCores: runtime.NumCPU()}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return resources, fmt.Errorf("sysinfo: %w", err)
	}

	// Totalram is in units of Unit bytes.
	resources.TotalRAM = int64(info.Totalram) * int64(info.Unit)
	return resources, nil
}
