package probe

import (
	"github.com/dustin/go-humanize"
)

// SystemResources contains detected host resources, used for verbose
// diagnostics alongside the execution context.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes. Zero when detection
	// is unavailable on this platform.
	TotalRAM int64
}

// HumanRAM returns the total RAM formatted with binary (IEC) units,
// or "unknown" when detection failed.
func (r SystemResources) HumanRAM() string {
	if r.TotalRAM <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(r.TotalRAM))
}
