//go:build linux || darwin

package tuner

import (
	"errors"

	"golang.org/x/sys/unix"
)

// highPriorityClass is a Windows priority class; unused here but keeps
// the apply path compiling on every platform.
const highPriorityClass uint32 = 0x00000080

func setNiceValue(value int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, value)
}

func currentRlimitNofile() (uint64, uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, 0, err
	}
	return uint64(limit.Cur), uint64(limit.Max), nil
}

func setRlimitNofileValues(soft, hard uint64) error {
	limit := unix.Rlimit{Cur: soft, Max: hard}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &limit)
}

func currentPriorityClass() (uint32, error) {
	return 0, errors.ErrUnsupported
}

func setPriorityClassValue(uint32) error {
	return errors.ErrUnsupported
}
