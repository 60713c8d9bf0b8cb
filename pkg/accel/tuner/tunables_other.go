//go:build !linux && !darwin && !windows

package tuner

import "errors"

const highPriorityClass uint32 = 0x00000080

func currentNice() (int, error) {
	return 0, errors.ErrUnsupported
}

func setNiceValue(int) error {
	return errors.ErrUnsupported
}

func currentRlimitNofile() (uint64, uint64, error) {
	return 0, 0, errors.ErrUnsupported
}

func setRlimitNofileValues(uint64, uint64) error {
	return errors.ErrUnsupported
}

func currentPriorityClass() (uint32, error) {
	return 0, errors.ErrUnsupported
}

func setPriorityClassValue(uint32) error {
	return errors.ErrUnsupported
}
