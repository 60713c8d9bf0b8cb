package tuner

import (
	"errors"

	"golang.org/x/sys/windows"
)

const highPriorityClass uint32 = windows.HIGH_PRIORITY_CLASS

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
	return windows.GetPriorityClass(windows.CurrentProcess())
}

func setPriorityClassValue(class uint32) error {
	return windows.SetPriorityClass(windows.CurrentProcess(), class)
}
