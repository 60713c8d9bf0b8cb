package tuner

import "golang.org/x/sys/unix"

// currentNice reads the calling process niceness. The raw Linux syscall
// returns 20-nice so negative niceness cannot be mistaken for an error.
func currentNice() (int, error) {
	value, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return 0, err
	}
	return 20 - value, nil
}
