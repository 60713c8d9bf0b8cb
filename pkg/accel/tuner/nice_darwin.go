package tuner

import "golang.org/x/sys/unix"

func currentNice() (int, error) {
	return unix.Getpriority(unix.PRIO_PROCESS, 0)
}
