//go:build darwin

package budget

import "golang.org/x/sys/unix"

func probeTotalMemory() (uint64, string, bool) {
	n, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, "", false
	}
	return n, "sysctl", true
}
