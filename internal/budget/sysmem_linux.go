//go:build linux

package budget

import "golang.org/x/sys/unix"

func probeTotalMemory() (uint64, string, bool) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, "", false
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	return uint64(si.Totalram) * unit, "sysinfo", true
}
