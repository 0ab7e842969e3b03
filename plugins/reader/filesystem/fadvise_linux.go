//go:build linux

package filesystem

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential 提示内核顺序读（最佳努力，忽略错误）。
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
