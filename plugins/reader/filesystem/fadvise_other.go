//go:build !linux

package filesystem

import "os"

func adviseSequential(*os.File) {}
