//go:build !linux && !darwin

package budget

func probeTotalMemory() (uint64, string, bool) { return 0, "", false }
