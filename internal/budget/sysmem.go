package budget

// DefaultTotalMemory 为无法探测主机内存时的后备值（8 GiB）。
const DefaultTotalMemory uint64 = 8 * 1024 * 1024 * 1024

// Memory 为主机内存探测结果。
type Memory struct {
	Bytes    uint64
	Reliable bool
	// Source: sysinfo|sysctl|default
	Source string
}

// TotalMemory 返回主机物理内存总量；探测失败时回退 DefaultTotalMemory。
func TotalMemory() Memory {
	if b, src, ok := probeTotalMemory(); ok && b > 0 {
		return Memory{Bytes: b, Reliable: true, Source: src}
	}
	return Memory{Bytes: DefaultTotalMemory, Source: "default"}
}
