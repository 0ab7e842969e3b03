package contract

import "strings"

// Record: 单行记录 `<Number>. <Text>`，解析后不可变。
// 全序：Text 字典序升序，Text 相同时 Number 数值升序。
type Record struct {
	Number int64
	Text   string
}

// Compare 按全序比较两条记录：a<b 返回负数，相等返回 0，a>b 返回正数。
func Compare(a, b Record) int {
	if c := strings.Compare(a.Text, b.Text); c != 0 {
		return c
	}
	switch {
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	default:
		return 0
	}
}

// Less 等价于 Compare(a, b) < 0。
func Less(a, b Record) bool { return Compare(a, b) < 0 }

// Chunk: 读取阶段产出的有界批（原始行，已 TrimSpace，去除空行）。
// 约束：
// - Index 自 0 严格递增，与到达顺序一致；
// - len(Lines) <= chunkSize；
// - 仅由一个 Sorter 独占处理，落盘后即丢弃。
type Chunk struct {
	Index int64
	Lines []string
}

// SortedRun: 已排序临时文件的句柄（每个 Chunk 一个）。
// 文件内容为 Record 编码行，按全序升序排列。
type SortedRun struct {
	Index   int64
	Path    string
	Records int64
	// Skipped: 该 Chunk 中因解析失败而跳过的行数。
	Skipped int64
}

// MergeStats: 归并阶段统计。
type MergeStats struct {
	Sources int   // 成功打开的源数量
	Written int64 // 写出记录数
	Retired int   // 正常耗尽的源数量
	Lost    int   // 因坏行/读错误而提前退役的源数量
}

// WarnFunc: 可恢复错误的告警回调（跳过并继续）。
// chunk 为来源 Chunk/Run 的 Index；line 为出错原始行（可能为空）。
type WarnFunc func(chunk int64, line string, err error)
