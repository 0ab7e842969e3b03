package contract

import (
	"context"
	"io"
)

// Merger: 将全部 SortedRun 归并为单一有序流。
// 约束：
// 1) 单线程线性消费；
// 2) 常驻内存与源数量 K 成正比，与数据量无关；
// 3) 单源失败（打开/坏行/读错误）仅退役该源，不中止整体；
// 4) 写出失败直接上抛；所有源句柄在任何退出路径上释放。
type Merger interface {
	Merge(ctx context.Context, runs []SortedRun, w io.Writer, warn WarnFunc) (MergeStats, error)
}
