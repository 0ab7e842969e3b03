package contract

import "context"

// ChunkSorter: 单个 Chunk 的内存排序与落盘。
// 约束：
// 1) 解析失败的行通过 warn 上报后跳过，其余行继续；
// 2) 稳定排序，按 Compare 全序；
// 3) 每次调用仅触及自身 Chunk 与自身临时文件，可并发调用；
// 4) 落盘失败返回 *ResourceError，且不残留临时文件。
type ChunkSorter interface {
	Sort(ctx context.Context, chunk Chunk, warn WarnFunc) (SortedRun, error)
}
