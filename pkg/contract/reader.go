package contract

import "context"

// ChunkReader: 输入切块抽象。
// 约束：
// 1) 流式读取（有界缓冲），绝不整体载入文件；
// 2) 按到达顺序产出 Chunk，Index 自 0 严格递增；
// 3) 单次遍历，不可重启；
// 4) 不做解析，不在内部起并发；yield 返回错误即中止并上抛。
type ChunkReader interface {
	Chunks(ctx context.Context, path string, chunkSize int, yield func(Chunk) error) error
}
