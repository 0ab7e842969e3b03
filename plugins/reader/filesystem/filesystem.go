package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"hugesort/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
}

// FileSystem 基于本地文件的 ChunkReader 实现。
type FileSystem struct {
	bufSize int
}

const defaultBuf = 64 * 1024

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &FileSystem{bufSize: b}
}

var _ contract.ChunkReader = (*FileSystem)(nil)

// Chunks 单次流式遍历 path，按到达顺序每 chunkSize 行产出一个 Chunk。
// 行处理：按 '\n' 切分、TrimSpace、丢弃空行；文件首部 UTF-8 BOM 去除；末行无换行亦保留。
// 仅跟随指向常规文件的符号链接；目录/设备等返回 ErrConfig。
func (r *FileSystem) Chunks(ctx context.Context, path string, chunkSize int, yield func(contract.Chunk) error) error {
	if chunkSize < 1 {
		return fmt.Errorf("%w: chunk size %d < 1", contract.ErrConfig, chunkSize)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: input %s is not a regular file", contract.ErrConfig, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	adviseSequential(f)
	return r.stream(ctx, f, chunkSize, yield)
}

func (r *FileSystem) stream(ctx context.Context, src io.Reader, chunkSize int, yield func(contract.Chunk) error) error {
	br := bufio.NewReaderSize(src, r.bufSize)
	// 预分配上限：避免 chunkSize 很大时一次性申请巨量内存
	capHint := chunkSize
	if capHint > 4096 {
		capHint = 4096
	}
	var (
		idx   int64
		lines = make([]string, 0, capHint)
		first = true
	)
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := yield(contract.Chunk{Index: idx, Lines: lines}); err != nil {
			return err
		}
		idx++
		// 新切片：已交出的 Chunk 归消费者独占
		lines = make([]string, 0, capHint)
		return nil
	}
	for {
		raw, err := br.ReadString('\n')
		if first {
			raw = strings.TrimPrefix(raw, "\ufeff")
			first = false
		}
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
			if len(lines) >= chunkSize {
				if ferr := flush(); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	return flush()
}
