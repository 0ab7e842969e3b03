package memsort

import (
	"bufio"
	"context"
	"os"
	"slices"

	"hugesort/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// TempDir: 临时文件目录；为空使用 os.TempDir()。
	TempDir string `json:"temp_dir"`
	// BufSize: 写缓冲区大小；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size"`
}

// Memory 在内存中排序单个 Chunk 并写入独立临时文件。
// 无共享可变状态，可被多个 worker 并发调用。
type Memory struct {
	dir     string
	bufSize int
}

// New 创建内存排序器。
func New(opts *Options) *Memory {
	m := &Memory{bufSize: 64 * 1024}
	if opts != nil {
		m.dir = opts.TempDir
		if opts.BufSize > 0 {
			m.bufSize = opts.BufSize
		}
	}
	return m
}

var _ contract.ChunkSorter = (*Memory)(nil)

// TempPattern 为临时文件名模式（便于清理与排查）。
const TempPattern = "hugesort-run-*.txt"

// Sort 解析、稳定排序并落盘。
// 解析失败的行经 warn 上报后跳过；写盘失败返回 *contract.ResourceError 且删除临时文件。
func (m *Memory) Sort(ctx context.Context, chunk contract.Chunk, warn contract.WarnFunc) (contract.SortedRun, error) {
	run := contract.SortedRun{Index: chunk.Index}
	select {
	case <-ctx.Done():
		return run, ctx.Err()
	default:
	}
	recs := make([]contract.Record, 0, len(chunk.Lines))
	for _, line := range chunk.Lines {
		r, err := contract.ParseRecord(line)
		if err != nil {
			run.Skipped++
			if warn != nil {
				warn(chunk.Index, line, err)
			}
			continue
		}
		recs = append(recs, r)
	}
	slices.SortStableFunc(recs, contract.Compare)

	path, err := m.persist(recs)
	if err != nil {
		return run, err
	}
	run.Path = path
	run.Records = int64(len(recs))
	return run, nil
}

func (m *Memory) persist(recs []contract.Record) (string, error) {
	f, err := os.CreateTemp(m.dir, TempPattern)
	if err != nil {
		return "", &contract.ResourceError{Op: "create", Path: m.dir, Err: err}
	}
	path := f.Name()
	fail := func(op string, err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return "", &contract.ResourceError{Op: op, Path: path, Err: err}
	}
	bw := bufio.NewWriterSize(f, m.bufSize)
	buf := make([]byte, 0, 256)
	for _, r := range recs {
		buf = contract.AppendRecord(buf[:0], r)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return fail("write", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fail("write", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", &contract.ResourceError{Op: "close", Path: path, Err: err}
	}
	return path, nil
}
