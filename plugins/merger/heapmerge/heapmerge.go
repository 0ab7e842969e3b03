package heapmerge

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"hugesort/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// ReadBufSize: 每个源的读缓冲；<=0 使用默认 64KiB。
	ReadBufSize int `json:"read_buf_size"`
	// WriteBufSize: 输出写缓冲；<=0 使用默认 256KiB。
	WriteBufSize int `json:"write_buf_size"`
}

// Heap 基于二叉小顶堆的 K 路归并。
// 单线程线性消费；常驻内存 O(K)，总比较次数 O(N log K)。
type Heap struct {
	readBuf  int
	writeBuf int
}

// New 创建 K 路归并器。
func New(opts *Options) *Heap {
	h := &Heap{readBuf: 64 * 1024, writeBuf: 256 * 1024}
	if opts != nil {
		if opts.ReadBufSize > 0 {
			h.readBuf = opts.ReadBufSize
		}
		if opts.WriteBufSize > 0 {
			h.writeBuf = opts.WriteBufSize
		}
	}
	return h
}

var _ contract.Merger = (*Heap)(nil)

// ctxCheckEvery: 每写出多少条记录检查一次 ctx。
const ctxCheckEvery = 4096

// source 为单个有序临时文件的流式读取器。
// 状态：Open → Active（在堆中）→ Exhausted。
type source struct {
	run contract.SortedRun
	f   *os.File
	br  *bufio.Reader
}

// next 读取下一条记录；io.EOF 表示正常耗尽。空行忽略。
func (s *source) next() (contract.Record, string, error) {
	for {
		line, err := s.br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			rec, perr := contract.ParseRecord(line)
			return rec, line, perr
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return contract.Record{}, "", io.EOF
			}
			return contract.Record{}, "", &contract.ResourceError{Op: "read", Path: s.run.Path, Err: err}
		}
	}
}

// Merge 将 runs 归并写入 w。
// 单源失败（打开失败、坏行、读错误）经 warn 上报后仅退役该源；写出失败直接返回。
// 所有已打开的源在任何退出路径上关闭。
func (h *Heap) Merge(ctx context.Context, runs []contract.SortedRun, w io.Writer, warn contract.WarnFunc) (contract.MergeStats, error) {
	var st contract.MergeStats
	report := func(idx int64, line string, err error) {
		if warn != nil {
			warn(idx, line, err)
		}
	}

	srcs := make([]*source, 0, len(runs))
	defer func() {
		for _, s := range srcs {
			if s.f != nil {
				_ = s.f.Close()
			}
		}
	}()
	for _, r := range runs {
		f, err := os.Open(r.Path)
		if err != nil {
			st.Lost++
			report(r.Index, "", &contract.ResourceError{Op: "open", Path: r.Path, Err: err})
			continue
		}
		srcs = append(srcs, &source{run: r, f: f, br: bufio.NewReaderSize(f, h.readBuf)})
	}
	st.Sources = len(srcs)

	// retire 将源置为 Exhausted 并立即释放句柄
	retire := func(i int, err error, line string) {
		s := srcs[i]
		if err != nil && !errors.Is(err, io.EOF) {
			st.Lost++
			report(s.run.Index, line, err)
		} else {
			st.Retired++
		}
		_ = s.f.Close()
		s.f = nil
	}

	// 初始化：每个非空源的首条记录入堆
	fr := make(frontier, 0, len(srcs))
	for i, s := range srcs {
		rec, line, err := s.next()
		if err != nil {
			retire(i, err, line)
			continue
		}
		fr.push(entry{rec: rec, src: i})
	}

	bw := bufio.NewWriterSize(w, h.writeBuf)
	buf := make([]byte, 0, 256)
	for fr.Len() > 0 {
		if st.Written%ctxCheckEvery == 0 {
			select {
			case <-ctx.Done():
				return st, ctx.Err()
			default:
			}
		}
		top := fr[0]
		buf = contract.AppendRecord(buf[:0], top.rec)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return st, err
		}
		st.Written++

		rec, line, err := srcs[top.src].next()
		if err != nil {
			fr.pop()
			retire(top.src, err, line)
			continue
		}
		fr.replaceTop(rec)
	}
	if err := bw.Flush(); err != nil {
		return st, err
	}
	return st, nil
}
