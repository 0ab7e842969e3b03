package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"hugesort/internal/budget"
	"hugesort/internal/diag"
	"hugesort/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；原子组件均为同步、无内部并发。
// - 有界流式：Reader → 有界通道(N) → N 个 Sorter；同时驻留至多 2N+1 个分块。
//   估算得到的分块大小按驻留槽位均分，整体仍落在内存预算内。
// - 失败软化：单个分块失败仅记录并丢弃该分块；Reader/Writer 失败终止整次运行。
// - 清理：临时文件在任何退出路径上删除（KeepTemp 除外）。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader contract.ChunkReader
	Sorter contract.ChunkSorter
	Merger contract.Merger
	Writer contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Input  string
	Output string
	// ChunkSize > 0 时直接使用，跳过内存估算
	ChunkSize      int
	MemoryFraction float64
	SampleLines    int
	// TotalMemory > 0 时覆盖探测到的物理内存（测试用）
	TotalMemory uint64
	Concurrency int
	KeepTemp    bool
}

// Stats 单次运行统计。
type Stats struct {
	ChunkSize    int
	Chunks       int
	Runs         int
	FailedChunks int
	Lines        int64
	// Skipped 仅统计排序阶段因解析失败跳过的行
	Skipped int64
	Written int64
	// LostStreams 归并阶段提前退役的源；LostLines 为这些源未写出的记录数
	LostStreams int
	LostLines   int64
}

// inflightSlots 返回排序阶段同时驻留内存的分块上限：
// 通道容量 N + N 个 worker + Reader 手中正在交付的 1 个。
func inflightSlots(concurrency int) int {
	return 2*concurrency + 1
}

type result struct {
	idx   int64
	lines int
	run   contract.SortedRun
	err   error
}

// Run 执行完整流水线：Estimate → Reader → Sorter×N → Merger → Writer。
// 约束：
// - 分块失败不影响其它分块；
// - 归并输入按分块 Index 排序，输出确定；
// - 空输入产出空文件。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Stats, error) {
	var st Stats
	if err := sanity(comp, &set); err != nil {
		return st, fmt.Errorf("sanity: %w", err)
	}

	size, err := chunkSize(set, logger)
	if err != nil {
		return st, err
	}
	st.ChunkSize = size
	if t := diag.GetTerminal(); t != nil {
		t.ChunkSize(size)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var skipped atomic.Int64
	sortWarn := warnFunc(logger, "pipeline", "skip", &skipped)
	// 归并阶段的损失由 MergeStats 计入 LostStreams/LostLines
	mergeWarn := warnFunc(logger, "merger", "retire", nil)

	var runs []contract.SortedRun
	defer func() {
		if set.KeepTemp {
			return
		}
		for _, r := range runs {
			if r.Path != "" {
				_ = os.Remove(r.Path)
			}
		}
	}()

	inCh := make(chan contract.Chunk, set.Concurrency)
	outCh := make(chan result, set.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < set.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range inCh {
				timer := logger.StartWith("sorter", "sort", set.Input, strconv.FormatInt(c.Index, 10))
				run, serr := comp.Sorter.Sort(ctx, c, sortWarn)
				if serr == nil {
					timer.Finish("sort", run.Records)
					diag.IncOp("sorter", "finish", "success")
				}
				outCh <- result{idx: c.Index, lines: len(c.Lines), run: run, err: serr}
			}
		}()
	}

	// 生产者：流式读取，经有界通道形成背压
	readErr := make(chan error, 1)
	go func() {
		defer close(inCh)
		rtimer := logger.StartWith("reader", "chunks", set.Input, "")
		n := int64(0)
		err := comp.Reader.Chunks(ctx, set.Input, size, func(c contract.Chunk) error {
			select {
			case inCh <- c:
				n++
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil {
			rtimer.Finish("chunks", n)
			diag.IncOp("reader", "finish", "success")
		}
		readErr <- err
	}()

	// 屏障：全部 worker 结束后关闭结果通道
	go func() {
		wg.Wait()
		close(outCh)
	}()

	for r := range outCh {
		st.Chunks++
		st.Lines += int64(r.lines)
		if t := diag.GetTerminal(); t != nil {
			t.ChunkDone(int64(r.lines), r.err == nil)
		}
		if r.err != nil {
			st.FailedChunks++
			code := diag.Classify(r.err)
			logger.ErrorWithKV("sorter", string(code), "chunk dropped", nil, set.Input, strconv.FormatInt(r.idx, 10),
				map[string]string{"err": r.err.Error(), "lines": strconv.Itoa(r.lines)})
			diag.IncOp("sorter", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("sorter", string(code))
			}
			continue
		}
		runs = append(runs, r.run)
	}

	if rerr := <-readErr; rerr != nil {
		code := diag.Classify(rerr)
		logger.ErrorWith("reader", string(code), "read failed", nil, set.Input, "")
		diag.IncOp("reader", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("reader", string(code))
		}
		return st, fmt.Errorf("reader chunks: %w", rerr)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Index < runs[j].Index })
	st.Runs = len(runs)
	st.Skipped = skipped.Load()
	if t := diag.GetTerminal(); t != nil {
		t.MergeStart(len(runs))
	}

	ms, err := mergeTo(ctx, comp, set, runs, mergeWarn, logger)
	st.Written = ms.Written
	st.LostStreams = ms.Lost
	if err != nil {
		return st, err
	}
	var records int64
	for _, r := range runs {
		records += r.Records
	}
	st.LostLines = records - ms.Written
	return st, nil
}

// warnFunc 构造 WarnFunc：记录 warn 日志与计数；n 非空时累加解析类错误。
func warnFunc(logger *diag.Logger, comp, result string, n *atomic.Int64) contract.WarnFunc {
	return func(chunk int64, line string, werr error) {
		code := diag.Classify(werr)
		if n != nil && errors.Is(werr, contract.ErrParse) {
			n.Add(1)
		}
		kv := map[string]string{"err": werr.Error()}
		if line != "" {
			kv["line"] = line
		}
		logger.Warn(comp, string(code), result, strconv.FormatInt(chunk, 10), kv)
		diag.IncOp(comp, "warn", result)
		if code != diag.CodeUnknown {
			diag.IncError(comp, string(code))
		}
	}
}

// mergeTo: Merger 写入管道，Writer 从管道读取并落盘。
func mergeTo(ctx context.Context, comp Components, set Settings, runs []contract.SortedRun, warn contract.WarnFunc, logger *diag.Logger) (contract.MergeStats, error) {
	pr, pw := io.Pipe()
	wdone := make(chan error, 1)
	wtimer := logger.StartWith("writer", "write", set.Output, "")
	go func() {
		werr := comp.Writer.Write(ctx, set.Output, pr)
		// Writer 提前失败时解除 Merger 的阻塞写
		if werr != nil {
			_ = pr.CloseWithError(werr)
		} else {
			_ = pr.Close()
		}
		wdone <- werr
	}()

	mtimer := logger.StartWithKV("merger", "merge", set.Output, "", map[string]string{"runs": strconv.Itoa(len(runs))})
	ms, merr := comp.Merger.Merge(ctx, runs, pw, warn)
	if merr != nil {
		_ = pw.CloseWithError(merr)
	} else {
		_ = pw.Close()
	}
	werr := <-wdone

	if werr != nil {
		code := diag.Classify(werr)
		logger.ErrorWith("writer", string(code), "write failed", nil, set.Output, "")
		diag.IncOp("writer", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("writer", string(code))
		}
		return ms, fmt.Errorf("writer write: %w", werr)
	}
	if merr != nil {
		code := diag.Classify(merr)
		logger.ErrorWith("merger", string(code), "merge failed", nil, set.Output, "")
		diag.IncOp("merger", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("merger", string(code))
		}
		return ms, fmt.Errorf("merger merge: %w", merr)
	}
	mtimer.FinishKV("merge", ms.Written, map[string]string{"lost": strconv.Itoa(ms.Lost), "retired": strconv.Itoa(ms.Retired)})
	diag.IncOp("merger", "finish", "success")
	wtimer.Finish("write", ms.Written)
	diag.IncOp("writer", "finish", "success")
	return ms, nil
}

// chunkSize: 显式配置优先；否则按内存预算估算，再按驻留槽位均分。
func chunkSize(set Settings, logger *diag.Logger) (int, error) {
	if set.ChunkSize > 0 {
		return set.ChunkSize, nil
	}
	total := set.TotalMemory
	kv := map[string]string{}
	if total == 0 {
		m := budget.TotalMemory()
		total = m.Bytes
		kv["mem_source"] = m.Source
		if !m.Reliable {
			logger.Warn("budget", string(diag.CodeResource), "total memory unknown, using default", "", map[string]string{"bytes": strconv.FormatUint(total, 10)})
		}
	}
	start := time.Now()
	size, s, err := budget.EstimateChunkSize(set.Input, set.MemoryFraction, total, set.SampleLines)
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("budget", string(code), "estimate failed", &start, set.Input, "")
		diag.IncOp("budget", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("budget", string(code))
		}
		return 0, fmt.Errorf("estimate chunk size: %w", err)
	}
	slots := inflightSlots(set.Concurrency)
	per := size / slots
	if per < 1 {
		per = 1
	}
	kv["avg_line_bytes"] = strconv.FormatFloat(s.AvgLineBytes, 'f', 1, 64)
	kv["allowed_bytes"] = strconv.FormatUint(s.AllowedBytes, 10)
	kv["sample_lines"] = strconv.Itoa(s.Lines)
	kv["estimate"] = strconv.Itoa(size)
	kv["slots"] = strconv.Itoa(slots)
	logger.DebugStart("budget", "estimate", set.Input, "", kv)
	logger.InfoFinish("budget", "estimate", start, int64(per))
	return per, nil
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Sorter == nil || c.Merger == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Input == "" || s.Output == "" {
		return fmt.Errorf("%w: empty input or output path", contract.ErrConfig)
	}
	if s.Concurrency < 1 {
		s.Concurrency = runtime.NumCPU()
	}
	if s.MemoryFraction == 0 {
		s.MemoryFraction = budget.DefaultFraction
	}
	if s.SampleLines < 1 {
		s.SampleLines = budget.DefaultSampleLines
	}
	return nil
}
