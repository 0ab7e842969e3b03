package diag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hugesort/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	defer w.Close()
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
	hasCurrent := false
	for _, e := range files {
		if e.Name() == "hugesort-current.txt" {
			hasCurrent = true
		}
	}
	if !hasCurrent {
		t.Fatalf("缺少 current 文件")
	}
}

// 触发默认 maxBytes 分支与 rotate 在 f==nil 分支
func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	defer w.Close()
	if err := w.WriteLine([]byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.f.Close()
	w.f = nil
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
}

func TestRotatingFileKeepsNewestArchives(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	defer w.Close()
	for i := 0; i < 12; i++ {
		if err := w.WriteLine([]byte(fmt.Sprintf("line-%02d-padding", i))); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	archives, _ := filepath.Glob(filepath.Join(dir, "hugesort-2*.txt"))
	if len(archives) != defaultKeep {
		t.Fatalf("archives=%d want %d", len(archives), defaultKeep)
	}
	cur, err := os.ReadFile(filepath.Join(dir, "hugesort-current.txt"))
	if err != nil || strings.TrimSpace(string(cur)) != "line-11-padding" {
		t.Fatalf("current=%q err=%v", cur, err)
	}
}

// UT-DIAG-02: 指标计数
func TestMetricsCounters(t *testing.T) {
	ResetMetrics()
	IncOp("sorter", "finish", "success")
	IncOp("sorter", "finish", "success")
	IncError("merger", "parse")
	ObserveDuration("merger", "finish", 7)
	s := Snapshot()
	if s["op_total{sorter,finish,success}"] != 2 {
		t.Fatalf("op_total 计数错误: %v", s)
	}
	if s["error_total{merger,parse}"] != 1 || s["op_duration_ms{merger,finish}"] != 7 {
		t.Fatalf("指标错误: %v", s)
	}
	if kv := SnapshotKV(); len(kv) != 3 || kv["op_duration_ms{merger,finish}"] != "7" {
		t.Fatalf("kv: %v", kv)
	}
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", contract.ErrConfig), CodeConfig},
		{&contract.ParseError{Line: "x", Reason: "missing separator"}, CodeParse},
		{&contract.ResourceError{Op: "create", Path: "/tmp", Err: &fs.PathError{Op: "open", Path: "/tmp", Err: errors.New("x")}}, CodeResource},
		{contract.ErrInvariantViolation, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for i, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("case %d: got %s want %s", i, got, c.want)
		}
	}
}

// Logger 基本流程（stderr 后备）
func TestLogger(t *testing.T) {
	l := NewLoggerAt("corr", "debug", "")
	timer := l.Start("comp", "msg")
	timer.Finish("ok", 1)
	timer = l.StartWith("comp", "msg", "in.txt", "3")
	timer.FinishKV("ok", 1, map[string]string{"k": "v"})
	timer = l.StartWithKV("comp", "msg", "in.txt", "3", map[string]string{"k": "v"})
	if timer.Elapsed() < 0 {
		t.Fatalf("elapsed")
	}
	l.Warn("sorter", "parse", "skip line", "3", map[string]string{"line": "x"})
	l.Error("comp", "code", "msg", nil)
	l.ErrorWith("comp", "code", "msg", nil, "in.txt", "3")
	l.ErrorWithKV("comp", "code", "msg", nil, "in.txt", "3", map[string]string{"path": "/tmp/x"})
	l.InfoFinish("comp", "msg", time.Now(), 1)
	l.DebugStart("comp", "msg", "in.txt", "3", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// Logger sink 写入与级别过滤
func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerAt("corr", "warn", dir)
	defer l.Close()
	l.Start("comp", "filtered").Finish("filtered", 0)
	l.Warn("sorter", "parse", "skip", "0", nil)
	b, err := os.ReadFile(filepath.Join(dir, "hugesort-current.txt"))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "filtered") {
		t.Fatalf("info 事件应被过滤: %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"chunk_id":"0"`) {
		t.Fatalf("缺少 warn 事件: %s", out)
	}
}

func TestLoggerLevelsAndNil(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "info" {
		t.Fatalf("default string")
	}
	if parseLevel("ERROR") != Error || parseLevel("") != Info {
		t.Fatalf("parseLevel")
	}
	var nl *Logger
	nl.Warn("c", "x", "m", "", nil) // nil 接收者不应 panic
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
}

// UT-DIAG-03: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart("in.txt", 4)
	term.ChunkSize(1000)
	term.ChunkDone(1000, true) // 非 TTY：不输出进度
	term.ChunkDone(10, false)
	term.MergeStart(2)
	term.RunFinish(true, 1010, 61500*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[run] 输入=in.txt | 并发=4",
		"[plan] 分块大小=1000 行",
		"[sort] 完成 2 个分块（错误 1）",
		"[merge] 归并 2 个有序临时文件",
		"[ok] 写出 1010 行 | 总用时 1:01.500",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

// UT-DIAG-04: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottle(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart("in.txt", 2)
	term.ChunkDone(5, true)
	first := sb.String()
	if !strings.Contains(first, "\r[sort]") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	term.ChunkDone(5, true)
	if sb.String() != first {
		t.Fatalf("second progress should be throttled")
	}
	time.Sleep(120 * time.Millisecond)
	term.ChunkDone(5, false)
	if len(sb.String()) <= len(first) {
		t.Fatalf("third progress should append output")
	}
	term.RunFinish(false, 15, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	if idx < 0 {
		t.Fatalf("finish should include fail line: %q", final)
	}
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	if cr < 0 || !strings.Contains(seg[cr+1:], " ") {
		t.Fatalf("clear tail should write spaces after CR: %q", seg)
	}
}

// UT-DIAG-05: 写失败降级为禁用态
type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.isTTY = false
	term.RunStart("x", 1)
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.ChunkSize(1)
	term.ChunkDone(1, true)
	term.MergeStart(1)
	term.RunFinish(true, 0, 0)
}

func TestTerminalNilReceiverNoop(t *testing.T) {
	var tn *Terminal
	tn.RunStart("x", 1)
	tn.ChunkSize(1)
	tn.ChunkDone(0, true)
	tn.MergeStart(0)
	tn.RunFinish(true, 0, 0)
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	var sb strings.Builder
	if NewTerminal(&sb, true).isTTY {
		t.Fatalf("CI env should force non-tty")
	}
}

// 工具函数覆盖
func TestHelpers(t *testing.T) {
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" {
		t.Fatalf("formatDur 0ms failed")
	}
	if got := formatDur(1500 * time.Millisecond); got != "0:01.500" {
		t.Fatalf("formatDur: %s", got)
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(os.Stderr, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
	if NowUTC() == "" {
		t.Fatalf("应返回时间字符串")
	}
}
