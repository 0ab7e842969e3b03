package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// DefaultLogDir 为默认日志目录（相对工作目录）。
const DefaultLogDir = "logs"

// Logger 为最小结构化日志器：单行 JSON 输出到轮转文件；sink 为空时写 stderr。
type Logger struct {
	corrID string
	level  Level
	sink   *RotatingFile
	mu     sync.Mutex
}

// NewLogger 通过配置的 level 初始化，并将日志写入默认路径 logs/，10m 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerAt(corrID, level, DefaultLogDir)
}

// NewLoggerAt 与 NewLogger 相同，但写入指定目录；dir 为空时仅写 stderr。
func NewLoggerAt(corrID, level, dir string) *Logger {
	lvl := parseLevel(strings.TrimSpace(level))
	var sink *RotatingFile
	if strings.TrimSpace(dir) != "" {
		sink = NewRotatingFile(dir, 10*1024*1024)
	}
	return &Logger{corrID: corrID, level: lvl, sink: sink}
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event 为标准事件结构。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|warn|error
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	File   string            `json:"file,omitempty"`
	Chunk  string            `json:"chunk_id,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

// log 以最小开销写出事件，遵循级别。
func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		// 后备：写 stderr
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Close 关闭底层 sink。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file/chunk_id 的 start。
func (l *Logger) StartWith(comp, msg, file, chunk string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", File: file, Chunk: chunk, Msg: msg})
	return &Timer{l: l, comp: comp, file: file, chunk: chunk, t0: time.Now()}
}

// StartWithKV 记录带 file/chunk_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, file, chunk string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", File: file, Chunk: chunk, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, file: file, chunk: chunk, t0: time.Now()}
}

// Warn 记录可恢复事件（跳过并继续）。
func (l *Logger) Warn(comp, code, msg, chunk string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", Code: code, Chunk: chunk, Msg: msg, KV: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg})
}

// ErrorWith 支持 file/chunk_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, file, chunk string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, File: file, Chunk: chunk})
}

// ErrorWithKV 支持附带键值对（例如临时文件路径、底层错误片段）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, file, chunk string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, File: file, Chunk: chunk, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(Info, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	comp  string
	file  string
	chunk string
	t0    time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, File: t.file, Chunk: t.chunk, Msg: msg})
}

// FinishKV 记录带键值的 finish。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, File: t.file, Chunk: t.chunk, Msg: msg, KV: kv})
}

// Elapsed 返回自 start 以来的耗时。
func (t *Timer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.t0)
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, file, chunk string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "start", File: file, Chunk: chunk, Msg: msg, KV: kv})
}
