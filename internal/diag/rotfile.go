package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// 轮转：current 超过上限时改名归档为 hugesort-<UTC 时间戳>.txt，只保留最近 keep 份归档。
const (
	logPrefix   = "hugesort"
	defaultMax  = 10 << 20
	defaultKeep = 5
)

// RotatingFile 是 Logger 的文件 sink，按大小轮转。
type RotatingFile struct {
	mu   sync.Mutex
	dir  string
	max  int64
	keep int
	f    *os.File
	size int64
}

func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = defaultMax
	}
	return &RotatingFile{dir: dir, max: maxBytes, keep: defaultKeep}
}

func (w *RotatingFile) current() string {
	return filepath.Join(w.dir, logPrefix+"-current.txt")
}

// WriteLine 追加一行；超限先轮转。单行本身超过上限时整行写入新文件。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	need := int64(len(b)) + 1
	if w.size > 0 && w.size+need > w.max {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	line := make([]byte, 0, need)
	line = append(append(line, b...), '\n')
	n, err := w.f.Write(line)
	w.size += int64(n)
	return err
}

func (w *RotatingFile) open() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.current(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	w.f, w.size = f, size
	return nil
}

// rotate 归档 current 后重新打开；未打开时仅打开。
func (w *RotatingFile) rotate() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
		// 纳秒精度，同秒多次轮转不互相覆盖
		name := fmt.Sprintf("%s-%s.txt", logPrefix, time.Now().UTC().Format("20060102-150405.000000000"))
		if err := os.Rename(w.current(), filepath.Join(w.dir, name)); err != nil {
			return fmt.Errorf("rotate log: %w", err)
		}
		w.prune()
	}
	return w.open()
}

// prune 删除最旧的归档。时间戳命名，字典序即时间序。
func (w *RotatingFile) prune() {
	old, err := filepath.Glob(filepath.Join(w.dir, logPrefix+"-2*.txt"))
	if err != nil || len(old) <= w.keep {
		return
	}
	sort.Strings(old)
	for _, p := range old[:len(old)-w.keep] {
		_ = os.Remove(p)
	}
}

// Close 关闭当前文件。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
