package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hugesort/pkg/contract"
)

func noTemp(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".hugesort-out-") {
			t.Fatalf("tmp file not cleaned: %s", e.Name())
		}
	}
}

// TestWriteAtomic 原子写入（默认）
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "sorted.txt")
	w := New(nil)
	if err := w.Write(context.Background(), dest, bytes.NewBufferString("1. A\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(dest)
	if err != nil || string(b) != "1. A\n" {
		t.Fatalf("unexpected file %v %q", err, string(b))
	}
	noTemp(t, dir)
}

// 目标已存在时，原子写应替换为新内容。
func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "sorted.txt")
	w := New(nil)
	for _, v := range []string{"v1", "v2"} {
		if err := w.Write(context.Background(), dest, bytes.NewBufferString(v)); err != nil {
			t.Fatalf("write %s: %v", v, err)
		}
	}
	b, _ := os.ReadFile(dest)
	if string(b) != "v2" {
		t.Fatalf("expect replaced content v2, got %q", string(b))
	}
	noTemp(t, dir)
}

// TestWriteNonAtomic 截断覆盖写
func TestWriteNonAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "sorted.txt")
	_ = os.WriteFile(dest, []byte("much longer old content"), 0o644)
	a := false
	w := New(&Options{Atomic: &a, BufSize: 4})
	if err := w.Write(context.Background(), dest, strings.NewReader("new")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(dest)
	if string(b) != "new" {
		t.Fatalf("got %q", string(b))
	}
}

// TestWriteEmpty 空流 → 空文件
func TestWriteEmpty(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sorted.txt")
	if err := New(nil).Write(context.Background(), dest, strings.NewReader("")); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := os.Stat(dest)
	if err != nil || st.Size() != 0 {
		t.Fatalf("expect empty file: %v", err)
	}
}

// TestWriteMissingDir 目录不存在时不自动创建
func TestWriteMissingDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nope", "sorted.txt")
	for _, atomic := range []bool{true, false} {
		a := atomic
		if err := New(&Options{Atomic: &a}).Write(context.Background(), dest, strings.NewReader("x")); err == nil {
			t.Fatalf("atomic=%v: expect error", atomic)
		}
	}
	if err := New(nil).Write(context.Background(), " ", strings.NewReader("x")); !errors.Is(err, contract.ErrConfig) {
		t.Fatalf("empty path: %v", err)
	}
}

// TestWriteCtxCancel 上下文取消
func TestWriteCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(nil).Write(ctx, filepath.Join(t.TempDir(), "a.txt"), strings.NewReader("data")); err == nil {
		t.Fatalf("expect ctx error")
	}
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

// TestWriteAtomicCopyError 原子写入时拷贝失败不残留临时文件与目标
func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	if err := New(nil).Write(context.Background(), filepath.Join(dir, "a.txt"), errReader{}); err == nil {
		t.Fatalf("expect copy error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("temp files left %v", entries)
	}
}

func TestReaderWithCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := readerWithCtx(ctx, strings.NewReader("data"))
	cancel()
	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expect ctx error")
	}
}
