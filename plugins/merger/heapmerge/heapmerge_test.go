package heapmerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"hugesort/pkg/contract"
)

func writeRun(t testing.TB, dir string, idx int64, lines ...string) contract.SortedRun {
	t.Helper()
	p := filepath.Join(dir, fmt.Sprintf("run-%d.txt", idx))
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write run: %v", err)
	}
	return contract.SortedRun{Index: idx, Path: p, Records: int64(len(lines))}
}

func split(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// UT-MRG-01: 跨源全序
func TestMergeOrder(t *testing.T) {
	dir := t.TempDir()
	runs := []contract.SortedRun{
		writeRun(t, dir, 0, "7. BMW", "42. Ford"),
		writeRun(t, dir, 1, "7. Audi"),
		writeRun(t, dir, 2),
	}
	var out bytes.Buffer
	st, err := New(nil).Merge(context.Background(), runs, &out, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := out.String(); got != "7. Audi\n7. BMW\n42. Ford\n" {
		t.Fatalf("got %q", got)
	}
	if st.Sources != 3 || st.Written != 3 || st.Retired != 3 || st.Lost != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

// UT-MRG-02: 无源 → 空输出
func TestMergeNoRuns(t *testing.T) {
	var out bytes.Buffer
	st, err := New(nil).Merge(context.Background(), nil, &out, nil)
	if err != nil || out.Len() != 0 || st.Written != 0 {
		t.Fatalf("unexpected: %v %q %+v", err, out.String(), st)
	}
}

// UT-MRG-03: 源中途坏行 → 告警，该源剩余行丢失，其余源继续
func TestMergeMalformedMidStream(t *testing.T) {
	dir := t.TempDir()
	runs := []contract.SortedRun{
		writeRun(t, dir, 0, "1. A", "garbage", "3. C"),
		writeRun(t, dir, 1, "2. B", "4. D"),
	}
	var warned []string
	warn := func(idx int64, line string, err error) {
		if idx != 0 || !errors.Is(err, contract.ErrParse) {
			t.Errorf("unexpected warn %d %v", idx, err)
		}
		warned = append(warned, line)
	}
	var out bytes.Buffer
	st, err := New(nil).Merge(context.Background(), runs, &out, warn)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := out.String(); got != "1. A\n2. B\n4. D\n" {
		t.Fatalf("got %q", got)
	}
	if len(warned) != 1 || warned[0] != "garbage" {
		t.Fatalf("warned: %q", warned)
	}
	if st.Lost != 1 || st.Retired != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

// UT-MRG-04: 源打开失败 → 仅跳过该源
func TestMergeMissingRun(t *testing.T) {
	dir := t.TempDir()
	runs := []contract.SortedRun{
		{Index: 0, Path: filepath.Join(dir, "missing.txt")},
		writeRun(t, dir, 1, "1. A"),
	}
	var gotErr error
	var out bytes.Buffer
	st, err := New(nil).Merge(context.Background(), runs, &out, func(_ int64, _ string, err error) { gotErr = err })
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out.String() != "1. A\n" || st.Sources != 1 || st.Lost != 1 {
		t.Fatalf("unexpected: %q %+v", out.String(), st)
	}
	var re *contract.ResourceError
	if !errors.As(gotErr, &re) || re.Op != "open" {
		t.Fatalf("期望 open ResourceError, got %v", gotErr)
	}
}

// UT-MRG-05: 全序相同的记录按源序号输出（确定性）
func TestMergeTieBySource(t *testing.T) {
	dir := t.TempDir()
	runs := []contract.SortedRun{
		writeRun(t, dir, 0, "1. A"),
		writeRun(t, dir, 1, "1. A"),
	}
	f := frontier{}
	f.push(entry{rec: contract.Record{Number: 1, Text: "A"}, src: 1})
	f.push(entry{rec: contract.Record{Number: 1, Text: "A"}, src: 0})
	if f.pop().src != 0 {
		t.Fatalf("相等记录应先弹出小序号源")
	}
	var out bytes.Buffer
	if _, err := New(nil).Merge(context.Background(), runs, &out, nil); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out.String() != "1. A\n1. A\n" {
		t.Fatalf("got %q", out.String())
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// UT-MRG-06: 写出失败直接返回，源句柄释放
func TestMergeWriteError(t *testing.T) {
	dir := t.TempDir()
	runs := []contract.SortedRun{writeRun(t, dir, 0, "1. A")}
	h := New(&Options{WriteBufSize: 1})
	if _, err := h.Merge(context.Background(), runs, failWriter{}, nil); err == nil {
		t.Fatalf("应返回写错误")
	}
	// 句柄已释放：可直接删除（Windows 下未关闭会失败）
	if err := os.Remove(runs[0].Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

// UT-MRG-07: 随机多源与整体排序一致
func TestMergeRandomMatchesSort(t *testing.T) {
	dir := t.TempDir()
	rnd := rand.New(rand.NewSource(7))
	texts := []string{"BMW", "Audi", "Mercedes", "Renault", "Ford", "A. b", ""}
	var all []contract.Record
	var runs []contract.SortedRun
	for k := 0; k < 9; k++ {
		n := rnd.Intn(50)
		recs := make([]contract.Record, n)
		for i := range recs {
			recs[i] = contract.Record{Number: int64(rnd.Intn(100)), Text: texts[rnd.Intn(len(texts))]}
		}
		sort.SliceStable(recs, func(i, j int) bool { return contract.Less(recs[i], recs[j]) })
		lines := make([]string, n)
		for i, r := range recs {
			lines[i] = contract.FormatRecord(r)
		}
		all = append(all, recs...)
		runs = append(runs, writeRun(t, dir, int64(k), lines...))
	}
	sort.SliceStable(all, func(i, j int) bool { return contract.Less(all[i], all[j]) })

	var out bytes.Buffer
	st, err := New(&Options{ReadBufSize: 16}).Merge(context.Background(), runs, &out, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := split(out.String())
	if len(got) != len(all) || st.Written != int64(len(all)) {
		t.Fatalf("数量不一致: %d vs %d", len(got), len(all))
	}
	for i, r := range all {
		if got[i] != contract.FormatRecord(r) {
			t.Fatalf("第 %d 行: got %q want %q", i, got[i], contract.FormatRecord(r))
		}
	}
}

func TestMergeCanceled(t *testing.T) {
	dir := t.TempDir()
	runs := []contract.SortedRun{writeRun(t, dir, 0, "1. A")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	if _, err := New(nil).Merge(ctx, runs, &out, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("期望取消, got %v", err)
	}
}
