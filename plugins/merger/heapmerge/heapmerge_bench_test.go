package heapmerge

import (
	"context"
	"fmt"
	"io"
	"testing"

	"hugesort/pkg/contract"
)

func BenchmarkMerge64Runs(b *testing.B) {
	dir := b.TempDir()
	var runs []contract.SortedRun
	for k := 0; k < 64; k++ {
		lines := make([]string, 1000)
		for i := range lines {
			lines[i] = fmt.Sprintf("%d. T%06d", k, i*64+k)
		}
		runs = append(runs, writeRun(b, dir, int64(k), lines...))
	}
	h := New(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Merge(context.Background(), runs, io.Discard, nil); err != nil {
			b.Fatal(err)
		}
	}
}
