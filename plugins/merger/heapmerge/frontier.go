package heapmerge

import (
	"container/heap"

	"hugesort/pkg/contract"
)

// entry: 某个源当前的队首记录。堆内每个未耗尽的源恰有一个 entry。
type entry struct {
	rec contract.Record
	src int
}

// frontier 为按记录全序排列的二叉小顶堆；全序相同时按源序号，保证输出确定。
type frontier []entry

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if c := contract.Compare(f[i].rec, f[j].rec); c != 0 {
		return c < 0
	}
	return f[i].src < f[j].src
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(entry)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	e := old[n-1]
	*f = old[:n-1]
	return e
}

// push/pop 为 container/heap 的类型化包装。
func (f *frontier) push(e entry) { heap.Push(f, e) }

func (f *frontier) pop() entry { return heap.Pop(f).(entry) }

// replaceTop 用同源下一条记录替换堆顶并下沉，省去一次 Pop+Push。
func (f *frontier) replaceTop(rec contract.Record) {
	(*f)[0].rec = rec
	heap.Fix(f, 0)
}
