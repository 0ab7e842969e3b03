package diag

import (
	"strconv"
	"sync"
)

// 最小进程内指标。
// 名称：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累加）

var (
	metMu sync.Mutex
	met   = map[string]int64{}
)

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	add("op_total{"+comp+","+stage+","+result+"}", 1)
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	add("error_total{"+comp+","+code+"}", 1)
}

// ObserveDuration 记录阶段耗时（毫秒，累加）。
func ObserveDuration(comp, stage string, durMS int64) {
	add("op_duration_ms{"+comp+","+stage+"}", durMS)
}

func add(key string, n int64) {
	metMu.Lock()
	met[key] += n
	metMu.Unlock()
}

// Snapshot 返回当前指标拷贝。
func Snapshot() map[string]int64 {
	metMu.Lock()
	defer metMu.Unlock()
	out := make(map[string]int64, len(met))
	for k, v := range met {
		out[k] = v
	}
	return out
}

// SnapshotKV 以字符串形式返回当前指标，供 finish/error 事件的 kv 携带。
func SnapshotKV() map[string]string {
	s := Snapshot()
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = strconv.FormatInt(v, 10)
	}
	return out
}

// ResetMetrics 清空指标（测试使用）。
func ResetMetrics() {
	metMu.Lock()
	met = map[string]int64{}
	metMu.Unlock()
}
