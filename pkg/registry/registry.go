package registry

import (
	"bytes"
	"encoding/json"

	"hugesort/pkg/contract"
	mheap "hugesort/plugins/merger/heapmerge"
	rfs "hugesort/plugins/reader/filesystem"
	smem "hugesort/plugins/sorter/memsort"
	wfs "hugesort/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.ChunkReader, error)

// NewSorter 工厂签名：接收原样 JSON Options。
type NewSorter func(raw json.RawMessage) (contract.ChunkSorter, error)

// NewMerger 工厂签名：接收原样 JSON Options。
type NewMerger func(raw json.RawMessage) (contract.Merger, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 本地文件流式分块
	"fs": func(raw json.RawMessage) (contract.ChunkReader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Sorter 工厂注册表。
var Sorter = map[string]NewSorter{
	// memory: 内存稳定排序 + 临时文件
	"memory": func(raw json.RawMessage) (contract.ChunkSorter, error) {
		var opts smem.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return smem.New(&opts), nil
	},
}

// Merger 工厂注册表。
var Merger = map[string]NewMerger{
	// heap: 二叉最小堆 K 路归并
	"heap": func(raw json.RawMessage) (contract.Merger, error) {
		var opts mheap.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return mheap.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts), nil
	},
}
