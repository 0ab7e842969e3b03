package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 均使用 snake_case；未知字段在解析期失败。
type Config struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	// MemoryFraction: 允许用于单个分块的物理内存占比 (0,1]。
	MemoryFraction float64 `json:"memory_fraction"`
	// ChunkSize > 0 时跳过估算，直接作为每块记录数。
	ChunkSize   int    `json:"chunk_size"`
	Concurrency int    `json:"concurrency"`
	SampleLines int    `json:"sample_lines"`
	TempDir     string `json:"temp_dir"`
	KeepTemp    bool   `json:"keep_temp"`

	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级与目录可配置；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader string `json:"reader"`
	Sorter string `json:"sorter"`
	Merger string `json:"merger"`
	Writer string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader json.RawMessage `json:"reader"`
	Sorter json.RawMessage `json:"sorter"`
	Merger json.RawMessage `json:"merger"`
	Writer json.RawMessage `json:"writer"`
}
