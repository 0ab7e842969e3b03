package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"hugesort/internal/pipeline"
	"hugesort/pkg/contract"
	"hugesort/pkg/registry"
)

// Validate 对最小必要边界做静态校验；错误均包装 ErrConfig。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Input) == "" {
		return fmt.Errorf("%w: input not set", contract.ErrConfig)
	}
	if strings.TrimSpace(cfg.Output) == "" {
		return fmt.Errorf("%w: output not set", contract.ErrConfig)
	}
	if contract.NormalizePath(cfg.Input) == contract.NormalizePath(cfg.Output) {
		return fmt.Errorf("%w: output must differ from input", contract.ErrConfig)
	}
	if !(cfg.MemoryFraction > 0 && cfg.MemoryFraction <= 1) {
		return fmt.Errorf("%w: memory_fraction %v not in (0,1]", contract.ErrConfig, cfg.MemoryFraction)
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk_size must be >= 0", contract.ErrConfig)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", contract.ErrConfig)
	}
	if cfg.SampleLines < 1 {
		return fmt.Errorf("%w: sample_lines must be >= 1", contract.ErrConfig)
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Sorter, d.Sorter); registry.Sorter[name] == nil {
		return fmt.Errorf("%w: sorter %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Merger, d.Merger); registry.Merger[name] == nil {
		return fmt.Errorf("%w: merger %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered", contract.ErrConfig, name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// 顶层 temp_dir 非空时覆盖 sorter options 中的 temp_dir。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults().Components
	sorterOpts, err := withTempDir(cfg.Options.Sorter, cfg.TempDir)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: options.sorter: %v", contract.ErrConfig, err)
	}

	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: options.reader: %v", contract.ErrConfig, err)
	}
	s, err := registry.Sorter[effName(cfg.Components.Sorter, d.Sorter)](sorterOpts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: options.sorter: %v", contract.ErrConfig, err)
	}
	m, err := registry.Merger[effName(cfg.Components.Merger, d.Merger)](cfg.Options.Merger)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: options.merger: %v", contract.ErrConfig, err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("%w: options.writer: %v", contract.ErrConfig, err)
	}

	comp := pipeline.Components{Reader: r, Sorter: s, Merger: m, Writer: w}
	set := pipeline.Settings{
		Input:          cfg.Input,
		Output:         cfg.Output,
		ChunkSize:      cfg.ChunkSize,
		MemoryFraction: cfg.MemoryFraction,
		SampleLines:    cfg.SampleLines,
		Concurrency:    cfg.Concurrency,
		KeepTemp:       cfg.KeepTemp,
	}
	return comp, set, nil
}

// withTempDir 将 dir 写入 options 的 temp_dir 键；dir 为空时原样返回。
func withTempDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	if strings.TrimSpace(dir) == "" {
		return raw, nil
	}
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	}
	m["temp_dir"] = dir
	return json.Marshal(m)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
