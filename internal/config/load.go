package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"hugesort/pkg/contract"
)

// EnvPrefix 为环境变量覆盖前缀。
const EnvPrefix = "HUGESORT_"

// DefaultOutput 为未指定输出时的默认文件名（当前目录）。
const DefaultOutput = "sortedfile.txt"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Input 不设默认（必须由文件/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Output:         DefaultOutput,
		MemoryFraction: 0.5,
		Concurrency:    runtime.NumCPU(),
		SampleLines:    1000,
		Logging:        Logging{Level: "info"},
		Components: Components{
			Reader: "fs",
			Sorter: "memory",
			Merger: "heap",
			Writer: "fs",
		},
	}
}

// LoadFile 按扩展名选择解析器：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, nil)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
		}
		defer f.Close()
		r = f
	default:
		return cfg, fmt.Errorf("%w: no config source provided", contract.ErrConfig)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

// LoadYAML 从文件路径或原始 YAML 解析 Config。
// YAML 先转为等价 JSON，再经 LoadJSON 严格解码，保证两种格式字段集一致；
// 组件 options 子树因此可直接书写为 YAML 映射。
func LoadYAML(path string, raw []byte) (Config, error) {
	if len(raw) == 0 {
		if path == "" {
			return Config{}, fmt.Errorf("%w: no config source provided", contract.ErrConfig)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
		}
		raw = b
	}
	var doc any
	if err := yaml.UnmarshalStrict(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	if doc == nil {
		return Config{}, nil
	}
	norm, err := jsonCompatible(doc)
	if err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	js, err := json.Marshal(norm)
	if err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	return LoadJSON("", js)
}

// jsonCompatible 将 yaml.v2 产出的 map[interface{}]interface{} 递归转为字符串键映射。
func jsonCompatible(v any) (any, error) {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			cv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			out[ks] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			cv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return v, nil
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	// 顶层
	if strings.TrimSpace(over.Input) != "" {
		out.Input = strings.TrimSpace(over.Input)
	}
	if strings.TrimSpace(over.Output) != "" {
		out.Output = strings.TrimSpace(over.Output)
	}
	if over.MemoryFraction != 0 {
		out.MemoryFraction = over.MemoryFraction
	}
	if over.ChunkSize != 0 {
		out.ChunkSize = over.ChunkSize
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.SampleLines != 0 {
		out.SampleLines = over.SampleLines
	}
	if strings.TrimSpace(over.TempDir) != "" {
		out.TempDir = strings.TrimSpace(over.TempDir)
	}
	// KeepTemp 只能被打开，不能被覆盖关闭
	if over.KeepTemp {
		out.KeepTemp = true
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	if strings.TrimSpace(over.Logging.Dir) != "" {
		out.Logging.Dir = strings.TrimSpace(over.Logging.Dir)
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Sorter != "" {
		out.Components.Sorter = over.Components.Sorter
	}
	if over.Components.Merger != "" {
		out.Components.Merger = over.Components.Merger
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Sorter) > 0 {
		out.Options.Sorter = cloneRaw(over.Options.Sorter)
	}
	if len(over.Options.Merger) > 0 {
		out.Options.Merger = cloneRaw(over.Options.Merger)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 HUGESORT_；集合之外的键忽略；数值非法返回 ErrConfig。
// 支持：INPUT, OUTPUT, MEMORY_FRACTION, CHUNK_SIZE, CONCURRENCY, SAMPLE_LINES,
// TEMP_DIR, KEEP_TEMP, LOG_LEVEL, LOG_DIR, COMPONENTS_*, OPTIONS_*_JSON。
// HUGESORT_CONFIG_JSON 由调用方作为配置源处理，此处忽略。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		nk := strings.TrimPrefix(key, EnvPrefix)
		var err error
		switch nk {
		case "INPUT":
			over.Input = strings.TrimSpace(val)
		case "OUTPUT":
			over.Output = strings.TrimSpace(val)
		case "MEMORY_FRACTION":
			over.MemoryFraction, err = atof(val)
		case "CHUNK_SIZE":
			over.ChunkSize, err = atoi(val)
		case "CONCURRENCY":
			over.Concurrency, err = atoi(val)
		case "SAMPLE_LINES":
			over.SampleLines, err = atoi(val)
		case "TEMP_DIR":
			over.TempDir = strings.TrimSpace(val)
		case "KEEP_TEMP":
			over.KeepTemp, err = strconv.ParseBool(strings.TrimSpace(val))
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_SORTER":
			over.Components.Sorter = strings.TrimSpace(val)
		case "COMPONENTS_MERGER":
			over.Components.Merger = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawOrNil(val)
		case "OPTIONS_SORTER_JSON":
			over.Options.Sorter = rawOrNil(val)
		case "OPTIONS_MERGER_JSON":
			over.Options.Merger = rawOrNil(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawOrNil(val)
		default:
			// 非本集合的键忽略（例如 CONFIG_JSON）。
		}
		if err != nil {
			return Config{}, fmt.Errorf("%w: env %s=%q: %v", contract.ErrConfig, key, val, err)
		}
	}
	return over, nil
}

// rawOrNil: 空值视为未设置，避免清空已有 options。
func rawOrNil(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return json.RawMessage(s)
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func atof(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
