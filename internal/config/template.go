package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 输入留空（由 CLI 位置参数或 --input 提供），输出为当前目录 sortedfile.txt；
// - 组件名采用仓库内置实现；
// - 选项给出安全中性默认值，且包含全部键。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Input = ""
	// 模板中不固化探测到的 CPU 数
	cfg.Concurrency = 4
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536
}`)
	cfg.Options.Sorter = json.RawMessage(`{
  "temp_dir": "",
  "buf_size": 65536
}`)
	cfg.Options.Merger = json.RawMessage(`{
  "read_buf_size": 65536,
  "write_buf_size": 262144
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "perm_file": 420,
  "buf_size": 65536
}`)
	return cfg
}
