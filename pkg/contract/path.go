package contract

import (
	"path"
	"strings"
)

// NormalizePath 规范化路径，用于日志展示与输入/输出同一性校验（词法比较，不解析符号链接）。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}
