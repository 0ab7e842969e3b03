package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（哨兵）。
var (
	// ErrParse: 行格式非法（缺少分隔符、非数字前缀）。局部恢复：跳过该行并告警。
	ErrParse = errors.New("parse error")
	// ErrResource: 临时资源创建/打开/写入失败。仅中止受影响的 Chunk 或归并流。
	ErrResource = errors.New("resource error")
	// ErrConfig: 配置/前置条件不满足（输入不存在、输出不可写等）。致命，开工前退出。
	ErrConfig = errors.New("configuration error")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

// ParseError 携带出错行与原因；errors.Is(err, ErrParse) 为真。
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", truncate(e.Line, 80), e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// ResourceError 描述临时资源上的失败；同时可 errors.Is 到 ErrResource 与底层错误。
type ResourceError struct {
	Op   string // create|open|write|read|remove
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() []error { return []error{ErrResource, e.Err} }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
