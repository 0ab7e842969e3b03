package contract

import (
	"context"
	"io"
)

// Writer: 将排序结果以流式方式持久化到目标路径。
// 约束：
//  1. 单写者；
//  2. 流式写入（O(1) 额外内存），按字节透传，不读取/修改业务内容；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回退）；
//  5. 不创建目录：目标目录存在且可写由调用方（CLI 预检）保证。
type Writer interface {
	Write(ctx context.Context, dest string, r io.Reader) error
}
