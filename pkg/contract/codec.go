package contract

import (
	"strconv"
	"strings"
)

// Separator: Number 与 Text 之间的分隔符，仅按首次出现切分。
const Separator = ". "

// ParseRecord 解析 `<Number>. <Text>`。
// 规则：
// - 仅在首个 ". " 处切分，Text 中可再次出现 ". "；
// - Number 为十进制有符号整数（64 位）；
// - Text 允许为空（"5. " 合法）。
func ParseRecord(line string) (Record, error) {
	i := strings.Index(line, Separator)
	if i < 0 {
		return Record{}, &ParseError{Line: line, Reason: "missing separator"}
	}
	n, err := strconv.ParseInt(line[:i], 10, 64)
	if err != nil {
		return Record{}, &ParseError{Line: line, Reason: "number: " + err.Error()}
	}
	return Record{Number: n, Text: line[i+len(Separator):]}, nil
}

// FormatRecord 输出 `<Number>. <Text>`（不含换行）。
func FormatRecord(r Record) string {
	return string(AppendRecord(nil, r))
}

// AppendRecord 将编码后的记录追加到 dst（不含换行），供热路径复用缓冲。
func AppendRecord(dst []byte, r Record) []byte {
	dst = strconv.AppendInt(dst, r.Number, 10)
	dst = append(dst, Separator...)
	return append(dst, r.Text...)
}
