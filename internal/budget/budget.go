// Package budget 根据输入样本与主机内存估算分块大小（每块记录数）。
//
// 估算仅为建议值：排序阶段不做准入控制，极端的行长分布下实际峰值内存可能超出预算。
package budget

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"hugesort/pkg/contract"
)

// DefaultSampleLines 为默认采样行数。
const DefaultSampleLines = 1000

// DefaultFraction 为默认内存占比。
const DefaultFraction = 0.5

// Sample 描述一次采样结果（供日志输出）。
type Sample struct {
	Lines        int
	Bytes        int64
	AvgLineBytes float64
	AllowedBytes uint64
}

// EstimateChunkSize 采样输入文件开头至多 sampleLines 行，按
// chunkSize = max(1, floor(fraction*totalMemory/avgLineBytes)) 计算分块大小。
// 规则：
// - fraction 必须位于 (0,1]，否则返回 ErrConfig；
// - sampleLines<=0 使用 DefaultSampleLines；
// - 空文件或平均行长为 0 时返回 1（空文件由调用方处理）；
// - 结果上限为 math.MaxInt32。
func EstimateChunkSize(path string, fraction float64, totalMemory uint64, sampleLines int) (int, Sample, error) {
	if !(fraction > 0 && fraction <= 1) {
		return 0, Sample{}, fmt.Errorf("%w: memory fraction %v not in (0,1]", contract.ErrConfig, fraction)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, Sample{}, err
	}
	defer f.Close()
	s, err := sample(f, sampleLines)
	if err != nil {
		return 0, s, err
	}
	s.AllowedBytes = uint64(fraction * float64(totalMemory))
	return chunkSizeFor(s), s, nil
}

// sample 读取至多 n 行并统计 UTF-8 字节数（不含换行符）。
func sample(r io.Reader, n int) (Sample, error) {
	if n <= 0 {
		n = DefaultSampleLines
	}
	var s Sample
	br := bufio.NewReader(r)
	for s.Lines < n {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			s.Bytes += int64(utf8Len(line))
			s.Lines++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, err
		}
	}
	if s.Lines > 0 {
		s.AvgLineBytes = float64(s.Bytes) / float64(s.Lines)
	}
	return s, nil
}

func chunkSizeFor(s Sample) int {
	if s.Lines == 0 || s.AvgLineBytes <= 0 {
		return 1
	}
	n := math.Floor(float64(s.AllowedBytes) / s.AvgLineBytes)
	if n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// utf8Len 返回字符串按 UTF-8 编码的字节数；非法字节按替换字符（3 字节）计。
func utf8Len(s string) int {
	if utf8.ValidString(s) {
		return len(s)
	}
	n := 0
	for _, r := range s {
		n += utf8.RuneLen(r)
	}
	return n
}
