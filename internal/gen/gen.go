// Package gen 生成 `<Number>. <Text>` 格式的测试输入。
package gen

import (
	"bufio"
	"io"
	"math/rand"
	"strconv"
	"strings"
)

// MaxNumber 为生成编号的上限（含）。
const MaxNumber = 99999

// Brands 为可选文本；重复项用于拉高其出现频率。
var Brands = []string{"BMW", "Audi", "Mercedes", "Renault", "Ford", "BMW", "Audi"}

// Generate 向 w 写出 n 行 "<1..MaxNumber>. <brand>\n"。
// rnd 为 nil 时使用固定种子 1，便于复现。
func Generate(w io.Writer, n uint64, rnd *rand.Rand) error {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	bw := bufio.NewWriterSize(w, 256*1024)
	buf := make([]byte, 0, 64)
	for i := uint64(0); i < n; i++ {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(rnd.Intn(MaxNumber)+1), 10)
		buf = append(buf, ". "...)
		buf = append(buf, Brands[rnd.Intn(len(Brands))]...)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FileName 补全 .txt 扩展名（已有则不变）。
func FileName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".txt") {
		return name
	}
	return name + ".txt"
}
