package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hugesort/internal/diag"
	"hugesort/internal/gen"
	"hugesort/pkg/contract"
	wfs "hugesort/plugins/writer/filesystem"
)

// 测试数据生成器：hugegen -f name -ln N [-p dir] [-seed S]
// 退出码：0 成功；1 写入失败；3 参数错误。
func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	start := time.Now()
	fs := flag.NewFlagSet("hugegen", flag.ContinueOnError)
	var (
		name  string
		lines uint64
		dir   string
		seed  int64
		level string
	)
	fs.StringVar(&name, "f", "", "文件名（自动补全 .txt）")
	fs.Uint64Var(&lines, "ln", 0, "行数（>0）")
	fs.StringVar(&dir, "p", "", "输出目录（默认当前目录）")
	fs.Int64Var(&seed, "seed", 0, "随机种子；0 表示按当前时间")
	fs.StringVar(&level, "log-level", "info", "日志级别 debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 3
	}
	logger := diag.NewLoggerAt("", level, "")

	dest, err := destPath(name, lines, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
		logger.Error("gen", string(diag.Classify(err)), "first error", &start)
		return 3
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	t := logger.StartWithKV("gen", "generate", dest, "", map[string]string{"seed": strconv.FormatInt(seed, 10)})
	pr, pw := io.Pipe()
	go func() {
		_ = pw.CloseWithError(gen.Generate(pw, lines, rand.New(rand.NewSource(seed))))
	}()
	if err := wfs.New(nil).Write(context.Background(), dest, pr); err != nil {
		_ = pr.CloseWithError(err)
		fmt.Fprintf(os.Stderr, "写入失败: %v\n", err)
		logger.Error("gen", string(diag.Classify(err)), "first error", &start)
		return 1
	}
	t.Finish("generate", int64(lines))
	fmt.Fprintf(os.Stderr, "[ok] %s 已生成 %d 行 | 用时 %s\n", dest, lines, time.Since(start).Round(time.Millisecond))
	return 0
}

// destPath 校验参数并返回目标文件路径；目录须已存在。
func destPath(name string, lines uint64, dir string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: -f is required", contract.ErrConfig)
	}
	if lines == 0 {
		return "", fmt.Errorf("%w: -ln must be > 0", contract.ErrConfig)
	}
	if dir == "" {
		dir = "."
	}
	st, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%w: -p is not a directory: %s", contract.ErrConfig, dir)
	}
	return filepath.Join(dir, gen.FileName(name)), nil
}
