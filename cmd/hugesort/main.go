package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	cfgpkg "hugesort/internal/config"
	"hugesort/internal/diag"
	"hugesort/internal/pipeline"
	"hugesort/pkg/contract"
)

var pipelineRun = pipeline.Run

// 简化的 CLI：单一子命令 sort。
// 位置参数：[input [output]]；等价于 --input/--output。
// 退出码：0 成功；1 运行期失败；3 配置/预检失败。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := runID()
	logLevel := "info"
	// 配置合并前仅写 stderr
	logger := diag.NewLoggerAt(corrID, logLevel, "")
	// fail 统一处理预检类失败：提示、记录首个错误、返回退出码 3
	fail := func(comp, msg string, err error) int {
		fprintf(os.Stderr, "%s: %v\n", msg, err)
		logger.Error(comp, string(diag.Classify(err)), "first error", &start)
		return 3
	}
	var (
		flagConfig      string
		flagInput       string
		flagOutput      string
		flagFraction    float64
		flagChunkSize   int
		flagConcurrency int
		flagTempDir     string
		flagKeepTemp    bool
		flagInit        string
		flagStatus      bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（.json/.yaml/.yml）；缺省读取 ./config.json（若存在）")
	flag.StringVar(&flagInput, "input", "", "待排序文件（覆盖配置；亦可用第一个位置参数）")
	flag.StringVar(&flagOutput, "output", "", "输出文件（覆盖配置；亦可用第二个位置参数；默认 ./sortedfile.txt）")
	flag.Float64Var(&flagFraction, "memory-fraction", 0, "排序阶段可用的物理内存占比 (0,1]（覆盖配置）")
	flag.IntVar(&flagChunkSize, "chunk-size", 0, "每块记录数；>0 时跳过内存估算（覆盖配置）")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "并发排序 worker 数（覆盖配置）")
	flag.StringVar(&flagTempDir, "temp-dir", "", "临时文件目录（覆盖配置；默认系统临时目录）")
	flag.BoolVar(&flagKeepTemp, "keep-temp", false, "保留临时分块文件（排查用）")
	flag.StringVar(&flagInit, "init-config", "", "写出默认配置模板：文件路径、已存在目录（写入其下 config.json）或 - (stdout)；不覆盖")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return 3
	}

	if p := strings.TrimSpace(flagInit); p != "" {
		if err := initConfig(p); err != nil {
			return fail("cli", "生成默认配置失败", err)
		}
		return 0
	}

	// 配置源：HUGESORT_CONFIG_JSON 优先于文件
	cfgJSON := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON")
	if flagConfig == "" {
		flagConfig = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if flagConfig == "" {
		if _, err := os.Stat("config.json"); err == nil {
			flagConfig = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if cfgJSON != "" || flagConfig != "" {
		var base cfgpkg.Config
		var err error
		if cfgJSON != "" {
			base, err = cfgpkg.LoadJSON("", []byte(cfgJSON))
		} else {
			base, err = cfgpkg.LoadFile(flagConfig)
		}
		if err != nil {
			return fail("config", "配置解析失败", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return fail("config", "环境变量解析失败", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	args := flag.Args()
	if len(args) > 2 {
		return fail("cli", "位置参数过多", fmt.Errorf("%w: 最多 input 与 output 两个", contract.ErrConfig))
	}
	overCLI := cfgpkg.Config{
		MemoryFraction: flagFraction,
		TempDir:        flagTempDir,
		KeepTemp:       flagKeepTemp,
	}
	for i, p := range args {
		if i == 0 {
			overCLI.Input = p
		} else {
			overCLI.Output = p
		}
	}
	if flagInput != "" {
		overCLI.Input = flagInput
	}
	if flagOutput != "" {
		overCLI.Output = flagOutput
	}
	if flagChunkSize > 0 {
		overCLI.ChunkSize = flagChunkSize
	}
	if flagConcurrency > 0 {
		overCLI.Concurrency = flagConcurrency
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "有效配置:\n")
		_ = encodeConfig(os.Stderr, cfg)
		return fail("config", "配置校验失败", err)
	}

	// 按最终配置重建 logger
	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" {
		logLevel = lv
	}
	logDir := diag.DefaultLogDir
	if d := strings.TrimSpace(cfg.Logging.Dir); d != "" {
		logDir = d
	}
	logger = diag.NewLoggerAt(corrID, logLevel, logDir)
	defer logger.Close()

	for _, c := range []struct {
		msg   string
		check func() error
	}{
		{"输入文件不可用", func() error { return preflightCheckInput(cfg.Input) }},
		{"输出路径不可写", func() error { return preflightCheckOutput(cfg.Output) }},
		{"临时目录不可写", func() error { return preflightCheckTempDir(cfg.TempDir) }},
	} {
		if err := c.check(); err != nil {
			return fail("cli", c.msg, err)
		}
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return fail("config", "装配失败", err)
	}

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	if term != nil {
		term.RunStart(cfg.Input, cfg.Concurrency)
	}

	logger.DebugStart("config", "effective", cfg.Input, "", map[string]string{
		"output":          cfg.Output,
		"memory_fraction": strconv.FormatFloat(cfg.MemoryFraction, 'f', -1, 64),
		"chunk_size":      strconv.Itoa(cfg.ChunkSize),
		"concurrency":     strconv.Itoa(cfg.Concurrency),
		"sample_lines":    strconv.Itoa(cfg.SampleLines),
		"temp_dir":        cfg.TempDir,
		"keep_temp":       strconv.FormatBool(cfg.KeepTemp),
		"reader":          cfg.Components.Reader,
		"sorter":          cfg.Components.Sorter,
		"merger":          cfg.Components.Merger,
		"writer":          cfg.Components.Writer,
	})

	// Ctrl-C/SIGTERM 取消运行，保证临时文件清理
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := logger.Start("pipeline", "run")
	st, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		logger.ErrorWithKV("pipeline", code, "first error", &start, cfg.Input, "", diag.SnapshotKV())
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		if term != nil {
			term.RunFinish(false, st.Written, time.Since(start))
		}
		return 1
	}
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	kv := diag.SnapshotKV()
	kv["chunk_size"] = strconv.Itoa(st.ChunkSize)
	kv["chunks"] = strconv.Itoa(st.Chunks)
	kv["failed_chunks"] = strconv.Itoa(st.FailedChunks)
	kv["lines"] = strconv.FormatInt(st.Lines, 10)
	kv["skipped"] = strconv.FormatInt(st.Skipped, 10)
	kv["lost_streams"] = strconv.Itoa(st.LostStreams)
	kv["lost_lines"] = strconv.FormatInt(st.LostLines, 10)
	t.FinishKV("run", st.Written, kv)
	if term != nil {
		term.RunFinish(true, st.Written, time.Since(start))
	}
	return 0
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

// initConfig 写出默认模板；目录参数落到其下的 config.json；已存在的文件不覆盖。
func initConfig(path string) error {
	if path == "-" {
		return encodeConfig(os.Stdout, cfgpkg.DefaultTemplateConfig())
	}
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, "config.json")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	if err := encodeConfig(f, cfgpkg.DefaultTemplateConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeConfig(w io.Writer, c cfgpkg.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// runID 生成单次运行的关联 ID；随机源不可用时退化为时间戳。
func runID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}

// preflightCheckInput: 输入须存在且为常规文件。
func preflightCheckInput(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: 不是常规文件: %s", contract.ErrConfig, path)
	}
	return nil
}

// preflightCheckOutput: 输出所在目录须已存在且可写；输出本身不能是目录。
// 通过在同目录创建并删除临时文件探测，不触碰已存在的输出文件。
func preflightCheckOutput(path string) error {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return fmt.Errorf("%w: 输出路径是目录: %s", contract.ErrConfig, path)
	}
	return probeDir(filepath.Dir(path))
}

// preflightCheckTempDir: 指定临时目录时检查其可写性；未指定使用系统临时目录。
func preflightCheckTempDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return probeDir(dir)
}

func probeDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: 不是目录: %s", contract.ErrConfig, dir)
	}
	f, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
