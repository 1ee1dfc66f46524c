package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"index-backtest/internal/app"
	"index-backtest/internal/config"
	"index-backtest/internal/log"
	"index-backtest/internal/store"
)

func main() {
	var (
		configPath   string
		seed         int64
		windowCount  int
		windowSize   int
		initialValue float64
		outputDir    string
		outputFormat string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.Int64Var(&seed, "seed", 0, "随机种子")
	flag.IntVar(&windowCount, "windows", 0, "抽样窗口数量")
	flag.IntVar(&windowSize, "window-size", 0, "窗口长度（交易日）")
	flag.Float64Var(&initialValue, "initial-value", 0, "每个窗口的起始净值")
	flag.StringVar(&outputDir, "out", "", "输出目录")
	flag.StringVar(&outputFormat, "format", "", "输出格式 csv|parquet")
	flag.Parse()

	// 仅覆盖命令行中显式给出的参数
	overrides := make(map[string]any)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			overrides["run.seed"] = seed
		case "windows":
			overrides["run.window_count"] = windowCount
		case "window-size":
			overrides["run.window_size"] = windowSize
		case "initial-value":
			overrides["run.initial_value"] = initialValue
		case "out":
			overrides["output.dir"] = outputDir
		case "format":
			overrides["output.format"] = outputFormat
		}
	})

	cfg, err := config.LoadWithOverrides(configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("回测运行失败", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder *store.Recorder
	if cfg.Database.Enabled {
		sqliteStore, err := store.NewSQLite(cfg.Database)
		if err != nil {
			return fmt.Errorf("初始化数据库失败: %w", err)
		}
		defer func() {
			if closeErr := sqliteStore.Close(); closeErr != nil {
				logger.Warn("关闭数据库失败", zap.Error(closeErr))
			}
		}()

		recorder, err = store.NewRecorder(sqliteStore, logger)
		if err != nil {
			return err
		}
	}

	outcome, err := app.New(cfg, logger, recorder).Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("结果已输出",
		zap.Strings("files", outcome.Outputs),
		zap.Int("aligned_rows", outcome.AlignedRows),
		zap.Int64("run_id", outcome.RunID),
	)
	return nil
}
