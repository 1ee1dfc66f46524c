package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"index-backtest/internal/align"
	"index-backtest/internal/backtest"
	"index-backtest/internal/config"
	"index-backtest/internal/loader"
	"index-backtest/internal/quote"
	"index-backtest/internal/report"
	"index-backtest/internal/store"
)

// consistencyTolerance 为买入持有模拟与最高价提取曲线的相对误差上限。
const consistencyTolerance = 1e-9

// Outcome 汇总一次运行的产出。
type Outcome struct {
	AlignedRows int
	Windows     []backtest.Window
	Outputs     []string
	RunID       int64
}

// App 聚合核心依赖并驱动一次完整回测。
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *store.Recorder
}

// New 创建 App 实例，recorder 可为空。
func New(cfg *config.Config, logger *zap.Logger, recorder *store.Recorder) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
	}
}

// Run 加载数据、对齐、抽样窗口并执行全部策略，最后一次性写出结果。
func (a *App) Run(ctx context.Context) (Outcome, error) {
	startedAt := time.Now()
	runCfg := a.cfg.Run

	a.logger.Info("回测开始",
		zap.Strings("series", a.cfg.Series.IDs),
		zap.Int64("seed", runCfg.Seed),
		zap.Int("window_count", runCfg.WindowCount),
		zap.Int("window_size", runCfg.WindowSize),
	)

	sources := make([]loader.Source, len(a.cfg.Series.IDs))
	for i, id := range a.cfg.Series.IDs {
		sources[i] = loader.Source{ID: id, Path: a.cfg.Series.PathFor(id)}
	}
	series, err := loader.New(a.logger).LoadAll(ctx, sources)
	if err != nil {
		return Outcome{}, fmt.Errorf("加载数据失败: %w", err)
	}

	rows := align.Collect(series...)
	a.logger.Info("数据对齐完成", zap.Int("aligned_rows", len(rows)))
	if len(rows) > 0 {
		a.logger.Debug("对齐区间",
			zap.String("first", rows[0].Date().Format(quote.DateLayout)),
			zap.String("last", rows[len(rows)-1].Date().Format(quote.DateLayout)),
		)
	}

	windows, err := backtest.NewSampler(backtest.NewRand(runCfg.Seed)).
		Sample(runCfg.WindowCount, runCfg.WindowSize, len(rows))
	if err != nil {
		return Outcome{}, err
	}

	pl := pipeline{
		rows:     rows,
		windows:  windows,
		primary:  runCfg.PrimarySeries,
		engine:   backtest.NewEngine(backtest.Config{InitialValue: runCfg.InitialValue}, a.logger),
		registry: backtest.NewRegistry(),
		logger:   a.logger,
	}
	computed, err := pl.compute(runCfg.ExtractField)
	if err != nil {
		return Outcome{}, err
	}

	files, err := a.buildFiles(computed)
	if err != nil {
		return Outcome{}, err
	}

	// 运行记录先在事务中暂存，文件发布成功后再提交，两者同成同败
	var pending *store.PendingRun
	if a.recorder != nil {
		run := store.Run{
			Seed:         runCfg.Seed,
			WindowCount:  runCfg.WindowCount,
			WindowSize:   runCfg.WindowSize,
			InitialValue: pl.engine.InitialValue(),
			Series:       a.cfg.Series.IDs,
			AlignedRows:  len(rows),
			StartedAt:    startedAt,
		}
		if pending, err = a.recorder.Stage(ctx, run, computed.windowResults()); err != nil {
			return Outcome{}, err
		}
	}

	publisher := report.NewPublisher(a.cfg.Output.Dir, a.logger)
	outputs, err := publisher.Publish(files)
	if err != nil {
		if pending != nil {
			err = multierr.Append(err, pending.Rollback())
		}
		return Outcome{}, err
	}

	outcome := Outcome{
		AlignedRows: len(rows),
		Windows:     windows,
		Outputs:     outputs,
	}

	if pending != nil {
		runID, err := pending.Commit()
		if err != nil {
			return Outcome{}, multierr.Append(err, publisher.Withdraw(outputs))
		}
		outcome.RunID = runID
	}

	a.logger.Info("回测完成",
		zap.Int("outputs", len(outputs)),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	return outcome, nil
}

func (a *App) buildFiles(t tables) ([]report.File, error) {
	writer, err := report.NewValuesWriter(a.cfg.Output.Format, a.cfg.Output.Precision)
	if err != nil {
		return nil, err
	}

	id := strings.ToLower(a.cfg.Series.IDs[a.cfg.Run.PrimarySeries])
	return []report.File{
		report.ValuesFile(fmt.Sprintf("extracted_%s_%s", id, t.field), writer, t.extracted),
		report.ValuesFile(fmt.Sprintf("simulated_%s_high", id), writer, t.normalized[buyAndHold]),
		report.ValuesFile(fmt.Sprintf("simulated_%s_close_open", id), writer, t.normalized[buyCloseSellOpen]),
		report.ValuesFile("shifting_sands", writer, t.normalized[shiftingSands]),
		report.LabelsFile("windows", t.dates),
	}, nil
}
