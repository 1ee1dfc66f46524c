package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Run 描述一次回测运行的参数。
type Run struct {
	Seed         int64
	WindowCount  int
	WindowSize   int
	InitialValue float64
	Series       []string
	AlignedRows  int
	StartedAt    time.Time
}

// WindowResult 为单个策略在单个窗口上的绩效。
type WindowResult struct {
	Strategy    string
	Window      int
	Start       int
	Size        int
	StartDate   string
	EndDate     string
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
}

// Recorder 将运行参数及逐窗口结果写入 SQLite。
type Recorder struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecorder 初始化运行记录器，创建所需表结构。
func NewRecorder(store *Store, logger *zap.Logger) (*Recorder, error) {
	if store == nil || store.DB() == nil {
		return nil, errors.New("store: 数据库实例不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		db:     store.DB(),
		logger: logger,
	}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed INTEGER NOT NULL,
			window_count INTEGER NOT NULL,
			window_size INTEGER NOT NULL,
			initial_value REAL NOT NULL,
			series TEXT NOT NULL,
			aligned_rows INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_window_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			strategy TEXT NOT NULL,
			window_index INTEGER NOT NULL,
			start_index INTEGER NOT NULL,
			window_size INTEGER NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			total_return REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			sharpe_ratio REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_window_results_run ON backtest_window_results(run_id, strategy);`,
	}

	for _, stmt := range schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: 初始化表结构失败: %w", err)
		}
	}
	return nil
}

// PendingRun 为已写入但尚未提交的运行记录，输出文件发布成功后才提交。
type PendingRun struct {
	tx      *sql.Tx
	runID   int64
	results int
	logger  *zap.Logger
}

// RunID 返回暂存运行的 ID，提交前对其他连接不可见。
func (p *PendingRun) RunID() int64 {
	return p.runID
}

// Commit 提交事务并返回运行 ID。
func (p *PendingRun) Commit() (int64, error) {
	if err := p.tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交事务失败: %w", err)
	}
	p.logger.Info("回测结果已入库", zap.Int64("run_id", p.runID), zap.Int("results", p.results))
	return p.runID, nil
}

// Rollback 放弃暂存的运行记录。
func (p *PendingRun) Rollback() error {
	if err := p.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("store: 回滚事务失败: %w", err)
	}
	return nil
}

// Stage 在事务中写入运行及全部结果但不提交。
// ctx 取消时事务自动回滚，之后 Commit 返回错误。
func (r *Recorder) Stage(ctx context.Context, run Run, results []WindowResult) (_ *PendingRun, err error) {
	series, err := json.Marshal(run.Series)
	if err != nil {
		return nil, fmt.Errorf("store: 序列化标的列表失败: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO backtest_runs (seed, window_count, window_size, initial_value, series, aligned_rows, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Seed, run.WindowCount, run.WindowSize, run.InitialValue, string(series), run.AlignedRows,
		run.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("store: 写入运行记录失败: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: 获取运行ID失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_window_results
		 (run_id, strategy, window_index, start_index, window_size, start_date, end_date, total_return, max_drawdown, sharpe_ratio)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("store: 预编译语句失败: %w", err)
	}
	defer stmt.Close()

	for _, wr := range results {
		if _, err = stmt.ExecContext(ctx, runID, wr.Strategy, wr.Window, wr.Start, wr.Size,
			wr.StartDate, wr.EndDate, wr.TotalReturn, wr.MaxDrawdown, wr.SharpeRatio); err != nil {
			return nil, fmt.Errorf("store: 写入窗口结果失败: %w", err)
		}
	}

	return &PendingRun{tx: tx, runID: runID, results: len(results), logger: r.logger}, nil
}

// Record 在单个事务中写入运行及全部结果并立即提交，返回运行 ID。
func (r *Recorder) Record(ctx context.Context, run Run, results []WindowResult) (int64, error) {
	pending, err := r.Stage(ctx, run, results)
	if err != nil {
		return 0, err
	}
	return pending.Commit()
}

// StrategyAverage 为某次运行中单个策略的平均总收益。
type StrategyAverage struct {
	Strategy       string
	Windows        int
	AvgTotalReturn float64
}

// Averages 返回指定运行各策略的平均总收益，按策略名排序。
func (r *Recorder) Averages(ctx context.Context, runID int64) ([]StrategyAverage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT strategy, COUNT(*), AVG(total_return)
		 FROM backtest_window_results WHERE run_id = ?
		 GROUP BY strategy ORDER BY strategy`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: 查询运行结果失败: %w", err)
	}
	defer rows.Close()

	var out []StrategyAverage
	for rows.Next() {
		var avg StrategyAverage
		if err := rows.Scan(&avg.Strategy, &avg.Windows, &avg.AvgTotalReturn); err != nil {
			return nil, fmt.Errorf("store: 读取运行结果失败: %w", err)
		}
		out = append(out, avg)
	}
	return out, rows.Err()
}
