package loader

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"index-backtest/internal/quote"
)

// Source 描述一个待加载的标的数据文件。
type Source struct {
	ID   string
	Path string
}

// Loader 并行读取多个标的的历史数据。
type Loader struct {
	logger *zap.Logger
}

// New 创建 Loader。
func New(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadAll 读取全部数据源，结果顺序与 sources 一致。
// 各文件的告警先缓存，读取结束后按 sources 顺序输出，保证日志顺序可复现。
func (l *Loader) LoadAll(ctx context.Context, sources []Source) ([]quote.Series, error) {
	if len(sources) == 0 {
		return nil, errors.New("loader: 数据源列表为空")
	}

	out := make([]quote.Series, len(sources))
	buffered := make([]*observer.ObservedLogs, len(sources))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, src := range sources {
		core, logs := observer.New(zapcore.DebugLevel)
		buffered[i] = logs
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			series, err := ReadFile(src.ID, src.Path, zap.New(core))
			if err != nil {
				return err
			}
			out[i] = series
			return nil
		})
	}

	err := group.Wait()
	for _, logs := range buffered {
		l.replay(logs)
	}
	if err != nil {
		return nil, err
	}

	for _, s := range out {
		l.logger.Debug("标的数据加载完成",
			zap.String("series", s.ID),
			zap.Int("records", s.Len()),
		)
	}

	return out, nil
}

func (l *Loader) replay(logs *observer.ObservedLogs) {
	for _, entry := range logs.TakeAll() {
		if ce := l.logger.Check(entry.Level, entry.Message); ce != nil {
			ce.Write(entry.Context...)
		}
	}
}
