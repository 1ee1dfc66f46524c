package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了一次回测运行所需的全部配置项。
type Config struct {
	Run      RunConfig      `mapstructure:"run"`
	Series   SeriesConfig   `mapstructure:"series"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RunConfig 控制窗口抽样与模拟参数。
type RunConfig struct {
	Seed          int64   `mapstructure:"seed"`
	WindowCount   int     `mapstructure:"window_count"`
	WindowSize    int     `mapstructure:"window_size"`
	InitialValue  float64 `mapstructure:"initial_value"`
	PrimarySeries int     `mapstructure:"primary_series"`
	ExtractField  string  `mapstructure:"extract_field"`
}

// SeriesConfig 描述参与对齐的标的及其数据文件。
type SeriesConfig struct {
	DataDir string            `mapstructure:"data_dir"`
	IDs     []string          `mapstructure:"ids"`
	Paths   map[string]string `mapstructure:"paths"`
}

// PathFor 返回标的数据文件路径，未单独配置时使用 <data_dir>/<id>.csv。
func (s SeriesConfig) PathFor(id string) string {
	// viper 会将 map 键转为小写
	if p, ok := s.Paths[strings.ToLower(id)]; ok && p != "" {
		return p
	}
	return filepath.Join(s.DataDir, id+".csv")
}

// OutputConfig 控制结果文件输出。
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Format    string `mapstructure:"format"`
	Precision int    `mapstructure:"precision"`
}

// DatabaseConfig 管理运行记录数据库。
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

var (
	validFields  = map[string]bool{"open": true, "high": true, "low": true, "close": true, "adj_close": true, "adjusted_close": true, "volume": true}
	validFormats = map[string]bool{"csv": true, "parquet": true}
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.Run.WindowCount <= 0 {
		err = multierr.Append(err, errors.New("run.window_count 必须大于0"))
	}
	if c.Run.WindowSize < 1 {
		err = multierr.Append(err, errors.New("run.window_size 必须大于0"))
	}
	if c.Run.InitialValue <= 0 {
		err = multierr.Append(err, errors.New("run.initial_value 必须为正"))
	}
	if !validFields[strings.ToLower(c.Run.ExtractField)] {
		err = multierr.Append(err, fmt.Errorf("run.extract_field 不支持 %q", c.Run.ExtractField))
	}
	if len(c.Series.IDs) == 0 {
		err = multierr.Append(err, errors.New("series.ids 至少包含一个标的"))
	}
	seen := make(map[string]bool, len(c.Series.IDs))
	for _, id := range c.Series.IDs {
		key := strings.ToUpper(strings.TrimSpace(id))
		if key == "" {
			err = multierr.Append(err, errors.New("series.ids 不能包含空标的"))
			continue
		}
		if seen[key] {
			err = multierr.Append(err, fmt.Errorf("series.ids 重复标的 %q", id))
		}
		seen[key] = true
	}
	if c.Run.PrimarySeries < 0 || c.Run.PrimarySeries >= len(c.Series.IDs) {
		err = multierr.Append(err, fmt.Errorf("run.primary_series 必须位于[0,%d)", len(c.Series.IDs)))
	}
	if c.Output.Dir == "" {
		err = multierr.Append(err, errors.New("output.dir 不能为空"))
	}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		err = multierr.Append(err, fmt.Errorf("output.format 不支持 %q", c.Output.Format))
	}
	if c.Output.Precision < -1 {
		err = multierr.Append(err, errors.New("output.precision 不能小于-1"))
	}
	if c.Database.Enabled {
		if c.Database.Path == "" && !c.Database.InMemory {
			err = multierr.Append(err, errors.New("database.path 不能为空"))
		}
		if c.Database.MaxOpenConns <= 0 {
			err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
		}
		if c.Database.MaxIdleConns < 0 {
			err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
		}
		if c.Database.ConnMaxLifetime < 0 {
			err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
		}
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
