package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// File 为一个待发布的输出文件。
type File struct {
	Name  string
	Write func(w io.Writer) error
}

// ValuesFile 用 writer 编码数值矩阵，文件名自动补全扩展名。
func ValuesFile(base string, writer ValuesWriter, rows [][]float64) File {
	return File{
		Name: base + writer.Extension(),
		Write: func(w io.Writer) error {
			return writer.WriteValues(w, rows)
		},
	}
}

// LabelsFile 输出文本矩阵 CSV。
func LabelsFile(base string, rows [][]string) File {
	return File{
		Name: base + ".csv",
		Write: func(w io.Writer) error {
			return WriteLabels(w, rows)
		},
	}
}

// Publisher 先将全部文件写入临时文件，全部成功后再逐一改名，
// 失败时清理临时文件，不留下部分结果。
type Publisher struct {
	dir    string
	logger *zap.Logger
}

// NewPublisher 创建指向输出目录的 Publisher。
func NewPublisher(dir string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{dir: dir, logger: logger}
}

// Publish 写出全部文件并返回最终路径。
func (p *Publisher) Publish(files []File) ([]string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: 创建目录 %q 失败: %w", p.dir, err)
	}

	temps := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}

	for _, f := range files {
		tmp, err := p.writeTemp(f)
		if tmp != "" {
			temps = append(temps, tmp)
		}
		if err != nil {
			cleanup()
			return nil, err
		}
	}

	paths := make([]string, len(files))
	for i, f := range files {
		final := filepath.Join(p.dir, f.Name)
		if err := os.Rename(temps[i], final); err != nil {
			cleanup()
			for _, done := range paths[:i] {
				_ = os.Remove(done)
			}
			return nil, fmt.Errorf("report: 发布 %q 失败: %w", final, err)
		}
		paths[i] = final
		p.logger.Info("输出文件已写入", zap.String("path", final))
	}

	return paths, nil
}

// Withdraw 删除已发布的文件，用于后续步骤失败时撤回本次输出。
func (p *Publisher) Withdraw(paths []string) error {
	var err error
	for _, path := range paths {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, fmt.Errorf("report: 撤回 %q 失败: %w", path, rmErr))
			continue
		}
		p.logger.Info("输出文件已撤回", zap.String("path", path))
	}
	return err
}

func (p *Publisher) writeTemp(f File) (path string, err error) {
	tmp, err := os.CreateTemp(p.dir, "."+f.Name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("report: 创建临时文件失败: %w", err)
	}
	path = tmp.Name()

	defer func() {
		err = multierr.Append(err, tmp.Close())
	}()

	if err := f.Write(tmp); err != nil {
		return path, fmt.Errorf("report: 写入 %s 失败: %w", f.Name, err)
	}
	return path, nil
}
