package report

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func TestCSVWriter_ShortestRepresentation(t *testing.T) {
	var buf bytes.Buffer
	err := CSVWriter{Precision: -1}.WriteValues(&buf, [][]float64{{0, 0.1, 0.21}, {0, -0.5}})
	if err != nil {
		t.Fatalf("WriteValues returned error: %v", err)
	}
	want := "0,0.1,0.21\n0,-0.5\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestCSVWriter_FixedPrecision(t *testing.T) {
	var buf bytes.Buffer
	if err := (CSVWriter{Precision: 3}).WriteValues(&buf, [][]float64{{1.23456}}); err != nil {
		t.Fatalf("WriteValues returned error: %v", err)
	}
	if buf.String() != "1.235\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParquetWriter_LongFormat(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, nil)
	writer, err := NewValuesWriter("parquet", -1)
	if err != nil {
		t.Fatalf("NewValuesWriter returned error: %v", err)
	}

	paths, err := p.Publish([]File{ValuesFile("curves", writer, [][]float64{{1, 2}, {3}})})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	points, err := parquet.ReadFile[CurvePoint](paths[0])
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[2].Window != 1 || points[2].Step != 0 || points[2].Value != 3 {
		t.Errorf("unexpected last point %+v", points[2])
	}
}

func TestPublisher_WritesAllFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := NewPublisher(dir, nil)

	paths, err := p.Publish([]File{
		ValuesFile("a", CSVWriter{Precision: -1}, [][]float64{{1, 2}}),
		LabelsFile("windows", [][]string{{"2020-01-01", "2020-01-02"}}),
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}

	data, err := os.ReadFile(filepath.Join(dir, "windows.csv"))
	if err != nil {
		t.Fatalf("read windows.csv: %v", err)
	}
	if string(data) != "2020-01-01,2020-01-02\n" {
		t.Errorf("windows.csv = %q", data)
	}
}

func TestPublisher_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, nil)

	_, err := p.Publish([]File{
		ValuesFile("good", CSVWriter{Precision: -1}, [][]float64{{1}}),
		{Name: "bad.csv", Write: func(io.Writer) error { return errors.New("boom") }},
	})
	if err == nil {
		t.Fatal("expected publish error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected empty output dir, found %v", names)
	}
}

func TestNewValuesWriter_Unknown(t *testing.T) {
	if _, err := NewValuesWriter("xlsx", -1); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPublisher_Withdraw(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, nil)

	paths, err := p.Publish([]File{
		ValuesFile("a", CSVWriter{Precision: -1}, [][]float64{{1}}),
		ValuesFile("b", CSVWriter{Precision: -1}, [][]float64{{2}}),
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	// 已不存在的文件不算失败
	if err := os.Remove(paths[1]); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := p.Withdraw(paths); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty output dir after withdraw, found %d entries", len(entries))
	}
}
