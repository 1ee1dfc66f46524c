package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"index-backtest/internal/backtest"
	"index-backtest/internal/config"
	"index-backtest/internal/store"
)

// writeFixtures 生成三份日线文件，其中 B 缺少部分日期，C 含一行坏数据。
func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for s, id := range []string{"AAA", "BBB", "CCC"} {
		var b strings.Builder
		for d := 0; d < 40; d++ {
			if id == "BBB" && d%7 == 3 {
				continue
			}
			if id == "CCC" && d == 5 {
				b.WriteString("2020-01-06,null,null,null,null,null,null\n")
				continue
			}
			base := 10.0 + float64(s) + float64(d%5)*0.3 + float64(d)*0.05
			fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%.2f,%d\n",
				start.AddDate(0, 0, d).Format("2006-01-02"),
				base, base+0.4, base-0.3, base+0.1*float64((d+s)%3-1), base, 1000+d)
		}
		if err := os.WriteFile(filepath.Join(dir, id+".csv"), []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
}

func testConfig(dataDir, outDir string) *config.Config {
	return &config.Config{
		Run: config.RunConfig{
			Seed:          420,
			WindowCount:   6,
			WindowSize:    10,
			InitialValue:  100,
			PrimarySeries: 0,
			ExtractField:  "high",
		},
		Series: config.SeriesConfig{DataDir: dataDir, IDs: []string{"AAA", "BBB", "CCC"}},
		Output: config.OutputConfig{Dir: outDir, Format: "csv", Precision: -1},
	}
}

func TestRun_ProducesNamedOutputs(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)
	outDir := filepath.Join(t.TempDir(), "out")

	outcome, err := New(testConfig(dataDir, outDir), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 40 天中 BBB 缺 6 天，CCC 缺 1 天（与 BBB 不重叠）。
	if outcome.AlignedRows != 33 {
		t.Errorf("aligned rows = %d, want 33", outcome.AlignedRows)
	}

	want := []string{
		"extracted_aaa_high.csv",
		"simulated_aaa_high.csv",
		"simulated_aaa_close_open.csv",
		"shifting_sands.csv",
		"windows.csv",
	}
	if len(outcome.Outputs) != len(want) {
		t.Fatalf("outputs = %v", outcome.Outputs)
	}
	for i, name := range want {
		if filepath.Base(outcome.Outputs[i]) != name {
			t.Errorf("output %d = %s, want %s", i, outcome.Outputs[i], name)
		}
	}

	windows, err := os.ReadFile(filepath.Join(outDir, "windows.csv"))
	if err != nil {
		t.Fatalf("read windows.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(windows)), "\n")
	if len(lines) != 6 {
		t.Fatalf("windows.csv has %d lines, want 6", len(lines))
	}
	for _, line := range lines {
		if n := len(strings.Split(line, ",")); n != 10 {
			t.Errorf("window row has %d dates, want 10", n)
		}
	}

	extracted, _ := os.ReadFile(filepath.Join(outDir, "extracted_aaa_high.csv"))
	simulated, _ := os.ReadFile(filepath.Join(outDir, "simulated_aaa_high.csv"))
	if len(extracted) == 0 || len(simulated) == 0 {
		t.Fatal("expected non-empty curve files")
	}
	for _, line := range strings.Split(strings.TrimSpace(string(simulated)), "\n") {
		if !strings.HasPrefix(line, "0,") {
			t.Errorf("normalized row should start at 0: %s", line)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)

	outA := filepath.Join(t.TempDir(), "a")
	outB := filepath.Join(t.TempDir(), "b")
	if _, err := New(testConfig(dataDir, outA), nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := New(testConfig(dataDir, outB), nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	entries, err := os.ReadDir(outA)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		a, _ := os.ReadFile(filepath.Join(outA, e.Name()))
		b, err := os.ReadFile(filepath.Join(outB, e.Name()))
		if err != nil {
			t.Fatalf("missing %s in second run: %v", e.Name(), err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between runs", e.Name())
		}
	}
}

func TestRun_WindowTooLarge(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)
	outDir := filepath.Join(t.TempDir(), "out")

	cfg := testConfig(dataDir, outDir)
	cfg.Run.WindowSize = 500
	_, err := New(cfg, nil, nil).Run(context.Background())
	if !errors.Is(err, backtest.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Errorf("output dir should not exist after aborted run")
	}
}

func TestRun_RecordsToStore(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)

	s, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	defer s.Close()
	rec, err := store.NewRecorder(s, nil)
	if err != nil {
		t.Fatalf("NewRecorder returned error: %v", err)
	}

	cfg := testConfig(dataDir, filepath.Join(t.TempDir(), "out"))
	cfg.Output.Format = "parquet"
	outcome, err := New(cfg, nil, rec).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.RunID == 0 {
		t.Fatal("expected run id")
	}
	if filepath.Ext(outcome.Outputs[0]) != ".parquet" || filepath.Ext(outcome.Outputs[4]) != ".csv" {
		t.Errorf("unexpected outputs %v", outcome.Outputs)
	}

	avgs, err := rec.Averages(context.Background(), outcome.RunID)
	if err != nil {
		t.Fatalf("Averages returned error: %v", err)
	}
	if len(avgs) != 3 {
		t.Fatalf("expected 3 strategies recorded, got %d", len(avgs))
	}
	for _, a := range avgs {
		if a.Windows != cfg.Run.WindowCount {
			t.Errorf("%s recorded %d windows, want %d", a.Strategy, a.Windows, cfg.Run.WindowCount)
		}
	}
}

func TestRun_PublishFailureDiscardsRecord(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)

	// 输出目录位置被普通文件占用，发布必然失败
	blocked := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	s, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	defer s.Close()
	rec, err := store.NewRecorder(s, nil)
	if err != nil {
		t.Fatalf("NewRecorder returned error: %v", err)
	}

	if _, err := New(testConfig(dataDir, blocked), nil, rec).Run(context.Background()); err == nil {
		t.Fatal("expected publish error")
	}

	var runs int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM backtest_runs`).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 0 {
		t.Errorf("expected no recorded runs after failed publish, got %d", runs)
	}
}

func TestCheckConsistency_RejectsNonFinite(t *testing.T) {
	p := pipeline{logger: zap.NewNop()}
	nan := math.NaN()

	if err := p.checkConsistency([][]float64{{0, 0.1}}, [][]float64{{0, 0.1}}); err != nil {
		t.Fatalf("matching curves rejected: %v", err)
	}
	if err := p.checkConsistency([][]float64{{nan, nan}}, [][]float64{{0, nan}}); err == nil {
		t.Error("NaN curves should fail the consistency check")
	}
	if err := p.checkConsistency([][]float64{{0, nan}}, [][]float64{{0, 0.1}}); err == nil {
		t.Error("one-sided NaN should fail the consistency check")
	}
}

func TestRun_SkipsNonFiniteRows(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)

	path := filepath.Join(dataDir, "AAA.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = "2020-01-02,1,NaN,1,1,1,1"
	lines[2] = "2020-01-03,1,Inf,1,1,1,1"
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	outDir := filepath.Join(t.TempDir(), "out")
	outcome, err := New(testConfig(dataDir, outDir), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.AlignedRows != 31 {
		t.Errorf("aligned rows = %d, want 31", outcome.AlignedRows)
	}
	for _, path := range outcome.Outputs {
		body, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if text := string(body); strings.Contains(text, "NaN") || strings.Contains(text, "Inf") {
			t.Errorf("%s contains non-finite values", filepath.Base(path))
		}
	}
}
