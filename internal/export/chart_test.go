package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func series() ([]float64, []float64) {
	xs := make([]float64, 50)
	ys := make([]float64, 50)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = 4.1 - 0.01*float64(i)
	}
	return xs, ys
}

func TestWriteChart(t *testing.T) {
	xs, ys := series()
	dir := t.TempDir()

	for _, name := range []string{"voltage.png", "voltage.svg"} {
		path := filepath.Join(dir, name)
		if err := WriteChart(path, "discharge", "voltage (V)", xs, ys); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestWriteChartTo(t *testing.T) {
	xs, ys := series()

	var buf bytes.Buffer
	if err := WriteChartTo(&buf, "svg", "discharge", "soc", xs, ys); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("expected svg output")
	}
}

func TestWriteChartErrors(t *testing.T) {
	xs, ys := series()
	dir := t.TempDir()

	if err := WriteChart(filepath.Join(dir, "c.txt"), "t", "y", xs, ys); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if err := WriteChart(filepath.Join(dir, "c.png"), "t", "y", nil, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if err := WriteChart(filepath.Join(dir, "c.png"), "t", "y", xs, ys[:10]); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}
