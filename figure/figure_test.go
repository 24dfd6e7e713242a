package figure

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSave(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	f := New("Title", "Time", "Population")
	xs := []float64{0, 1, 2, 3}
	if err := f.AddLine("v = 0.0", xs, []float64{0, 0.1, 0.4, 0.2}); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := f.AddLine("v = 0.01", xs, []float64{0, 0.05, 0.2, 0.3}); err != nil {
		t.Fatalf("%+v", err)
	}
	if f.Lines() != 2 {
		t.Fatalf("%d", f.Lines())
	}
	if err := f.AddLine("bad", xs, []float64{0}); err == nil {
		t.Fatalf("expected error")
	}

	path := filepath.Join(dir, "population.png")
	if err := f.Save(path); err != nil {
		t.Fatalf("%+v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("empty image")
	}
}
