package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestWriteRead(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rates []float64
		times []float64
		pops  [][]float64
	}{
		{
			rates: []float64{0.02, 0, 0.01},
			times: []float64{0, 0.5, 1},
			pops: [][]float64{
				{0, 0.1, 0.3},
				{0, 0.2, 0.4},
				{0, 0.15, 0.35},
			},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.rates), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			s, err := Open(filepath.Join(dir, "results.db"))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer s.Close()
			for i, r := range test.rates {
				if err := s.Write(r, test.times, test.pops[i]); err != nil {
					t.Fatalf("%+v", err)
				}
			}

			rates, err := s.Rates()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			sorted := slices.Sorted(slices.Values(test.rates))
			if !slices.Equal(rates, sorted) {
				t.Fatalf("%v, expected %v", rates, sorted)
			}
			for i, r := range test.rates {
				times, pops, err := s.Trajectory(r)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				if !slices.Equal(times, test.times) {
					t.Fatalf("%v, expected %v", times, test.times)
				}
				if !slices.Equal(pops, test.pops[i]) {
					t.Fatalf("%v, expected %v", pops, test.pops[i])
				}
				final, err := s.Final(r)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				if final != test.pops[i][len(test.pops[i])-1] {
					t.Fatalf("%f, expected %f", final, test.pops[i][len(test.pops[i])-1])
				}
			}
		})
	}
}

func TestWriteInvalid(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	s, err := Open(filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer s.Close()
	if err := s.Write(0, []float64{0, 1}, []float64{0}); err == nil {
		t.Fatalf("expected error")
	}
	if err := s.Write(0, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, err := s.Trajectory(0); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := s.Final(0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenResets(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	dbPath := filepath.Join(dir, "results.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := s.Write(0.01, []float64{0, 1}, []float64{0, 0.5}); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("%+v", err)
	}

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer s.Close()
	rates, err := s.Rates()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(rates) != 0 {
		t.Fatalf("%v", rates)
	}
}
