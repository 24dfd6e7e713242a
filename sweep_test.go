package hydride

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/hydride/lindblad"
	"github.com/fumin/hydride/mat"
)

func TestSweep(t *testing.T) {
	t.Parallel()
	m, err := NewModel(DefaultParams())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	h := m.Hamiltonian.Clone()
	psi0 := slices.Clone(m.Initial.Vec)
	acceptor := m.Acceptor.Clone()

	times, err := TimeGrid(200, 500)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	rates, err := Rates(0, 0.05, 6)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var seen []float64
	trs, err := Sweep(m, rates, times, func(tr Trajectory) error {
		seen = append(seen, tr.Rate)
		return nil
	})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(seen, rates) {
		t.Fatalf("%v, expected %v", seen, rates)
	}
	if len(trs) != len(rates) {
		t.Fatalf("%d", len(trs))
	}

	// Acceptor populations at t = 0, times[100], times[250], 200, and the maximum.
	// Computed with fixed step RK4 at one eighth of the grid spacing.
	expected := []struct {
		rate   float64
		points [4]float64
		max    float64
	}{
		{rate: 0, points: [4]float64{0, 0.00907730279370685, 0.2789817354932869, 0.01841051247355311}, max: 0.7762267349064746},
		{rate: 0.01, points: [4]float64{0, 0.01099543272055541, 0.26805827770492474, 0.037861354378546604}, max: 0.7695604572763399},
		{rate: 0.02, points: [4]float64{0, 0.012853588799628122, 0.258473092888684, 0.054775110035544486}, max: 0.7630232348871016},
		{rate: 0.03, points: [4]float64{0, 0.014657402603937978, 0.24998086093012684, 0.06936401671169282}, max: 0.7566111912384095},
		{rate: 0.04, points: [4]float64{0, 0.01641192875677603, 0.242391616289431, 0.08188199275401413}, max: 0.7503205992173415},
		{rate: 0.05, points: [4]float64{0, 0.01812170171457571, 0.23555730398491562, 0.09258767965776718}, max: 0.7441478743950826},
	}
	for i, tr := range trs {
		e := expected[i]
		if math.Abs(tr.Rate-e.rate) > 1e-15 {
			t.Fatalf("%d %v, expected %v", i, tr.Rate, e.rate)
		}
		if len(tr.Population) != len(times) || len(tr.Trace) != len(times) {
			t.Fatalf("%d %d %d", i, len(tr.Population), len(tr.Trace))
		}
		for j, p := range tr.Population {
			if p < -1e-6 || p > 1+1e-6 {
				t.Fatalf("%d %d %f", i, j, p)
			}
			if math.Abs(tr.Trace[j]-1) > 1e-6 {
				t.Fatalf("%d %d %f", i, j, tr.Trace[j])
			}
		}
		actual := [4]float64{tr.Population[0], tr.Population[100], tr.Population[250], tr.FinalPopulation()}
		for j := range actual {
			if math.Abs(actual[j]-e.points[j]) > 1e-3 {
				t.Fatalf("%d %v, expected %v", i, actual, e.points)
			}
		}
		if peak := slices.Max(tr.Population); math.Abs(peak-e.max) > 1e-3 {
			t.Fatalf("%d %f, expected %f", i, peak, e.max)
		}

		var total float64
		for _, p := range tr.Sites {
			total += p
		}
		// Site populations are reduced in single precision.
		if math.Abs(total-1) > 1e-5 {
			t.Fatalf("%d %v", i, tr.Sites)
		}
		if math.Abs(tr.Sites[m.Basis.Acceptor()]-tr.FinalPopulation()) > 1e-5 {
			t.Fatalf("%d %v %f", i, tr.Sites, tr.FinalPopulation())
		}
		if !lindblad.IsPhysical(tr.Final, 1e-6) {
			t.Fatalf("%d unphysical final state", i)
		}
	}

	// Decoherence drives more population to the acceptor by the end of the run.
	for i := 1; i < len(trs); i++ {
		if trs[i].FinalPopulation() <= trs[i-1].FinalPopulation() {
			t.Fatalf("%d %f %f", i, trs[i-1].FinalPopulation(), trs[i].FinalPopulation())
		}
	}

	if !m.Hamiltonian.Equal(h) || !m.Acceptor.Equal(acceptor) || !slices.Equal(m.Initial.Vec, psi0) {
		t.Fatalf("sweep modified the model")
	}
}

func TestSolveMatchesClosedSystem(t *testing.T) {
	t.Parallel()
	m, err := NewModel(DefaultParams())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	times, err := TimeGrid(50, 100)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	tr, err := Solve(m, 0, times, lindblad.NewOptions().Atol(1e-10).Rtol(1e-8))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	closed, err := lindblad.Unitary(m.Hamiltonian.COO, m.Initial.Vec, times, []*mat.COO{m.Acceptor.COO})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for i := range times {
		if math.Abs(tr.Population[i]-closed.Expect[0][i]) > 1e-5 {
			t.Fatalf("%d %f %f", i, tr.Population[i], closed.Expect[0][i])
		}
	}
	for i, v := range closed.Final {
		if cmplx.Abs(v-tr.Final[i]) > 1e-5 {
			t.Fatalf("%d %v %v", i, v, tr.Final[i])
		}
	}
}

func TestSweepStops(t *testing.T) {
	t.Parallel()
	m, err := NewModel(DefaultParams())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	times, err := TimeGrid(5, 10)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	tests := []struct {
		name    string
		rates   []float64
		fn      func(Trajectory) error
		options []lindblad.Options
		calls   int
		done    int
		err     []string
	}{
		{name: "invalid rate", rates: []float64{0.01, math.NaN(), 0.02}, calls: 1, done: 1, err: []string{"rate NaN"}},
		// Dephasing this strong makes the master equation too stiff for the explicit solver.
		{name: "stiff rate", rates: []float64{0, 1e200, 0.01}, calls: 1, done: 1, err: []string{"rate 1e+200", "t 0"}},
		{name: "step budget", rates: []float64{0.01, 0.02}, options: []lindblad.Options{lindblad.NewOptions().MaxSteps(1)}, calls: 0, done: 0, err: []string{"rate 0.01", "step budget 1 exhausted"}},
		{name: "callback", rates: []float64{0, 0.01, 0.02}, fn: func(tr Trajectory) error {
			if tr.Rate > 0 {
				return errors.Errorf("rejected %v", tr.Rate)
			}
			return nil
		}, calls: 2, done: 1, err: []string{"rate 0.01", "rejected 0.01"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var calls int
			fn := func(tr Trajectory) error {
				calls++
				if test.fn != nil {
					return test.fn(tr)
				}
				return nil
			}
			trs, err := Sweep(m, test.rates, times, fn, test.options...)
			if err == nil {
				t.Fatalf("expected error")
			}
			for _, e := range test.err {
				if !strings.Contains(err.Error(), e) {
					t.Fatalf("%+v, expected %q", err, e)
				}
			}
			if calls != test.calls {
				t.Fatalf("%d calls, expected %d", calls, test.calls)
			}
			// A trajectory rejected by the callback is not returned.
			if len(trs) != test.done {
				t.Fatalf("%d trajectories, expected %d", len(trs), test.done)
			}
			for i, tr := range trs {
				if tr.Rate != test.rates[i] {
					t.Fatalf("%d %v, expected %v", i, tr.Rate, test.rates[i])
				}
			}
		})
	}
}

func ExampleSweep() {
	m, err := NewModel(DefaultParams())
	if err != nil {
		fmt.Printf("%+v\n", err)
		return
	}
	times, err := TimeGrid(200, 500)
	if err != nil {
		fmt.Printf("%+v\n", err)
		return
	}
	rates, err := Rates(0, 0.05, 6)
	if err != nil {
		fmt.Printf("%+v\n", err)
		return
	}
	report := func(tr Trajectory) error {
		fmt.Println(tr.Summary())
		return nil
	}
	if _, err := Sweep(m, rates, times, report); err != nil {
		fmt.Printf("%+v\n", err)
	}
	// Output:
	// Final population at NAD+ for v = 0.0: 0.018
	// Final population at NAD+ for v = 0.01: 0.038
	// Final population at NAD+ for v = 0.02: 0.055
	// Final population at NAD+ for v = 0.03: 0.069
	// Final population at NAD+ for v = 0.04: 0.082
	// Final population at NAD+ for v = 0.05: 0.093
}
