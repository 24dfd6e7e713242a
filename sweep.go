package hydride

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumin/hydride/lindblad"
	"github.com/fumin/hydride/mat"
)

// Model holds the inputs shared read only by every iteration of a sweep.
type Model struct {
	Basis       Basis
	Params      Params
	Hamiltonian Operator
	Initial     State
	Acceptor    Operator
}

func NewModel(p Params) (Model, error) {
	b := p.Basis()
	h, err := Hamiltonian(b, p)
	if err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	psi0, err := InitialState(b)
	if err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	acceptor, err := AcceptorProjector(b)
	if err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	m := Model{Basis: b, Params: p, Hamiltonian: h, Initial: psi0, Acceptor: acceptor}
	if err := m.Validate(); err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	return m, nil
}

// Validate checks that every input of the model lives on the model's basis.
func (m Model) Validate() error {
	if err := m.Basis.Validate(); err != nil {
		return errors.Wrap(err, "")
	}
	dim := m.Basis.Dim()
	ops := []struct {
		name string
		op   Operator
	}{{"hamiltonian", m.Hamiltonian}, {"acceptor", m.Acceptor}}
	for _, o := range ops {
		if o.op.COO == nil {
			return errors.Errorf("%s missing", o.name)
		}
		if o.op.Basis != m.Basis {
			return errors.Errorf("%s basis %s, model basis %s", o.name, o.op.Basis, m.Basis)
		}
		if o.op.Rows() != dim || o.op.Cols() != dim {
			return errors.Errorf("%s %dx%d, model dim %d", o.name, o.op.Rows(), o.op.Cols(), dim)
		}
	}
	if m.Initial.Basis != m.Basis {
		return errors.Errorf("initial state basis %s, model basis %s", m.Initial.Basis, m.Basis)
	}
	if len(m.Initial.Vec) != dim {
		return errors.Errorf("initial state size %d, model dim %d", len(m.Initial.Vec), dim)
	}
	return nil
}

// CollapseOperator returns sqrt(rate) |donor><donor| ⊗ I.
func CollapseOperator(b Basis, rate float64) (Operator, error) {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Operator{}, errors.Errorf("rate %v", rate)
	}
	l, err := DonorProjector(b)
	if err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	l.Scale(complex(math.Sqrt(rate), 0))
	return l, nil
}

// Rates returns n evenly spaced decoherence rates in [lo, hi].
// Rate i is lo + i*step exactly, so that the printed labels are the shortest forms of those products.
func Rates(lo, hi float64, n int) ([]float64, error) {
	switch {
	case n < 1:
		return nil, errors.Errorf("%d points", n)
	case n == 1:
		return []float64{lo}, nil
	}
	step := (hi - lo) / float64(n-1)
	rates := make([]float64, n)
	for i := range rates {
		rates[i] = lo + float64(i)*step
	}
	rates[n-1] = hi
	return rates, nil
}

// TimeGrid returns n evenly spaced times in [0, tmax].
func TimeGrid(tmax float64, n int) ([]float64, error) {
	if !(tmax > 0) {
		return nil, errors.Errorf("tmax %v", tmax)
	}
	if n < 2 {
		return nil, errors.Errorf("%d time points", n)
	}
	return floats.Span(make([]float64, n), 0, tmax), nil
}

// Trajectory is the outcome of one decoherence rate.
type Trajectory struct {
	Rate  float64
	Times []float64
	// Population is the acceptor population at each time.
	Population []float64
	// Trace is the trace of the density matrix at each time.
	Trace []float64
	// Sites are the site populations at the last time.
	Sites []float64
	// Final is the row major density matrix at the last time.
	Final []complex128
}

func (tr Trajectory) FinalPopulation() float64 {
	return tr.Population[len(tr.Population)-1]
}

// Summary returns the console line reporting the final acceptor population.
func (tr Trajectory) Summary() string {
	return fmt.Sprintf("Final population at NAD+ for v = %s: %.3f", FormatRate(tr.Rate), tr.FinalPopulation())
}

// Label returns the legend label of the trajectory.
func (tr Trajectory) Label() string {
	return fmt.Sprintf("v = %s", FormatRate(tr.Rate))
}

// FormatRate formats v in its shortest round trip form, keeping a decimal point for integral values.
func FormatRate(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Solve integrates the master equation of m at the given decoherence rate.
func Solve(m Model, rate float64, times []float64, options ...lindblad.Options) (Trajectory, error) {
	l, err := CollapseOperator(m.Basis, rate)
	if err != nil {
		return Trajectory{}, errors.Wrap(err, "")
	}
	rho0 := lindblad.Pure(m.Initial.Vec)
	res, err := lindblad.Solve(m.Hamiltonian.COO, rho0, times, []*mat.COO{l.COO}, []*mat.COO{m.Acceptor.COO}, options...)
	if err != nil {
		return Trajectory{}, errors.Wrap(err, "")
	}
	sites, err := SitePopulations(m.Basis, res.Final)
	if err != nil {
		return Trajectory{}, errors.Wrap(err, "")
	}

	tr := Trajectory{
		Rate:       rate,
		Times:      times,
		Population: res.Expect[0],
		Trace:      res.Trace,
		Sites:      sites,
		Final:      res.Final,
	}
	return tr, nil
}

// Sweep solves m for each rate in order, handing each trajectory to fn before starting the next rate.
// The first error stops the sweep; trajectories of later rates are neither computed nor handed to fn.
func Sweep(m Model, rates, times []float64, fn func(Trajectory) error, options ...lindblad.Options) ([]Trajectory, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	trajectories := make([]Trajectory, 0, len(rates))
	for _, rate := range rates {
		tr, err := Solve(m, rate, times, options...)
		if err != nil {
			return trajectories, errors.Wrap(err, fmt.Sprintf("rate %v", rate))
		}
		if fn != nil {
			if err := fn(tr); err != nil {
				return trajectories, errors.Wrap(err, fmt.Sprintf("rate %v", rate))
			}
		}
		trajectories = append(trajectories, tr)
	}
	return trajectories, nil
}
