// Package lindblad integrates the Lindblad master equation
//
//	dρ/dt = -i[H, ρ] + Σ_k (L_k ρ L_k† - {L_k† L_k, ρ}/2)
//
// for density matrices stored as row major dense slices, and propagates pure states under a closed system Hamiltonian.
//
// References:
//   - H.-P. Breuer and F. Petruccione, The Theory of Open Quantum Systems, Section 3.2
//   - E. Hairer, S. P. Norsett and G. Wanner, Solving Ordinary Differential Equations I, Section II.4
package lindblad

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/pkg/errors"

	"github.com/fumin/hydride/mat"
)

// Options are options for the master equation solver.
type Options struct {
	atol      float64
	rtol      float64
	maxSteps  int
	firstStep float64
	progress  time.Duration
}

// NewOptions returns the default solver options.
func NewOptions() Options {
	opt := Options{}
	opt.atol = 1e-8
	opt.rtol = 1e-6
	opt.maxSteps = 10000
	return opt
}

func (opt Options) validate() error {
	switch {
	case !(opt.atol > 0):
		return errors.Errorf("atol %g, start from NewOptions", opt.atol)
	case !(opt.rtol >= 0):
		return errors.Errorf("rtol %g", opt.rtol)
	case opt.maxSteps < 1:
		return errors.Errorf("max steps %d", opt.maxSteps)
	case !(opt.firstStep >= 0):
		return errors.Errorf("first step %g", opt.firstStep)
	}
	return nil
}

// Atol sets the absolute tolerance. It must be positive.
func (opt Options) Atol(tol float64) Options {
	opt.atol = tol
	return opt
}

// Rtol sets the relative tolerance. It must not be negative.
func (opt Options) Rtol(tol float64) Options {
	opt.rtol = tol
	return opt
}

// MaxSteps sets the maximum number of attempted steps between two consecutive output times.
func (opt Options) MaxSteps(n int) Options {
	opt.maxSteps = n
	return opt
}

// FirstStep sets the initial step size.
// A zero value lets the solver pick one from the initial derivative.
func (opt Options) FirstStep(h float64) Options {
	opt.firstStep = h
	return opt
}

// Progress logs the integration progress at most once per d.
// A zero d disables logging.
func (opt Options) Progress(d time.Duration) Options {
	opt.progress = d
	return opt
}

// Result holds the outcome of a solve.
type Result struct {
	Times []float64
	// Expect holds the real part of Tr(O ρ(t)) for each observable O, aligned with Times.
	Expect [][]float64
	// Trace holds Tr ρ(t), aligned with Times.
	Trace []float64
	// Final is the row major density matrix at the last time.
	Final []complex128
}

// Solve integrates the master equation with Hamiltonian h and collapse operators cops from rho0 at times[0],
// and evaluates the observables eops at every element of times.
// options[0], when present, replaces the defaults entirely and should be built from NewOptions.
func Solve(h *mat.COO, rho0 []complex128, times []float64, cops, eops []*mat.COO, options ...Options) (Result, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	if err := opt.validate(); err != nil {
		return Result{}, errors.Wrap(err, "")
	}
	n := h.Rows()
	if err := check(h, n*n, len(rho0), times, cops, eops); err != nil {
		return Result{}, errors.Wrap(err, "")
	}
	if !mat.IsFinite(rho0) {
		return Result{}, errors.Errorf("initial state not finite")
	}

	lv := newLiouvillian(h, cops)
	ig := newIntegrator(lv, opt)
	res := Result{Times: times, Expect: make([][]float64, len(eops)), Trace: make([]float64, 0, len(times))}
	for i := range eops {
		res.Expect[i] = make([]float64, 0, len(times))
	}

	rho := make([]complex128, len(rho0))
	copy(rho, rho0)
	record := func(rho []complex128) {
		for i, e := range eops {
			res.Expect[i] = append(res.Expect[i], real(e.TraceProduct(rho)))
		}
		res.Trace = append(res.Trace, real(trace(rho, n)))
	}

	record(rho)
	t := times[0]
	if err := ig.start(t, rho); err != nil {
		return Result{}, errors.Wrap(err, "")
	}
	prog := &progress{every: opt.progress}
	for _, tNext := range times[1:] {
		if err := ig.advance(rho, t, tNext); err != nil {
			return Result{}, errors.Wrap(err, fmt.Sprintf("t %g", t))
		}
		t = tNext
		record(rho)

		prog.log(t, times[len(times)-1], ig)
	}

	res.Final = rho
	return res, nil
}

func check(h *mat.COO, size, rhoSize int, times []float64, cops, eops []*mat.COO) error {
	n := h.Rows()
	if h.Cols() != n {
		return errors.Errorf("hamiltonian not square %dx%d", h.Rows(), h.Cols())
	}
	if rhoSize != size {
		return errors.Errorf("state size %d, expected %d", rhoSize, size)
	}
	if len(times) == 0 {
		return errors.Errorf("no times")
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return errors.Errorf("times not increasing at %d: %g %g", i, times[i-1], times[i])
		}
	}
	for i, c := range cops {
		if c.Rows() != n || c.Cols() != n {
			return errors.Errorf("collapse operator %d is %dx%d, expected %dx%d", i, c.Rows(), c.Cols(), n, n)
		}
	}
	for i, e := range eops {
		if e.Rows() != n || e.Cols() != n {
			return errors.Errorf("observable %d is %dx%d, expected %dx%d", i, e.Rows(), e.Cols(), n, n)
		}
	}
	return nil
}

// liouvillian evaluates the right hand side of the master equation in the form
//
//	dρ/dt = -i(H_eff ρ - ρ H_eff†) + Σ_k L_k ρ L_k†,  H_eff = H - i/2 Σ_k L_k† L_k.
type liouvillian struct {
	n    int
	heff *mat.COO
	cops []*mat.COO

	// buf holds L_k ρ.
	buf []complex128
}

func newLiouvillian(h *mat.COO, cops []*mat.COO) *liouvillian {
	lv := &liouvillian{n: h.Rows(), heff: h.Clone(), cops: cops}
	for _, c := range cops {
		lv.heff.Add(-0.5i, c.H().Product(c))
	}
	lv.buf = make([]complex128, lv.n*lv.n)
	return lv
}

func (lv *liouvillian) apply(dst, rho []complex128) {
	clear(dst)
	lv.heff.MulDense(dst, rho, -1i)
	lv.heff.DenseMulH(dst, rho, 1i)
	for _, c := range lv.cops {
		clear(lv.buf)
		c.MulDense(lv.buf, rho, 1)
		c.DenseMulH(dst, lv.buf, 1)
	}
}

func trace(rho []complex128, n int) complex128 {
	var tr complex128
	for i := range n {
		tr += rho[i*n+i]
	}
	return tr
}

// Pure returns the density matrix |psi><psi| in row major order.
func Pure(psi []complex128) []complex128 {
	n := len(psi)
	rho := make([]complex128, n*n)
	for i, a := range psi {
		for j, b := range psi {
			rho[i*n+j] = a * cmplx.Conj(b)
		}
	}
	return rho
}

// IsPhysical reports whether rho is Hermitian with unit trace and a diagonal within [0, 1], all within tol.
func IsPhysical(rho []complex128, tol float64) bool {
	n := int(math.Round(math.Sqrt(float64(len(rho)))))
	if n*n != len(rho) {
		return false
	}
	if cmplx.Abs(trace(rho, n)-1) > tol {
		return false
	}
	for i := range n {
		d := rho[i*n+i]
		if math.Abs(imag(d)) > tol || real(d) < -tol || real(d) > 1+tol {
			return false
		}
		for j := i + 1; j < n; j++ {
			if cmplx.Abs(rho[i*n+j]-cmplx.Conj(rho[j*n+i])) > tol {
				return false
			}
		}
	}
	return true
}
