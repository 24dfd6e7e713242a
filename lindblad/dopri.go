package lindblad

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// Dormand-Prince 5(4) tableau.
// See Table 5.2, Section II.5, Hairer, Norsett and Wanner.
// The nodes are omitted since the master equation has no explicit time dependence.
var (
	dpA = [7][6]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}
	// dpE is the difference between the fifth and the embedded fourth order weights.
	dpE = [7]float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

const (
	safety    = 0.9
	minFactor = 0.2
	maxFactor = 10
	// minStepRatio bounds the step size from below relative to the current time scale.
	minStepRatio = 1e-12
)

// integrator is an adaptive Dormand-Prince integrator with first same as last reuse of the derivative.
type integrator struct {
	lv  *liouvillian
	opt Options

	h        float64
	steps    int
	rejected int

	k    [7][]complex128
	ytmp []complex128
	ynew []complex128
}

func newIntegrator(lv *liouvillian, opt Options) *integrator {
	size := lv.n * lv.n
	ig := &integrator{lv: lv, opt: opt}
	for i := range ig.k {
		ig.k[i] = make([]complex128, size)
	}
	ig.ytmp = make([]complex128, size)
	ig.ynew = make([]complex128, size)
	return ig
}

// start evaluates the derivative at y and picks the initial step size.
func (ig *integrator) start(t float64, y []complex128) error {
	ig.lv.apply(ig.k[0], y)
	if ig.opt.firstStep > 0 {
		ig.h = ig.opt.firstStep
		return nil
	}

	// See Section II.4 Starting step size, Hairer, Norsett and Wanner.
	var d0, d1 float64
	for i, v := range y {
		sc := ig.opt.atol + ig.opt.rtol*cmplx.Abs(v)
		d0 += sq(cmplx.Abs(v) / sc)
		d1 += sq(cmplx.Abs(ig.k[0][i]) / sc)
	}
	d0, d1 = math.Sqrt(d0/float64(len(y))), math.Sqrt(d1/float64(len(y)))
	if math.IsNaN(d1) || math.IsInf(d1, 0) {
		return errors.Errorf("derivative not finite at t %g", t)
	}
	switch {
	case d0 < 1e-5 || d1 < 1e-5:
		ig.h = 1e-6
	default:
		ig.h = 0.01 * d0 / d1
	}
	return nil
}

// advance integrates y in place from t to tEnd.
func (ig *integrator) advance(y []complex128, t, tEnd float64) error {
	for attempts := 0; t < tEnd; attempts++ {
		if attempts >= ig.opt.maxSteps {
			return errors.Errorf("step budget %d exhausted at t %g, h %g", ig.opt.maxSteps, t, ig.h)
		}
		if ig.h < minStepRatio*math.Max(1, math.Abs(t)) {
			return errors.Errorf("step size underflow at t %g, h %g", t, ig.h)
		}

		h := ig.h
		last := false
		if t+h >= tEnd {
			h = tEnd - t
			last = true
		}

		errNorm := ig.step(y, h)
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			return errors.Errorf("state not finite at t %g, h %g", t, h)
		}

		var factor float64 = maxFactor
		if errNorm > 0 {
			factor = math.Min(maxFactor, math.Max(minFactor, safety*math.Pow(errNorm, -0.2)))
		}
		if errNorm > 1 {
			ig.rejected++
			ig.h = h * math.Min(1, factor)
			continue
		}

		ig.steps++
		copy(y, ig.ynew)
		// k[6] is the derivative at the new point, which is the first stage of the next step.
		ig.k[0], ig.k[6] = ig.k[6], ig.k[0]
		switch {
		case last:
			t = tEnd
			// Do not let a step shortened to hit tEnd shrink the next proposal.
			ig.h = math.Max(ig.h, h*factor)
		default:
			t += h
			ig.h = h * factor
		}
	}
	return nil
}

// step computes a trial step of size h from y into ig.ynew, assuming ig.k[0] holds the derivative at y.
// It returns the scaled error norm.
func (ig *integrator) step(y []complex128, h float64) float64 {
	for s := 1; s < 7; s++ {
		copy(ig.ytmp, y)
		for j := range s {
			a := dpA[s][j]
			if a == 0 {
				continue
			}
			c := complex(h*a, 0)
			kj := ig.k[j]
			for i := range ig.ytmp {
				ig.ytmp[i] += c * kj[i]
			}
		}
		ig.lv.apply(ig.k[s], ig.ytmp)
	}
	// The seventh stage is evaluated at the fifth order solution.
	copy(ig.ynew, ig.ytmp)

	var errSum float64
	for i, v := range y {
		var e complex128
		for s, w := range dpE {
			if w == 0 {
				continue
			}
			e += complex(w, 0) * ig.k[s][i]
		}
		e *= complex(h, 0)

		sc := ig.opt.atol + ig.opt.rtol*math.Max(cmplx.Abs(v), cmplx.Abs(ig.ynew[i]))
		errSum += sq(cmplx.Abs(e) / sc)
	}
	return math.Sqrt(errSum / float64(len(y)))
}

func sq(x float64) float64 { return x * x }
