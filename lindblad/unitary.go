package lindblad

import (
	"math/cmplx"

	"github.com/pkg/errors"

	"github.com/fumin/hydride/mat"
)

// Unitary propagates the pure state psi0 at times[0] under a real symmetric Hamiltonian h,
// using psi(t) = V exp(-iE(t-t0)) V^T psi0 where h = V E V^T.
// The returned Result has the same layout as that of Solve.
func Unitary(h *mat.COO, psi0 []complex128, times []float64, eops []*mat.COO) (Result, error) {
	n := h.Rows()
	if err := check(h, n, len(psi0), times, nil, eops); err != nil {
		return Result{}, errors.Wrap(err, "")
	}
	vvs, err := h.EigenSym()
	if err != nil {
		return Result{}, errors.Wrap(err, "")
	}

	// coef[k] = <v_k|psi0>.
	coef := make([]complex128, len(vvs))
	for k, vv := range vvs {
		for i, v := range vv.Vec {
			coef[k] += cmplx.Conj(v) * psi0[i]
		}
	}

	res := Result{Times: times, Expect: make([][]float64, len(eops)), Trace: make([]float64, 0, len(times))}
	for i := range eops {
		res.Expect[i] = make([]float64, 0, len(times))
	}
	psi := make([]complex128, n)
	opsi := make([]complex128, n)
	for _, t := range times {
		clear(psi)
		dt := t - times[0]
		for k, vv := range vvs {
			c := coef[k] * cmplx.Exp(complex(0, -real(vv.Val)*dt))
			for i, v := range vv.Vec {
				psi[i] += c * v
			}
		}
		if !mat.IsFinite(psi) {
			return Result{}, errors.Errorf("state not finite at t %g", t)
		}

		var norm float64
		for _, a := range psi {
			norm += real(a)*real(a) + imag(a)*imag(a)
		}
		res.Trace = append(res.Trace, norm)
		for i, e := range eops {
			e.MulVec(opsi, psi)
			var ex complex128
			for j, a := range psi {
				ex += cmplx.Conj(a) * opsi[j]
			}
			res.Expect[i] = append(res.Expect[i], real(ex))
		}
	}

	res.Final = Pure(psi)
	return res, nil
}
