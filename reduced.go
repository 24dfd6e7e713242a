package hydride

import (
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// SitePopulations returns the diagonal of the reduced site density matrix, obtained by tracing the vibration out of rho.
// rho is a row major density matrix on the joint space of b.
func SitePopulations(b Basis, rho []complex128) ([]float64, error) {
	n := b.Dim()
	if len(rho) != n*n {
		return nil, errors.Errorf("state size %d, basis %s", len(rho), b)
	}

	// joint is of shape {siteRow, levelRow, siteCol, levelCol}.
	joint := tensor.Zeros(b.Sites, b.Levels, b.Sites, b.Levels)
	for ijk := range joint.All() {
		row, col := b.Index(ijk[0], ijk[1]), b.Index(ijk[2], ijk[3])
		joint.SetAt(ijk, complex64(rho[row*n+col]))
	}

	identity := make([][]complex64, b.Levels)
	for i := range identity {
		identity[i] = make([]complex64, b.Levels)
		identity[i][i] = 1
	}
	// reduced is of shape {siteRow, siteCol}.
	reduced := tensor.Product(tensor.Zeros(1), joint, tensor.T2(identity), [][2]int{{1, 0}, {3, 1}})
	if !slices.Equal(reduced.Shape(), []int{b.Sites, b.Sites}) {
		return nil, errors.Errorf("%#v", reduced.Shape())
	}

	pops := make([]float64, b.Sites)
	for i := range pops {
		pops[i] = float64(real(reduced.At(i, i)))
	}
	return pops, nil
}
