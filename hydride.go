// Package hydride models vibrationally assisted hydride tunneling in alcohol dehydrogenase
// as a chain of sites coupled to one promoting vibration, and sweeps the decoherence rate of the donor site.
//
// The joint Hilbert space is site ⊗ vibration, with the site as the slow index.
package hydride

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/hydride/mat"
)

// Params are the model constants.
type Params struct {
	// NumSites is the number of sites in the chain, donor first and acceptor last.
	NumSites int
	// NumLevels is the truncation of the vibrational mode.
	NumLevels int

	// EnergySpan is the energy of the acceptor site. Site energies are evenly spaced from zero at the donor.
	EnergySpan float64
	// TunnelCoupling couples nearest neighbour sites.
	TunnelCoupling float64
	// VibrationFrequency is the frequency of the promoting vibration.
	VibrationFrequency float64
	// CouplingStrength couples the donor occupation to the vibrational displacement.
	CouplingStrength float64
}

func DefaultParams() Params {
	return Params{
		NumSites:           7,
		NumLevels:          8,
		EnergySpan:         0.06,
		TunnelCoupling:     0.2,
		VibrationFrequency: 0.03,
		CouplingStrength:   0.1,
	}
}

func (p Params) Basis() Basis {
	return Basis{Sites: p.NumSites, Levels: p.NumLevels}
}

// Basis describes the joint site ⊗ vibration space.
// Every operator and state is tagged with the Basis it was built for, so that operators built for different spaces are never combined.
type Basis struct {
	Sites  int
	Levels int
}

func (b Basis) Validate() error {
	if b.Sites < 2 {
		return errors.Errorf("need a donor and an acceptor, got %d sites", b.Sites)
	}
	if b.Levels < 1 {
		return errors.Errorf("%d vibrational levels", b.Levels)
	}
	return nil
}

func (b Basis) Dim() int { return b.Sites * b.Levels }

// Dims returns the tensor structure of an operator on the joint space, in the form [[sites, levels], [sites, levels]].
func (b Basis) Dims() [2][2]int {
	return [2][2]int{{b.Sites, b.Levels}, {b.Sites, b.Levels}}
}

// Index returns the joint index of a site and a vibrational level.
func (b Basis) Index(site, level int) int {
	return site*b.Levels + level
}

func (b Basis) Donor() int    { return 0 }
func (b Basis) Acceptor() int { return b.Sites - 1 }

func (b Basis) String() string {
	return fmt.Sprintf("%dx%d", b.Sites, b.Levels)
}

// Operator is an operator on the joint space of Basis.
type Operator struct {
	Basis Basis
	*mat.COO
}

// State is a ket on the joint space of Basis.
type State struct {
	Basis Basis
	Vec   []complex128
}

// Lift returns siteOp ⊗ vibOp on the joint space of b.
func Lift(b Basis, siteOp, vibOp *mat.COO) (Operator, error) {
	if siteOp.Rows() != b.Sites || siteOp.Cols() != b.Sites {
		return Operator{}, errors.Errorf("site operator %dx%d, basis %s", siteOp.Rows(), siteOp.Cols(), b)
	}
	if vibOp.Rows() != b.Levels || vibOp.Cols() != b.Levels {
		return Operator{}, errors.Errorf("vibration operator %dx%d, basis %s", vibOp.Rows(), vibOp.Cols(), b)
	}
	m := siteOp.Clone()
	m.Kron(vibOp)
	return Operator{Basis: b, COO: m}, nil
}

// Add sets o = o + c*x.
func (o Operator) Add(c complex128, x Operator) error {
	if o.Basis != x.Basis {
		return errors.Errorf("basis %s, other %s", o.Basis, x.Basis)
	}
	o.COO.Add(c, x.COO)
	return nil
}

// SiteHamiltonian returns the tight binding chain with evenly spaced site energies and nearest neighbour tunneling.
func SiteHamiltonian(p Params) *mat.COO {
	n := p.NumSites
	h := mat.COOZeros(n, n)
	for i := range n {
		var e float64
		if n > 1 {
			e = p.EnergySpan * float64(i) / float64(n-1)
		}
		h.Add(complex(e, 0), basisProjector(n, i))
		if i+1 < n {
			h.Add(complex(p.TunnelCoupling, 0), basisOuter(n, i, i+1))
			h.Add(complex(p.TunnelCoupling, 0), basisOuter(n, i+1, i))
		}
	}
	return h
}

// Destroy returns the truncated lowering operator a with a|n> = sqrt(n)|n-1>.
func Destroy(levels int) *mat.COO {
	a := mat.COOZeros(levels, levels)
	for n := 1; n < levels; n++ {
		a.Add(complex(math.Sqrt(float64(n)), 0), basisOuter(levels, n-1, n))
	}
	return a
}

// VibrationHamiltonian returns ω a†a.
func VibrationHamiltonian(p Params) *mat.COO {
	a := Destroy(p.NumLevels)
	h := a.H().Product(a)
	h.Scale(complex(p.VibrationFrequency, 0))
	return h
}

// Displacement returns a + a†.
func Displacement(levels int) *mat.COO {
	a := Destroy(levels)
	x := a.Clone()
	x.Add(1, a.H())
	return x
}

// Coupling returns g |donor><donor| ⊗ (a + a†).
func Coupling(b Basis, p Params) (Operator, error) {
	c, err := Lift(b, basisProjector(b.Sites, b.Donor()), Displacement(b.Levels))
	if err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	c.Scale(complex(p.CouplingStrength, 0))
	return c, nil
}

// Hamiltonian returns H_site ⊗ I + I ⊗ H_vib + g |donor><donor| ⊗ (a + a†).
func Hamiltonian(b Basis, p Params) (Operator, error) {
	if err := b.Validate(); err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	if p.Basis() != b {
		return Operator{}, errors.Errorf("params basis %s, basis %s", p.Basis(), b)
	}

	h, err := Lift(b, SiteHamiltonian(p), mat.COOIdentity(b.Levels))
	if err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	vib, err := Lift(b, mat.COOIdentity(b.Sites), VibrationHamiltonian(p))
	if err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	if err := h.Add(1, vib); err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	coupling, err := Coupling(b, p)
	if err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	if err := h.Add(1, coupling); err != nil {
		return Operator{}, errors.Wrap(err, "")
	}
	return h, nil
}

// SiteProjector returns |site><site| ⊗ I.
func SiteProjector(b Basis, site int) (Operator, error) {
	if site < 0 || site >= b.Sites {
		return Operator{}, errors.Errorf("site %d, basis %s", site, b)
	}
	return Lift(b, basisProjector(b.Sites, site), mat.COOIdentity(b.Levels))
}

func DonorProjector(b Basis) (Operator, error) {
	return SiteProjector(b, b.Donor())
}

func AcceptorProjector(b Basis) (Operator, error) {
	return SiteProjector(b, b.Acceptor())
}

// ProductState returns |site> ⊗ |level>.
func ProductState(b Basis, site, level int) (State, error) {
	if site < 0 || site >= b.Sites || level < 0 || level >= b.Levels {
		return State{}, errors.Errorf("site %d level %d, basis %s", site, level, b)
	}
	vec := make([]complex128, b.Dim())
	vec[b.Index(site, level)] = 1
	return State{Basis: b, Vec: vec}, nil
}

// InitialState returns the hydride on the donor with the vibration in its ground state.
func InitialState(b Basis) (State, error) {
	return ProductState(b, b.Donor(), 0)
}

func basisProjector(n, i int) *mat.COO {
	return basisOuter(n, i, i)
}

func basisOuter(n, i, j int) *mat.COO {
	return mat.Outer(unit(n, i), unit(n, j))
}

func unit(n, i int) []complex128 {
	v := make([]complex128, n)
	v[i] = 1
	return v
}
