package system

import (
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim"
	"github.com/fumin/pulsesim/cmat"
)

// Builder assembles a composite system.
type Builder struct {
	names        []string
	subsystems   []Subsystem
	interactions []*mat.CDense
	controlHams  []pulsesim.ControlHam
	dissipators  []*mat.CDense
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddSubSystem appends s as the least significant factor of the composite space.
// Subsystems must be added before anything that refers to the full space.
func (b *Builder) AddSubSystem(name string, s Subsystem) error {
	if slices.Contains(b.names, name) {
		return errors.Errorf("duplicate subsystem %s", name)
	}
	if s.Dim() <= 0 {
		return errors.Errorf("subsystem %s of dimension %d", name, s.Dim())
	}
	if len(b.interactions)+len(b.controlHams)+len(b.dissipators) > 0 {
		return errors.Errorf("subsystem %s added after full space operators", name)
	}
	b.names = append(b.names, name)
	b.subsystems = append(b.subsystems, s)
	return nil
}

func (b *Builder) Dims() []int {
	dims := make([]int, 0, len(b.subsystems))
	for _, s := range b.subsystems {
		dims = append(dims, s.Dim())
	}
	return dims
}

// Dim returns the dimension of the full space.
func (b *Builder) Dim() int {
	d := 1
	for _, s := range b.subsystems {
		d *= s.Dim()
	}
	return d
}

func (b *Builder) index(name string) (int, error) {
	i := slices.Index(b.names, name)
	if i < 0 {
		return -1, errors.Errorf("unknown subsystem %s", name)
	}
	return i, nil
}

// ExpandOperator embeds op acting on the named subsystem into the full space.
func (b *Builder) ExpandOperator(name string, op *mat.CDense) (*mat.CDense, error) {
	i, err := b.index(name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	m, err := ExpandOperator(op, []int{i}, b.Dims())
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return m, nil
}

// AddInteraction couples two named subsystems.
func (b *Builder) AddInteraction(name1, name2 string, typ InteractionType, strength float64) error {
	i1, err := b.index(name1)
	if err != nil {
		return errors.Wrap(err, "")
	}
	i2, err := b.index(name2)
	if err != nil {
		return errors.Wrap(err, "")
	}
	op, err := Interaction(b.subsystems[i1], b.subsystems[i2], typ, strength)
	if err != nil {
		return errors.Wrap(err, "")
	}
	m, err := ExpandOperator(op, []int{i1, i2}, b.Dims())
	if err != nil {
		return errors.Wrap(err, "")
	}
	b.interactions = append(b.interactions, m)
	return nil
}

// AddControlHam appends a control channel acting on the full space. A nil quadrature is zero.
func (b *Builder) AddControlHam(inphase, quadrature *mat.CDense) error {
	if err := b.checkFull(inphase); err != nil {
		return errors.Wrap(err, "inphase")
	}
	if quadrature != nil {
		if err := b.checkFull(quadrature); err != nil {
			return errors.Wrap(err, "quadrature")
		}
	}
	b.controlHams = append(b.controlHams, pulsesim.ControlHam{Inphase: inphase, Quadrature: quadrature})
	return nil
}

// AddDissipator appends a dissipator acting on the full space.
func (b *Builder) AddDissipator(d *mat.CDense) error {
	if err := b.checkFull(d); err != nil {
		return errors.Wrap(err, "")
	}
	b.dissipators = append(b.dissipators, d)
	return nil
}

func (b *Builder) checkFull(m *mat.CDense) error {
	d := b.Dim()
	if r, c := m.Dims(); r != d || c != d {
		return errors.Errorf("%dx%d, expected %dx%d", r, c, d, d)
	}
	return nil
}

// FullHam returns the sum of the natural Hamiltonians of the subsystems and the interactions.
func (b *Builder) FullHam() (*mat.CDense, error) {
	if len(b.subsystems) == 0 {
		return nil, errors.Errorf("no subsystems")
	}
	d := b.Dim()
	h := cmat.Zeros(d, d)
	for i, s := range b.subsystems {
		m, err := b.ExpandOperator(b.names[i], s.Hnat())
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		cmat.AddScaled(h, 1, m)
	}
	for _, m := range b.interactions {
		cmat.AddScaled(h, 1, m)
	}
	return h, nil
}

func (b *Builder) Build() (*pulsesim.SystemParams, error) {
	h, err := b.FullHam()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	sys := &pulsesim.SystemParams{
		Dim:            b.Dim(),
		NumControlHams: len(b.controlHams),
		ControlHams:    slices.Clone(b.controlHams),
		Dissipators:    slices.Clone(b.dissipators),
		Hnat:           h,
	}
	return sys, nil
}
