// Package shader compiles WGSL programs for meshbatch renderers and
// reflects their vertex inputs, so attributes can be bound by name.
package shader

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/meshbatch"
)

var (
	// ErrNoVertexEntry is returned for sources without a @vertex entry point.
	ErrNoVertexEntry = errors.New("shader: no vertex entry point")

	// ErrDuplicateLocation is returned when two vertex inputs share a location.
	ErrDuplicateLocation = errors.New("shader: duplicate input location")
)

// Input is one @location input of the vertex entry point.
type Input struct {
	Name       string
	Location   uint32
	Components int
	Element    meshbatch.ElementType
}

// Reflection describes the entry points and vertex inputs of a WGSL source.
type Reflection struct {
	VertexEntry   string
	FragmentEntry string

	// Inputs are sorted by location.
	Inputs []Input
}

// Reflect parses and lowers source and collects its vertex inputs. Inputs
// declared as struct members are reported under the member name.
func Reflect(source string) (*Reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}

	r := &Reflection{}
	var vertex *ir.EntryPoint
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		switch ep.Stage {
		case ir.StageVertex:
			if vertex == nil {
				vertex = ep
				r.VertexEntry = ep.Name
			}
		case ir.StageFragment:
			if r.FragmentEntry == "" {
				r.FragmentEntry = ep.Name
			}
		}
	}
	if vertex == nil {
		return nil, ErrNoVertexEntry
	}

	seen := make(map[uint32]string)
	add := func(name string, loc uint32, h ir.TypeHandle) error {
		if prev, ok := seen[loc]; ok {
			return fmt.Errorf("%w: %q and %q at %d", ErrDuplicateLocation, prev, name, loc)
		}
		elem, n, err := inputFormat(module, h)
		if err != nil {
			return fmt.Errorf("shader: input %q: %w", name, err)
		}
		seen[loc] = name
		r.Inputs = append(r.Inputs, Input{Name: name, Location: loc, Components: n, Element: elem})
		return nil
	}

	for _, arg := range vertex.Function.Arguments {
		if arg.Binding != nil {
			if loc, ok := location(arg.Binding); ok {
				if err := add(arg.Name, loc, arg.Type); err != nil {
					return nil, err
				}
			}
			continue
		}
		if int(arg.Type) >= len(module.Types) {
			continue
		}
		st, ok := module.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		for _, m := range st.Members {
			if loc, ok := location(m.Binding); ok {
				if err := add(m.Name, loc, m.Type); err != nil {
					return nil, err
				}
			}
		}
	}

	slices.SortFunc(r.Inputs, func(a, b Input) int { return cmp.Compare(a.Location, b.Location) })
	return r, nil
}

// Input returns the input with the given name.
func (r *Reflection) Input(name string) (Input, bool) {
	for _, in := range r.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

func location(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch lb := (*b).(type) {
	case ir.LocationBinding:
		return lb.Location, true
	case *ir.LocationBinding:
		return lb.Location, true
	}
	return 0, false
}

func inputFormat(m *ir.Module, h ir.TypeHandle) (meshbatch.ElementType, int, error) {
	if int(h) >= len(m.Types) {
		return meshbatch.ElementInvalid, 0, fmt.Errorf("type handle %d out of range", h)
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		elem, err := element(t)
		return elem, 1, err
	case ir.VectorType:
		elem, err := element(t.Scalar)
		return elem, int(t.Size), err
	}
	return meshbatch.ElementInvalid, 0, fmt.Errorf("%w: %T", meshbatch.ErrUnsupportedFormat, m.Types[h].Inner)
}

// Vertex inputs are 32-bit in WGSL; narrower buffers reach them through
// normalized or widened vertex formats.
func element(s ir.ScalarType) (meshbatch.ElementType, error) {
	if s.Width != 4 {
		return meshbatch.ElementInvalid, fmt.Errorf("%w: %d-byte scalar", meshbatch.ErrUnsupportedFormat, s.Width)
	}
	switch s.Kind {
	case ir.ScalarFloat:
		return meshbatch.Float32, nil
	case ir.ScalarSint:
		return meshbatch.Int32, nil
	case ir.ScalarUint:
		return meshbatch.Uint32, nil
	}
	return meshbatch.ElementInvalid, fmt.Errorf("%w: scalar kind %d", meshbatch.ErrUnsupportedFormat, s.Kind)
}
