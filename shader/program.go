package shader

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshbatch"
)

//go:embed shaders/textured.wgsl
var texturedSource string

//go:embed shaders/text.wgsl
var textSource string

// TexturedSource returns the WGSL for textured quads: position and uv
// inputs sampling the batch's texture.
func TexturedSource() string { return texturedSource }

// TextSource returns the WGSL for glyph quads: position, uv and color
// inputs with an R8 coverage texture.
func TextSource() string { return textSource }

// Program is a compiled shader module together with the reflection of its
// source. It implements meshbatch.AttributeSource.
type Program struct {
	device hal.Device
	label  string
	module hal.ShaderModule
	refl   *Reflection
}

// Compile reflects source, compiles it to SPIR-V and creates the shader
// module on device.
func Compile(device hal.Device, label, source string) (*Program, error) {
	if device == nil {
		return nil, meshbatch.ErrNilDevice
	}
	refl, err := Reflect(source)
	if err != nil {
		return nil, err
	}
	code, err := compileSPIRV(source)
	if err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create %s module: %w", label, err)
	}
	meshbatch.Logger().Debug("meshbatch: shader compiled",
		"label", label, "inputs", len(refl.Inputs), "words", len(code))
	return &Program{device: device, label: label, module: module, refl: refl}, nil
}

// Textured compiles the built-in textured quad program.
func Textured(device hal.Device) (*Program, error) {
	return Compile(device, "meshbatch_textured", texturedSource)
}

// Text compiles the built-in glyph program.
func Text(device hal.Device) (*Program, error) {
	return Compile(device, "meshbatch_text", textSource)
}

// compileSPIRV compiles WGSL and packs the output into little-endian words.
func compileSPIRV(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("shader: compile: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not a multiple of 4", len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}

// Module returns the shader module, or nil after Destroy.
func (p *Program) Module() hal.ShaderModule { return p.module }

// Label returns the label the program was compiled with.
func (p *Program) Label() string { return p.label }

// Reflection returns the reflected entry points and inputs.
func (p *Program) Reflection() *Reflection { return p.refl }

// NumAttributes returns the number of vertex inputs.
func (p *Program) NumAttributes() int { return len(p.refl.Inputs) }

// AttributeLocation returns the location of the named vertex input.
func (p *Program) AttributeLocation(name string) (uint32, bool) {
	in, ok := p.refl.Input(name)
	return in.Location, ok
}

// Check reports the first attribute whose view does not match the shader
// input it binds to. Unnamed attributes bind by index.
func (p *Program) Check(attrs []meshbatch.Attribute) error {
	for i, a := range attrs {
		var in Input
		var ok bool
		if a.Name != "" {
			in, ok = p.refl.Input(a.Name)
		} else {
			for _, cand := range p.refl.Inputs {
				if cand.Location == uint32(i) {
					in, ok = cand, true
					break
				}
			}
		}
		if !ok {
			return fmt.Errorf("%w: attribute %d (%q)", meshbatch.ErrUnknownAttribute, i, a.Name)
		}
		if a.View == nil {
			return fmt.Errorf("attribute %q: %w", in.Name, meshbatch.ErrInvalidView)
		}
		if a.View.Components() != in.Components {
			return fmt.Errorf("%w: %q has %d components, shader wants %d",
				meshbatch.ErrAttributeCountMismatch, in.Name, a.View.Components(), in.Components)
		}
		if _, err := a.View.ElementType().VertexFormat(in.Components); err != nil {
			return fmt.Errorf("attribute %q: %w", in.Name, err)
		}
	}
	return nil
}

// PipelineConfig returns a pipeline configuration for this program's entry
// points. Unset fields take the renderer's defaults.
func (p *Program) PipelineConfig() meshbatch.PipelineConfig {
	return meshbatch.PipelineConfig{
		Module:        p.module,
		VertexEntry:   p.refl.VertexEntry,
		FragmentEntry: p.refl.FragmentEntry,
	}
}

// Destroy releases the shader module. The renderer's pipeline may outlive it.
func (p *Program) Destroy() {
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
