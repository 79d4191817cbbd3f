// Package v3d provides a pure Go shader compiler backend for Broadcom
// V3D (VideoCore VI) GPUs.
//
// The package exposes per-stage entry points that run the VPM I/O
// lowering over a backend IR shader:
//
//	size := v3d.LowerVertexIO(shader, &compiler.VSKey{
//	        Base:        compiler.KeyBase{IsLastGeometryStage: true},
//	        UsedOutputs: usedOutputs,
//	})
//
// For finer control, build a compiler.Compile context directly and call
// compiler.LowerIO.
package v3d

import (
	"github.com/gogpu/v3d/compiler"
	"github.com/gogpu/v3d/nir"
)

// LowerVertexIO lowers a vertex shader's I/O to the VPM protocol and
// returns the total VPM output size in slots.
func LowerVertexIO(s *nir.Shader, key *compiler.VSKey) uint32 {
	c := &compiler.Compile{
		Shader: s,
		Key:    &key.Base,
		VSKey:  key,
	}
	compiler.LowerIO(s, c)
	return c.VPMOutputSize
}

// LowerGeometryIO lowers a geometry shader's I/O to the VPM protocol
// and returns the total VPM output size in slots.
func LowerGeometryIO(s *nir.Shader, key *compiler.GSKey) uint32 {
	c := &compiler.Compile{
		Shader: s,
		Key:    &key.Base,
		GSKey:  key,
	}
	compiler.LowerIO(s, c)
	return c.VPMOutputSize
}

// LowerFragmentIO applies the fragment-stage input fixups. Fragment
// shaders do not write the VPM, so there is no output size to publish.
func LowerFragmentIO(s *nir.Shader, key *compiler.FSKey) {
	c := &compiler.Compile{
		Shader: s,
		Key:    &key.Base,
		FSKey:  key,
	}
	compiler.LowerIO(s, c)
}

// LowerComputeIO runs the pass over a compute shader. Compute shaders
// carry no VPM I/O, so only the uniform offset normalization applies.
func LowerComputeIO(s *nir.Shader, base *compiler.KeyBase) {
	c := &compiler.Compile{
		Shader: s,
		Key:    base,
	}
	compiler.LowerIO(s, c)
}
