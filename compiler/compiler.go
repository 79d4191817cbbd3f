package compiler

import "github.com/gogpu/v3d/nir"

// Environment distinguishes the API environment a shader is compiled
// for. It changes a handful of lowering decisions, such as whether
// uniform offsets already arrive in bytes.
type Environment uint8

const (
	EnvironmentOpenGL Environment = iota
	EnvironmentVulkan
)

// Semantic varying locations, following the gl_varying_slot numbering
// the front ends produce.
const (
	VaryingPos   uint32 = 0
	VaryingTex0  uint32 = 4
	VaryingTex7  uint32 = 11
	VaryingPsiz  uint32 = 12
	VaryingLayer uint32 = 22
	VaryingPntc  uint32 = 25
	VaryingVar0  uint32 = 31
)

// MaxAnyStageInputs is the hardware bound on the number of inputs any
// stage can read, and therefore on the number of varying slots a stage
// can produce.
const MaxAnyStageInputs = 64

// VaryingSlot packs a semantic varying location and a component index
// into one byte, matching the layout used in the shader keys.
type VaryingSlot uint8

// MakeVaryingSlot packs a location and component into a VaryingSlot.
func MakeVaryingSlot(location uint32, component uint8) VaryingSlot {
	return VaryingSlot(uint8(location)<<2 | component&3)
}

// Location returns the semantic varying location.
func (v VaryingSlot) Location() uint32 {
	return uint32(v >> 2)
}

// Component returns the component index within the location.
func (v VaryingSlot) Component() uint8 {
	return uint8(v & 3)
}

// varyingIsPointCoord reports whether a fragment input location is
// read as a point sprite coordinate: either gl_PointCoord itself, or a
// texture coordinate with point-sprite replacement enabled.
func varyingIsPointCoord(location uint32, spriteMask uint32) bool {
	if location == VaryingPntc {
		return true
	}
	if location >= VaryingTex0 && location <= VaryingTex7 {
		return spriteMask&(1<<(location-VaryingTex0)) != 0
	}
	return false
}

// KeyBase holds the key fields shared by every stage.
type KeyBase struct {
	Environment Environment

	// IsLastGeometryStage is set when this stage is the last geometry
	// producing stage before rasterization and therefore must emit the
	// fixed-function outputs.
	IsLastGeometryStage bool
}

// VSKey configures a vertex shader compilation.
type VSKey struct {
	Base KeyBase

	// IsCoord selects the coordinate shader variant, which computes
	// only position-related outputs for binning.
	IsCoord bool

	// PerVertexPointSize is set when point size is written per vertex.
	PerVertexPointSize bool

	// UsedOutputs lists the (location, component) pairs the consuming
	// stage reads. The order of this list defines the varying slot
	// indices.
	UsedOutputs []VaryingSlot

	// VASwapRBMask has a bit set for each attribute location whose R
	// and B channels must be swapped in the shader.
	VASwapRBMask uint32
}

// GSKey configures a geometry shader compilation.
type GSKey struct {
	Base KeyBase

	IsCoord            bool
	PerVertexPointSize bool
	UsedOutputs        []VaryingSlot
}

// FSKey configures a fragment shader compilation.
type FSKey struct {
	Base KeyBase

	// IsPoints is set when the rendered primitives are points.
	IsPoints bool

	// PointCoordUpperLeft flips the point coordinate's Y origin.
	PointCoordUpperLeft bool

	// PointSpriteMask has a bit set for each texture coordinate that
	// is replaced by the point sprite coordinate.
	PointSpriteMask uint32
}

// Compile tracks the state of a single shader compilation. A fresh
// Compile is built per shader and discarded when compilation finishes.
type Compile struct {
	Shader *nir.Shader

	// Key points at the base of whichever stage key is active.
	Key *KeyBase

	VSKey *VSKey
	GSKey *GSKey
	FSKey *FSKey

	// VPMOutputSize is the total number of VPM slots the shader
	// writes, published by LowerIO for the downstream stages.
	VPMOutputSize uint32
}
