package compiler

import (
	"fmt"

	"github.com/gogpu/v3d/nir"
)

// LowerIO walks the shader and lowers its I/O intrinsics into something
// amenable to the V3D architecture.
//
// Most of the work is turning the vertex stage's output stores from a
// semantic (location, component) addressing scheme into writes at
// offsets within the VPM, and emitting the header read by the fixed
// function hardware between the vertex stage and the rasterizer.
//
// Uniform load offsets are also adjusted to be in bytes, since that is
// what indirect addressing through general memory access needs.

// ioLowering is the per-invocation state of the pass. Slot offsets are
// VPM slot indices, or -1 when the slot is not allocated.
type ioLowering struct {
	c *Compile

	posVPMOffset      int
	vpVPMOffset       int
	zsVPMOffset       int
	rcpWCVPMOffset    int
	psizVPMOffset     int
	varyingsVPMOffset int

	// Geometry shader state.
	gs struct {
		// VPM offset for the current vertex data output.
		outputOffsetVar *nir.LocalVar
		// VPM offset for the current vertex header.
		headerOffsetVar *nir.LocalVar
		// VPM header for the current vertex.
		headerVar *nir.LocalVar

		// Size of the complete VPM output header.
		outputHeaderSize uint32
		// Size of the output data for a single vertex.
		outputVertexDataSize uint32
	}

	varyingsStored [MaxAnyStageInputs]bool

	pos [4]*nir.Instr
}

// vpmStoreOutput emits one physical VPM write of a single scalar. When
// a dynamic offset is present, the base is folded into it at the IR
// level so that constant folding can collapse the add.
func vpmStoreOutput(b *nir.Builder, base int, offset, chann *nir.Instr) {
	if offset != nil {
		offset = b.IAddImm(offset, int32(base))
		base = 0
	} else {
		offset = b.ImmInt(0)
	}

	b.StoreOutput(chann, offset, uint32(base), 0, 0x1, 0)
}

// lowerUniform converts the uniform offset to bytes. If it happens to
// be a constant, constant folding will clean up the shift for us.
func (l *ioLowering) lowerUniform(b *nir.Builder, in *nir.Instr, op *nir.OpLoadUniform) {
	// On Vulkan we are already getting our offsets in bytes.
	if l.c.Key.Environment == EnvironmentVulkan {
		return
	}

	b.BeforeInstr(in)

	op.Base *= 16
	op.Offset = b.IShlImm(op.Offset, 4)
}

// usedOutputs returns the consuming stage's used-outputs table for the
// stage being compiled.
func (l *ioLowering) usedOutputs() []VaryingSlot {
	switch l.c.Shader.Stage {
	case nir.StageVertex:
		return l.c.VSKey.UsedOutputs
	case nir.StageGeometry:
		return l.c.GSKey.UsedOutputs
	default:
		panic("compiler: unsupported shader stage")
	}
}

// varyingSlotVPMOffset returns the varying slot index assigned to a
// (location, component) pair, or -1 when the consuming stage does not
// read it. The index is the pair's position in the used-outputs table;
// that scan order is the producer/consumer slot contract.
func (l *ioLowering) varyingSlotVPMOffset(location uint32, component uint8) int {
	for i, slot := range l.usedOutputs() {
		if slot.Location() == location && slot.Component() == component {
			return i
		}
	}
	return -1
}

// lowerVPMOutput lowers a semantic output store to a series of VPM
// writes.
//
// For geometry shaders we need to emit multiple vertices, so the VPM
// offsets are computed in the shader code based on the current vertex
// index.
func (l *ioLowering) lowerVPMOutput(b *nir.Builder, in *nir.Instr, op *nir.OpStoreOutput) {
	b.BeforeInstr(in)

	// If this is a geometry shader we need to emit our outputs to the
	// current vertex offset in the VPM.
	var offsetReg *nir.Instr
	if l.c.Shader.Stage == nir.StageGeometry {
		offsetReg = b.LoadVar(l.gs.outputOffsetVar)
	}

	startComp := op.Component
	location := op.Location
	src := op.Value
	numComponents := int(src.NumComponents)

	// Save off the components of the position for the setup of VPM
	// inputs read by fixed function hardware.
	if location == VaryingPos {
		for i := 0; i < numComponents; i++ {
			l.pos[int(startComp)+i] = b.Channel(src, uint8(i))
		}
	}

	// Just psiz to the position in the FF header right now.
	if location == VaryingPsiz && l.psizVPMOffset != -1 {
		vpmStoreOutput(b, l.psizVPMOffset, offsetReg, src)
	}

	if location == VaryingLayer {
		if l.c.Shader.Stage != nir.StageGeometry {
			panic("compiler: layer output outside a geometry shader")
		}
		header := b.LoadVar(l.gs.headerVar)
		header = b.IAndImm(header, 0xff00ffff)

		// An out-of-bounds layer index would make the binner access
		// tile state out of bounds, so clamp it to layer 0 at run time
		// (tile state is always allocated for at least one layer).
		fbLayers := b.LoadSysval(nir.SysvalFBLayers)
		cond := b.IGe(src, fbLayers)
		layerID := b.BCSel(cond,
			b.ImmInt(0),
			b.IShlImm(src, 16))
		header = b.IOr(header, layerID)
		b.StoreVar(l.gs.headerVar, header)
	}

	// Scalarize outputs if it hasn't happened already, since we want
	// to schedule each VPM write individually. We can skip any output
	// components not read by the consuming stage.
	for i := 0; i < numComponents; i++ {
		vpmOffset := l.varyingSlotVPMOffset(location, startComp+uint8(i))

		if op.WriteMask&(1<<i) == 0 {
			continue
		}

		if vpmOffset == -1 {
			continue
		}

		if op.Offset != nil && op.Offset.IsConst() {
			vpmOffset += int(op.Offset.AsUint()) * 4
		}

		l.varyingsStored[vpmOffset] = true

		vpmStoreOutput(b, l.varyingsVPMOffset+vpmOffset,
			offsetReg, b.Channel(src, uint8(i)))
	}

	in.Remove()
}

func (l *ioLowering) resetGSHeader(b *nir.Builder) {
	const newPrimitiveOffset = 0
	const vertexDataLengthOffset = 8

	vertexDataSize := l.gs.outputVertexDataSize
	if vertexDataSize&0xffffff00 != 0 {
		panic(fmt.Sprintf("compiler: vertex data size %d does not fit the header field", vertexDataSize))
	}

	header := uint32(1 << newPrimitiveOffset)
	header |= vertexDataSize << vertexDataLengthOffset
	b.StoreVar(l.gs.headerVar, b.ImmInt(header))
}

func (l *ioLowering) lowerEmitVertex(b *nir.Builder, in *nir.Instr) {
	b.BeforeInstr(in)

	header := b.LoadVar(l.gs.headerVar)
	headerOffset := b.LoadVar(l.gs.headerOffsetVar)
	outputOffset := b.LoadVar(l.gs.outputOffsetVar)

	// Emit fixed function outputs.
	l.emitFFVPMOutputs(b)

	// Emit the vertex header.
	vpmStoreOutput(b, 0, headerOffset, header)

	// Update the VPM offsets for the next vertex's output data and
	// header.
	outputOffset = b.IAddImm(outputOffset, int32(l.gs.outputVertexDataSize))
	headerOffset = b.IAddImm(headerOffset, 1)

	// Reset the New Primitive bit.
	header = b.IAndImm(header, 0xfffffffe)

	b.StoreVar(l.gs.outputOffsetVar, outputOffset)
	b.StoreVar(l.gs.headerOffsetVar, headerOffset)
	b.StoreVar(l.gs.headerVar, header)

	in.Remove()
}

func (l *ioLowering) lowerEndPrimitive(b *nir.Builder, in *nir.Instr) {
	if l.gs.headerVar == nil {
		panic("compiler: end-primitive before the geometry prologue")
	}
	b.BeforeInstr(in)
	l.resetGSHeader(b)

	in.Remove()
}

// lowerVertexInput applies the attribute channel swap for formats the
// fetch hardware cannot swizzle, such as BGRA vertex attributes.
func (l *ioLowering) lowerVertexInput(in *nir.Instr, op *nir.OpLoadInput) {
	if l.c.VSKey.VASwapRBMask == 0 {
		return
	}

	if l.c.VSKey.VASwapRBMask&(1<<op.Location) == 0 {
		return
	}

	if in.NumComponents != 1 {
		panic("compiler: vertex input loads must be scalarized")
	}
	if op.Component == 0 || op.Component == 2 {
		op.Component = (op.Component + 2) % 4
	}
}

// lowerFragmentInput derives the point coordinate components. The
// origin of the point coordinate can be in the upper left rather than
// the lower left, in which case Y must be flipped.
func (l *ioLowering) lowerFragmentInput(b *nir.Builder, impl *nir.FunctionImpl, in *nir.Instr, op *nir.OpLoadInput) {
	// The OpenGL path lowers point coordinates in an earlier pass.
	if l.c.Key.Environment == EnvironmentOpenGL {
		return
	}

	b.AfterInstr(in)

	inputVar := l.c.Shader.FindInputWithDriverLocation(op.Base)
	if inputVar == nil || !varyingIsPointCoord(inputVar.Location, l.c.FSKey.PointSpriteMask) {
		return
	}

	if in.NumComponents != 1 {
		panic("compiler: fragment input loads must be scalarized")
	}

	result := in
	switch op.Component {
	case 0, 1:
		if !l.c.FSKey.IsPoints {
			result = b.ImmFloat(0.0)
		}
	case 2:
		result = b.ImmFloat(0.0)
	case 3:
		result = b.ImmFloat(1.0)
	}
	if l.c.FSKey.PointCoordUpperLeft && op.Component == 1 {
		result = b.FSubImm(1.0, result)
	}
	if result != in {
		impl.RewriteUsesAfter(in, result, result)
	}
}

func (l *ioLowering) lowerInstr(b *nir.Builder, impl *nir.FunctionImpl, in *nir.Instr) {
	switch op := in.Op.(type) {
	case *nir.OpLoadInput:
		if l.c.Shader.Stage == nir.StageVertex {
			l.lowerVertexInput(in, op)
		} else if l.c.Shader.Stage == nir.StageFragment {
			l.lowerFragmentInput(b, impl, in, op)
		}

	case *nir.OpLoadUniform:
		l.lowerUniform(b, in, op)

	case *nir.OpStoreOutput:
		if l.c.Shader.Stage == nir.StageVertex ||
			l.c.Shader.Stage == nir.StageGeometry {
			l.lowerVPMOutput(b, in, op)
		}

	case *nir.OpEmitVertex:
		l.lowerEmitVertex(b, in)

	case *nir.OpEndPrimitive:
		l.lowerEndPrimitive(b, in)
	}
}

// updateOutputVarBase remaps the output variables' driver locations.
// This is purely so diagnostic dumps can map a VPM write back to a
// variable name.
func (l *ioLowering) updateOutputVarBase() {
	kept := l.c.Shader.Outputs[:0]
	for _, v := range l.c.Shader.Outputs {
		if v.Location == VaryingPos && l.posVPMOffset != -1 {
			v.DriverLocation = uint32(l.posVPMOffset)
			kept = append(kept, v)
			continue
		}

		if v.Location == VaryingPsiz && l.psizVPMOffset != -1 {
			v.DriverLocation = uint32(l.psizVPMOffset)
			kept = append(kept, v)
			continue
		}

		vpmOffset := l.varyingSlotVPMOffset(v.Location, v.LocationFrac)
		if vpmOffset != -1 {
			v.DriverLocation = uint32(l.varyingsVPMOffset + vpmOffset)
			kept = append(kept, v)
		}
		// Variables with no mapping are dropped so their stale
		// locations cannot confuse diagnostic dumps.
	}
	l.c.Shader.Outputs = kept
}

// setupVPMLayoutVS assigns the VPM slot offsets for a vertex shader.
// Fixed-function slots are allocated first, in hardware order, and the
// varying region follows them.
func (l *ioLowering) setupVPMLayoutVS() {
	vpmOffset := 0

	l.posVPMOffset = -1
	l.vpVPMOffset = -1
	l.zsVPMOffset = -1
	l.rcpWCVPMOffset = -1
	l.psizVPMOffset = -1

	needsFFOutputs := l.c.VSKey.Base.IsLastGeometryStage
	if needsFFOutputs {
		if l.c.VSKey.IsCoord {
			l.posVPMOffset = vpmOffset
			vpmOffset += 4
		}

		l.vpVPMOffset = vpmOffset
		vpmOffset += 2

		if !l.c.VSKey.IsCoord {
			l.zsVPMOffset = vpmOffset
			vpmOffset++
			l.rcpWCVPMOffset = vpmOffset
			vpmOffset++
		}

		if l.c.VSKey.PerVertexPointSize {
			l.psizVPMOffset = vpmOffset
			vpmOffset++
		}
	}

	l.varyingsVPMOffset = vpmOffset

	l.c.VPMOutputSize = uint32(max(1, vpmOffset+len(l.c.VSKey.UsedOutputs)))
}

// setupVPMLayoutGS assigns the VPM layout for a geometry shader: a
// header region of one generic slot plus one slot per output vertex,
// followed by the per-vertex data regions.
func (l *ioLowering) setupVPMLayoutGS() {
	// 1 header slot for the number of output vertices, then 1 header
	// slot per output vertex.
	numVertices := l.c.Shader.VerticesOut
	l.gs.outputHeaderSize = 1 + numVertices

	// Vertex data: here we only compute offsets into a generic vertex
	// data element. When a particular vertex is written to the VPM,
	// that vertex's output offset is added to these.
	//
	// A geometry shader is always the last stage before rasterization,
	// so the fixed function outputs are always emitted.
	vpmOffset := 0
	if l.c.GSKey.IsCoord {
		l.posVPMOffset = vpmOffset
		vpmOffset += 4
	} else {
		l.posVPMOffset = -1
	}

	l.vpVPMOffset = vpmOffset
	vpmOffset += 2

	if !l.c.GSKey.IsCoord {
		l.zsVPMOffset = vpmOffset
		vpmOffset++
		l.rcpWCVPMOffset = vpmOffset
		vpmOffset++
	} else {
		l.zsVPMOffset = -1
		l.rcpWCVPMOffset = -1
	}

	// Geometry shaders advertise per-vertex point size support, so
	// point size writes must be handled whenever they are present.
	if l.c.GSKey.PerVertexPointSize {
		l.psizVPMOffset = vpmOffset
		vpmOffset++
	} else {
		l.psizVPMOffset = -1
	}

	l.varyingsVPMOffset = vpmOffset

	l.gs.outputVertexDataSize =
		uint32(l.varyingsVPMOffset + len(l.c.GSKey.UsedOutputs))

	l.c.VPMOutputSize =
		l.gs.outputHeaderSize +
			l.gs.outputVertexDataSize*numVertices
}

// emitFFVPMOutputs derives and writes the fixed-function outputs for
// the current vertex.
func (l *ioLowering) emitFFVPMOutputs(b *nir.Builder) {
	// If this is a geometry shader we need to emit our fixed function
	// outputs to the current vertex offset in the VPM.
	var offsetReg *nir.Instr
	if l.c.Shader.Stage == nir.StageGeometry {
		offsetReg = b.LoadVar(l.gs.outputOffsetVar)
	}

	for i := 0; i < 4; i++ {
		if l.pos[i] == nil {
			l.pos[i] = b.Undef()
		}
	}

	rcpWC := b.FRcp(l.pos[3])

	if l.posVPMOffset != -1 {
		for i := 0; i < 4; i++ {
			vpmStoreOutput(b, l.posVPMOffset+i, offsetReg, l.pos[i])
		}
	}

	if l.vpVPMOffset != -1 {
		for i := 0; i < 2; i++ {
			pos := l.pos[i]
			var scale *nir.Instr
			if i == 0 {
				scale = b.LoadSysval(nir.SysvalViewportXScale)
			} else {
				scale = b.LoadSysval(nir.SysvalViewportYScale)
			}
			pos = b.FMul(pos, scale)
			pos = b.FMul(pos, rcpWC)
			// The hardware expects XY in .8 fixed point but rounds it
			// internally to .6, a double rounding that shifts triangle
			// coverage very slightly on older revisions. Flooring
			// before the conversion avoids it.
			pos = b.F2I32(b.FFloor(pos))
			vpmStoreOutput(b, l.vpVPMOffset+i, offsetReg, pos)
		}
	}

	if l.zsVPMOffset != -1 {
		z := l.pos[2]
		z = b.FMul(z, b.LoadSysval(nir.SysvalViewportZScale))
		z = b.FMul(z, rcpWC)
		z = b.FAdd(z, b.LoadSysval(nir.SysvalViewportZOffset))
		vpmStoreOutput(b, l.zsVPMOffset, offsetReg, z)
	}

	if l.rcpWCVPMOffset != -1 {
		vpmStoreOutput(b, l.rcpWCVPMOffset, offsetReg, rcpWC)
	}

	// Store 0 to varyings requested by the next stage but not stored
	// here. This should be undefined behavior, but consumers rely on
	// every requested varying being present.
	for i := range l.usedOutputs() {
		if !l.varyingsStored[i] {
			vpmStoreOutput(b, l.varyingsVPMOffset+i, offsetReg, b.ImmInt(0))
		}
	}
}

// emitGSPrologue creates the geometry accumulators at the start of the
// function: the running output offset, the running header offset, and
// the current vertex header word.
func (l *ioLowering) emitGSPrologue(b *nir.Builder, impl *nir.FunctionImpl) {
	b.AtBlockStart(impl.StartBlock())

	if l.gs.outputOffsetVar != nil || l.gs.headerOffsetVar != nil || l.gs.headerVar != nil {
		panic("compiler: geometry prologue emitted twice")
	}

	l.gs.outputOffsetVar = impl.NewLocal("output_offset")
	b.StoreVar(l.gs.outputOffsetVar, b.ImmInt(l.gs.outputHeaderSize))

	l.gs.headerOffsetVar = impl.NewLocal("header_offset")
	b.StoreVar(l.gs.headerOffsetVar, b.ImmInt(1))

	l.gs.headerVar = impl.NewLocal("header")
	l.resetGSHeader(b)
}

// emitGSVPMOutputHeaderPrologue patches the generic first header slot
// on function exit. The header region is 1 generic slot followed by one
// slot per emitted vertex, so the final vertex count is recovered from
// the header offset by dropping that leading slot.
func (l *ioLowering) emitGSVPMOutputHeaderPrologue(b *nir.Builder) {
	const vertexCountOffset = 16

	headerOffset := b.LoadVar(l.gs.headerOffsetVar)
	vertexCount := b.IAddImm(headerOffset, -1)
	header := b.IOrImm(
		b.IShlImm(vertexCount, vertexCountOffset),
		l.gs.outputHeaderSize)

	vpmStoreOutput(b, 0, nil, header)
}

// LowerIO lowers the shader's I/O intrinsics to the VPM protocol and
// publishes the total VPM output size on the Compile context. It
// reports whether the pass made progress, which it always does.
func LowerIO(s *nir.Shader, c *Compile) bool {
	l := &ioLowering{c: c}

	// Set up the layout of the VPM outputs.
	switch s.Stage {
	case nir.StageVertex:
		l.setupVPMLayoutVS()
	case nir.StageGeometry:
		l.setupVPMLayoutGS()
	case nir.StageFragment, nir.StageCompute:
	default:
		panic("compiler: unsupported shader stage")
	}

	for _, impl := range s.Funcs {
		b := nir.NewBuilder(impl)

		if s.Stage == nir.StageGeometry {
			l.emitGSPrologue(b, impl)
		}

		for _, block := range impl.Blocks {
			block.ForEachSafe(func(in *nir.Instr) {
				l.lowerInstr(b, impl, in)
			})
		}

		b.AtBlockEnd(impl.LastBlock())
		if s.Stage == nir.StageVertex {
			l.emitFFVPMOutputs(b)
		} else if s.Stage == nir.StageGeometry {
			l.emitGSVPMOutputHeaderPrologue(b)
		}
	}

	if s.Stage == nir.StageVertex || s.Stage == nir.StageGeometry {
		l.updateOutputVarBase()
	}

	return true
}
