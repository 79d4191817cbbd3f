package nir

// ShaderStage represents a shader stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageGeometry
	StageFragment
	StageCompute
)

// Shader represents one shader program in backend IR form.
type Shader struct {
	Stage ShaderStage

	// VerticesOut is the declared maximum number of output vertices.
	// Only meaningful for geometry shaders.
	VerticesOut uint32

	// Funcs holds the function implementations, entry point first.
	Funcs []*FunctionImpl

	// Inputs and Outputs hold the shader-level variable declarations.
	// The backend consults them for input fixups and keeps the output
	// list's driver locations mapped for diagnostics.
	Inputs  []*Variable
	Outputs []*Variable
}

// FindInputWithDriverLocation returns the input variable whose driver
// location equals base, or nil if there is none.
func (s *Shader) FindInputWithDriverLocation(base uint32) *Variable {
	for _, v := range s.Inputs {
		if v.DriverLocation == base {
			return v
		}
	}
	return nil
}

// Variable is a shader-level input or output declaration.
type Variable struct {
	Name string

	// Location is the semantic location (varying slot).
	Location uint32
	// LocationFrac is the first component at that location.
	LocationFrac uint8
	// DriverLocation is the backend-assigned location.
	DriverLocation uint32
}

// LocalVar is a function-local scalar variable.
type LocalVar struct {
	Name string
}

// FunctionImpl is the body of one function: a list of blocks in
// program order plus the function's local variables.
type FunctionImpl struct {
	Blocks []*Block
	Locals []*LocalVar
}

// NewFunctionImpl returns a function body with a single empty block.
func NewFunctionImpl() *FunctionImpl {
	return &FunctionImpl{Blocks: []*Block{{}}}
}

// NewLocal creates a function-local variable.
func (f *FunctionImpl) NewLocal(name string) *LocalVar {
	v := &LocalVar{Name: name}
	f.Locals = append(f.Locals, v)
	return v
}

// StartBlock returns the function's entry block.
func (f *FunctionImpl) StartBlock() *Block {
	return f.Blocks[0]
}

// LastBlock returns the function's final block.
func (f *FunctionImpl) LastBlock() *Block {
	return f.Blocks[len(f.Blocks)-1]
}

// RewriteUsesAfter replaces every operand reference to old with repl in
// all instructions that appear after the given instruction.
func (f *FunctionImpl) RewriteUsesAfter(old, repl, after *Instr) {
	seen := false
	for _, blk := range f.Blocks {
		for _, in := range blk.Instrs {
			if !seen {
				if in == after {
					seen = true
				}
				continue
			}
			for _, src := range in.srcRefs() {
				if *src == old {
					*src = repl
				}
			}
		}
	}
}

// Block is a straight-line sequence of instructions.
type Block struct {
	Instrs []*Instr
}

// ForEachSafe walks the block's instructions over a snapshot taken up
// front, so the callback may remove any instruction, including the one
// it was given, without disturbing the walk. Instructions removed
// before the walk reaches them are skipped.
func (blk *Block) ForEachSafe(fn func(*Instr)) {
	snapshot := make([]*Instr, len(blk.Instrs))
	copy(snapshot, blk.Instrs)
	for _, in := range snapshot {
		if in.block == nil {
			continue
		}
		fn(in)
	}
}

func (blk *Block) indexOf(in *Instr) int {
	for i, other := range blk.Instrs {
		if other == in {
			return i
		}
	}
	return -1
}

// Instr is a single instruction. An instruction that produces a value
// is that value's SSA definition.
type Instr struct {
	Op Op

	// NumComponents is the vector width of the produced value, or 0
	// for instructions that produce no value.
	NumComponents uint8

	block *Block
}

// Block returns the block the instruction currently belongs to, or nil
// once it has been removed.
func (in *Instr) Block() *Block {
	return in.block
}

// Remove detaches the instruction from its block.
func (in *Instr) Remove() {
	blk := in.block
	if blk == nil {
		return
	}
	if i := blk.indexOf(in); i >= 0 {
		blk.Instrs = append(blk.Instrs[:i], blk.Instrs[i+1:]...)
	}
	in.block = nil
}

// IsConst reports whether the instruction is an immediate.
func (in *Instr) IsConst() bool {
	_, ok := in.Op.(*OpImm)
	return ok
}

// AsUint returns the immediate's raw bits. It panics when the
// instruction is not an immediate; callers must check IsConst first.
func (in *Instr) AsUint() uint32 {
	imm, ok := in.Op.(*OpImm)
	if !ok {
		panic("nir: AsUint on a non-immediate instruction")
	}
	return imm.Bits
}

// srcRefs returns pointers to the instruction's operand slots so that
// rewriting passes can redirect them in place.
func (in *Instr) srcRefs() []**Instr {
	switch op := in.Op.(type) {
	case *OpAlu:
		refs := make([]**Instr, len(op.Srcs))
		for i := range op.Srcs {
			refs[i] = &op.Srcs[i]
		}
		return refs
	case *OpVec:
		refs := make([]**Instr, len(op.Srcs))
		for i := range op.Srcs {
			refs[i] = &op.Srcs[i]
		}
		return refs
	case *OpChannel:
		return []**Instr{&op.Src}
	case *OpLoadInput:
		if op.Offset != nil {
			return []**Instr{&op.Offset}
		}
	case *OpLoadUniform:
		if op.Offset != nil {
			return []**Instr{&op.Offset}
		}
	case *OpStoreOutput:
		refs := []**Instr{&op.Value}
		if op.Offset != nil {
			refs = append(refs, &op.Offset)
		}
		return refs
	case *OpStoreVar:
		return []**Instr{&op.Value}
	}
	return nil
}

// Op is the operation performed by an instruction.
type Op interface {
	isOp()
}

// ScalarKind classifies an immediate's bit pattern.
type ScalarKind uint8

const (
	ScalarSint ScalarKind = iota
	ScalarUint
	ScalarFloat
)

// OpImm is an immediate scalar constant.
type OpImm struct {
	Bits uint32
	Kind ScalarKind
}

func (*OpImm) isOp() {}

// OpUndef produces an unspecified but valid scalar value.
type OpUndef struct{}

func (*OpUndef) isOp() {}

// AluOp identifies a scalar ALU operation.
type AluOp uint8

const (
	AluMov AluOp = iota

	// Integer operations
	AluIAdd
	AluIShl
	AluIAnd
	AluIOr
	AluIGe // signed greater-or-equal, producing a boolean

	// Selection
	AluBCSel // bcsel(cond, then, else)

	// Float operations
	AluFAdd
	AluFSub
	AluFMul
	AluFRcp
	AluFFloor
	AluF2I32
)

// OpAlu applies an ALU operation to its source values.
type OpAlu struct {
	Op   AluOp
	Srcs []*Instr
}

func (*OpAlu) isOp() {}

// OpVec builds a vector value from scalar components.
type OpVec struct {
	Srcs []*Instr
}

func (*OpVec) isOp() {}

// OpChannel extracts a single scalar component of a vector value.
type OpChannel struct {
	Src  *Instr
	Comp uint8
}

func (*OpChannel) isOp() {}

// Sysval names a hardware state value loaded as an opaque scalar.
type Sysval uint8

const (
	SysvalViewportXScale Sysval = iota
	SysvalViewportYScale
	SysvalViewportZScale
	SysvalViewportZOffset
	SysvalFBLayers
)

// OpLoadSysval loads a hardware state value.
type OpLoadSysval struct {
	Sysval Sysval
}

func (*OpLoadSysval) isOp() {}

// OpLoadInput loads one component of a vertex attribute or fragment
// input. Base is the input variable's driver location, Location its
// semantic location, and Offset an indirect element offset.
type OpLoadInput struct {
	Offset    *Instr
	Base      uint32
	Component uint8
	Location  uint32
}

func (*OpLoadInput) isOp() {}

// OpLoadUniform loads from the uniform storage at Base plus a dynamic
// offset.
type OpLoadUniform struct {
	Offset *Instr
	Base   uint32
}

func (*OpLoadUniform) isOp() {}

// OpStoreOutput stores shader output components. Before lowering,
// Location and Component describe the semantic output and Offset is a
// vertex or element index. After lowering, Base is an absolute VPM slot
// address, WriteMask is a single component, and Offset is a dynamic
// address contribution.
type OpStoreOutput struct {
	Value     *Instr
	Offset    *Instr
	Base      uint32
	Component uint8
	WriteMask uint8
	Location  uint32
}

func (*OpStoreOutput) isOp() {}

// OpEmitVertex completes the current output vertex of a geometry
// shader.
type OpEmitVertex struct{}

func (*OpEmitVertex) isOp() {}

// OpEndPrimitive finishes the current output primitive of a geometry
// shader.
type OpEndPrimitive struct{}

func (*OpEndPrimitive) isOp() {}

// OpLoadVar reads a function-local variable.
type OpLoadVar struct {
	Var *LocalVar
}

func (*OpLoadVar) isOp() {}

// OpStoreVar writes a function-local variable.
type OpStoreVar struct {
	Var   *LocalVar
	Value *Instr
}

func (*OpStoreVar) isOp() {}
