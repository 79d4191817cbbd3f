package nir

import "math"

// Builder inserts instructions at a movable cursor position. After each
// insertion the cursor advances past the new instruction, so a sequence
// of builder calls produces instructions in program order.
type Builder struct {
	block *Block
	index int
}

// NewBuilder returns a builder positioned at the start of the
// function's entry block.
func NewBuilder(impl *FunctionImpl) *Builder {
	b := &Builder{}
	b.AtBlockStart(impl.StartBlock())
	return b
}

// AtBlockStart positions the cursor before the block's first
// instruction.
func (b *Builder) AtBlockStart(blk *Block) {
	b.block = blk
	b.index = 0
}

// AtBlockEnd positions the cursor after the block's last instruction.
func (b *Builder) AtBlockEnd(blk *Block) {
	b.block = blk
	b.index = len(blk.Instrs)
}

// BeforeInstr positions the cursor immediately before the instruction.
func (b *Builder) BeforeInstr(in *Instr) {
	if in.block == nil {
		panic("nir: cursor before a removed instruction")
	}
	b.block = in.block
	b.index = in.block.indexOf(in)
}

// AfterInstr positions the cursor immediately after the instruction.
func (b *Builder) AfterInstr(in *Instr) {
	b.BeforeInstr(in)
	b.index++
}

func (b *Builder) insert(in *Instr) *Instr {
	blk := b.block
	blk.Instrs = append(blk.Instrs, nil)
	copy(blk.Instrs[b.index+1:], blk.Instrs[b.index:])
	blk.Instrs[b.index] = in
	in.block = blk
	b.index++
	return in
}

func (b *Builder) alu(op AluOp, srcs ...*Instr) *Instr {
	return b.insert(&Instr{
		Op:            &OpAlu{Op: op, Srcs: srcs},
		NumComponents: 1,
	})
}

// ImmInt builds an integer immediate.
func (b *Builder) ImmInt(v uint32) *Instr {
	return b.insert(&Instr{Op: &OpImm{Bits: v, Kind: ScalarUint}, NumComponents: 1})
}

// ImmFloat builds a float immediate.
func (b *Builder) ImmFloat(v float32) *Instr {
	return b.insert(&Instr{Op: &OpImm{Bits: math.Float32bits(v), Kind: ScalarFloat}, NumComponents: 1})
}

// Undef builds an unspecified but valid scalar value.
func (b *Builder) Undef() *Instr {
	return b.insert(&Instr{Op: &OpUndef{}, NumComponents: 1})
}

// Mov copies a value.
func (b *Builder) Mov(src *Instr) *Instr {
	return b.alu(AluMov, src)
}

// IAddImm adds an integer immediate to a value. Adding zero returns the
// source unchanged.
func (b *Builder) IAddImm(src *Instr, imm int32) *Instr {
	if imm == 0 {
		return src
	}
	return b.alu(AluIAdd, src, b.ImmInt(uint32(imm)))
}

// IShlImm shifts a value left by an immediate amount.
func (b *Builder) IShlImm(src *Instr, shift uint32) *Instr {
	return b.alu(AluIShl, src, b.ImmInt(shift))
}

// IAndImm masks a value with an immediate.
func (b *Builder) IAndImm(src *Instr, mask uint32) *Instr {
	return b.alu(AluIAnd, src, b.ImmInt(mask))
}

// IOrImm ors a value with an immediate.
func (b *Builder) IOrImm(src *Instr, imm uint32) *Instr {
	return b.alu(AluIOr, src, b.ImmInt(imm))
}

// IOr ors two values.
func (b *Builder) IOr(x, y *Instr) *Instr {
	return b.alu(AluIOr, x, y)
}

// IGe builds a signed greater-or-equal comparison.
func (b *Builder) IGe(x, y *Instr) *Instr {
	return b.alu(AluIGe, x, y)
}

// BCSel selects between two values based on a boolean condition.
func (b *Builder) BCSel(cond, then, els *Instr) *Instr {
	return b.alu(AluBCSel, cond, then, els)
}

// FAdd adds two float values.
func (b *Builder) FAdd(x, y *Instr) *Instr {
	return b.alu(AluFAdd, x, y)
}

// FSubImm subtracts a value from a float immediate.
func (b *Builder) FSubImm(imm float32, src *Instr) *Instr {
	return b.alu(AluFSub, b.ImmFloat(imm), src)
}

// FMul multiplies two float values.
func (b *Builder) FMul(x, y *Instr) *Instr {
	return b.alu(AluFMul, x, y)
}

// FRcp builds a float reciprocal.
func (b *Builder) FRcp(src *Instr) *Instr {
	return b.alu(AluFRcp, src)
}

// FFloor rounds a float value toward negative infinity.
func (b *Builder) FFloor(src *Instr) *Instr {
	return b.alu(AluFFloor, src)
}

// F2I32 converts a float value to a signed integer.
func (b *Builder) F2I32(src *Instr) *Instr {
	return b.alu(AluF2I32, src)
}

// Vec builds a vector value from scalar components.
func (b *Builder) Vec(srcs ...*Instr) *Instr {
	return b.insert(&Instr{
		Op:            &OpVec{Srcs: srcs},
		NumComponents: uint8(len(srcs)),
	})
}

// Channel extracts one scalar component of a value. Extracting
// component zero of a scalar returns the value unchanged.
func (b *Builder) Channel(src *Instr, comp uint8) *Instr {
	if src.NumComponents == 1 && comp == 0 {
		return src
	}
	return b.insert(&Instr{
		Op:            &OpChannel{Src: src, Comp: comp},
		NumComponents: 1,
	})
}

// LoadSysval loads a hardware state value.
func (b *Builder) LoadSysval(sv Sysval) *Instr {
	return b.insert(&Instr{Op: &OpLoadSysval{Sysval: sv}, NumComponents: 1})
}

// LoadVar reads a function-local variable.
func (b *Builder) LoadVar(v *LocalVar) *Instr {
	return b.insert(&Instr{Op: &OpLoadVar{Var: v}, NumComponents: 1})
}

// StoreVar writes a function-local variable.
func (b *Builder) StoreVar(v *LocalVar, value *Instr) *Instr {
	return b.insert(&Instr{Op: &OpStoreVar{Var: v, Value: value}})
}

// LoadInput builds a single-component input load.
func (b *Builder) LoadInput(offset *Instr, base uint32, component uint8, location uint32) *Instr {
	return b.insert(&Instr{
		Op: &OpLoadInput{
			Offset:    offset,
			Base:      base,
			Component: component,
			Location:  location,
		},
		NumComponents: 1,
	})
}

// LoadUniform builds a uniform load at base plus a dynamic offset.
func (b *Builder) LoadUniform(offset *Instr, base uint32) *Instr {
	return b.insert(&Instr{
		Op:            &OpLoadUniform{Offset: offset, Base: base},
		NumComponents: 1,
	})
}

// StoreOutput builds an output store.
func (b *Builder) StoreOutput(value, offset *Instr, base uint32, component, writeMask uint8, location uint32) *Instr {
	return b.insert(&Instr{
		Op: &OpStoreOutput{
			Value:     value,
			Offset:    offset,
			Base:      base,
			Component: component,
			WriteMask: writeMask,
			Location:  location,
		},
	})
}

// EmitVertex builds an emit-vertex intrinsic.
func (b *Builder) EmitVertex() *Instr {
	return b.insert(&Instr{Op: &OpEmitVertex{}})
}

// EndPrimitive builds an end-primitive intrinsic.
func (b *Builder) EndPrimitive() *Instr {
	return b.insert(&Instr{Op: &OpEndPrimitive{}})
}
