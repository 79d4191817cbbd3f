// Package nir defines the intrinsic-level intermediate representation
// consumed by the v3d backend.
//
// Unlike a structured, statement-tree IR, this representation is a flat
// list of scalar instructions grouped into blocks, close to what the
// hardware backend schedules. Values are in SSA form: an instruction is
// its own definition, and operands are direct pointers to the defining
// instruction.
//
// # Structure
//
// A Shader holds one or more FunctionImpls, each a list of Blocks, each
// a list of Instrs. Every Instr carries an Op describing what it does:
//   - Immediates and undefs (OpImm, OpUndef)
//   - Scalar ALU operations (OpAlu, OpChannel, OpVec)
//   - I/O intrinsics (OpLoadInput, OpLoadUniform, OpStoreOutput)
//   - Geometry stream intrinsics (OpEmitVertex, OpEndPrimitive)
//   - Hardware state loads (OpLoadSysval)
//   - Function-local variable access (OpLoadVar, OpStoreVar)
//
// # Building and rewriting
//
// Backend passes both inspect and rewrite the instruction stream in a
// single walk. The Builder inserts new instructions at a movable cursor,
// and Block.ForEachSafe iterates over a snapshot so the current
// instruction can be removed without disturbing the walk.
package nir
