package nir

import (
	"math"
	"testing"
)

func TestBuilderInsertsInProgramOrder(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	a := b.ImmInt(1)
	c := b.ImmInt(2)
	d := b.IOr(a, c)

	blk := impl.StartBlock()
	if len(blk.Instrs) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(blk.Instrs))
	}
	want := []*Instr{a, c, d}
	for i, in := range want {
		if blk.Instrs[i] != in {
			t.Errorf("instruction %d out of order", i)
		}
	}
}

func TestBuilderBeforeInstr(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	first := b.ImmInt(1)
	last := b.ImmInt(2)

	b.BeforeInstr(last)
	mid := b.ImmInt(3)

	blk := impl.StartBlock()
	want := []*Instr{first, mid, last}
	for i, in := range want {
		if blk.Instrs[i] != in {
			t.Fatalf("expected instruction %d at index %d", i, i)
		}
	}
}

func TestBuilderAfterInstr(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	first := b.ImmInt(1)
	last := b.ImmInt(2)

	b.AfterInstr(first)
	mid := b.ImmInt(3)

	blk := impl.StartBlock()
	want := []*Instr{first, mid, last}
	for i, in := range want {
		if blk.Instrs[i] != in {
			t.Fatalf("expected instruction %d at index %d", i, i)
		}
	}
}

func TestRemoveDetachesInstr(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	a := b.ImmInt(1)
	c := b.ImmInt(2)

	a.Remove()

	if a.Block() != nil {
		t.Error("removed instruction still reports a block")
	}
	blk := impl.StartBlock()
	if len(blk.Instrs) != 1 || blk.Instrs[0] != c {
		t.Errorf("block should contain only the surviving instruction")
	}

	// Removing twice is a no-op.
	a.Remove()
	if len(blk.Instrs) != 1 {
		t.Error("second Remove changed the block")
	}
}

func TestForEachSafeAllowsRemoval(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	for i := 0; i < 5; i++ {
		b.ImmInt(uint32(i))
	}

	blk := impl.StartBlock()
	visited := 0
	blk.ForEachSafe(func(in *Instr) {
		visited++
		in.Remove()
	})

	if visited != 5 {
		t.Errorf("expected 5 visits, got %d", visited)
	}
	if len(blk.Instrs) != 0 {
		t.Errorf("expected empty block, got %d instructions", len(blk.Instrs))
	}
}

func TestForEachSafeSkipsRemovedAhead(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	a := b.ImmInt(1)
	c := b.ImmInt(2)

	var visited []*Instr
	impl.StartBlock().ForEachSafe(func(in *Instr) {
		visited = append(visited, in)
		if in == a {
			c.Remove()
		}
	})

	if len(visited) != 1 || visited[0] != a {
		t.Errorf("expected only the first instruction to be visited, got %d visits", len(visited))
	}
}

func TestForEachSafeSkipsNewInsertions(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	a := b.ImmInt(1)

	visited := 0
	impl.StartBlock().ForEachSafe(func(in *Instr) {
		visited++
		b.BeforeInstr(a)
		b.ImmInt(2)
	})

	if visited != 1 {
		t.Errorf("snapshot walk visited %d instructions, want 1", visited)
	}
	if got := len(impl.StartBlock().Instrs); got != 2 {
		t.Errorf("expected 2 instructions after insertion, got %d", got)
	}
}

func TestRewriteUsesAfter(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	load := b.ImmInt(1)
	before := b.Mov(load)
	repl := b.ImmInt(2)
	after := b.Mov(load)

	impl.RewriteUsesAfter(load, repl, repl)

	if op := before.Op.(*OpAlu); op.Srcs[0] != load {
		t.Error("use before the replacement point was rewritten")
	}
	if op := after.Op.(*OpAlu); op.Srcs[0] != repl {
		t.Error("use after the replacement point was not rewritten")
	}
}

func TestIAddImmZeroFolds(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	src := b.ImmInt(7)
	if got := b.IAddImm(src, 0); got != src {
		t.Error("adding zero should return the source unchanged")
	}
	if got := b.IAddImm(src, 3); got == src {
		t.Error("adding a non-zero immediate should build a new instruction")
	}
}

func TestChannelOfScalarFolds(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	scalar := b.ImmFloat(1.0)
	if got := b.Channel(scalar, 0); got != scalar {
		t.Error("channel 0 of a scalar should return the value unchanged")
	}

	vec := b.Vec(scalar, scalar)
	ch := b.Channel(vec, 1)
	op, ok := ch.Op.(*OpChannel)
	if !ok {
		t.Fatalf("expected OpChannel, got %T", ch.Op)
	}
	if op.Src != vec || op.Comp != 1 {
		t.Error("channel extraction has wrong source or component")
	}
	if ch.NumComponents != 1 {
		t.Errorf("channel should be scalar, got %d components", ch.NumComponents)
	}
}

func TestImmediateBits(t *testing.T) {
	impl := NewFunctionImpl()
	b := NewBuilder(impl)

	i := b.ImmInt(0x501)
	if !i.IsConst() || i.AsUint() != 0x501 {
		t.Errorf("integer immediate bits = %#x, want 0x501", i.AsUint())
	}

	f := b.ImmFloat(1.0)
	if f.AsUint() != math.Float32bits(1.0) {
		t.Errorf("float immediate bits = %#x, want %#x", f.AsUint(), math.Float32bits(1.0))
	}
	if f.Op.(*OpImm).Kind != ScalarFloat {
		t.Error("float immediate should have float kind")
	}
}

func TestFindInputWithDriverLocation(t *testing.T) {
	s := &Shader{
		Inputs: []*Variable{
			{Name: "a", DriverLocation: 0},
			{Name: "b", DriverLocation: 3},
		},
	}
	if v := s.FindInputWithDriverLocation(3); v == nil || v.Name != "b" {
		t.Error("expected to find input at driver location 3")
	}
	if v := s.FindInputWithDriverLocation(7); v != nil {
		t.Error("expected no input at driver location 7")
	}
}
