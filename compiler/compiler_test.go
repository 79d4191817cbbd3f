package compiler

import "testing"

func TestVaryingSlotPacking(t *testing.T) {
	cases := []struct {
		location  uint32
		component uint8
	}{
		{VaryingPos, 0},
		{VaryingVar0, 3},
		{VaryingLayer, 1},
		{VaryingVar0 + 7, 2},
	}
	for _, tc := range cases {
		slot := MakeVaryingSlot(tc.location, tc.component)
		if slot.Location() != tc.location {
			t.Errorf("location %d round-tripped to %d", tc.location, slot.Location())
		}
		if slot.Component() != tc.component {
			t.Errorf("component %d round-tripped to %d", tc.component, slot.Component())
		}
	}
}

func TestVaryingIsPointCoord(t *testing.T) {
	if !varyingIsPointCoord(VaryingPntc, 0) {
		t.Error("gl_PointCoord should always be a point coordinate")
	}
	if !varyingIsPointCoord(VaryingTex0+2, 1<<2) {
		t.Error("tex coord with sprite replacement enabled should be a point coordinate")
	}
	if varyingIsPointCoord(VaryingTex0+2, 1<<3) {
		t.Error("tex coord with sprite replacement disabled should not be a point coordinate")
	}
	if varyingIsPointCoord(VaryingVar0, ^uint32(0)) {
		t.Error("generic varyings are never point coordinates")
	}
}
