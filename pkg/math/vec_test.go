package math

import (
	"testing"
)

func TestVec3Add(t *testing.T) {
	got := Vec3{1, 2, 3}.Add(Vec3{4, 5, 6})
	want := Vec3{5, 7, 9}
	if got != want {
		t.Errorf("Vec3.Add() = %v, want %v", got, want)
	}
}

func TestVec3Length(t *testing.T) {
	got := Vec3{2, 3, 6}.Length()
	if got != 7 {
		t.Errorf("Vec3.Length() = %v, want 7", got)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, -2, 3}
	b := Vec3{-1, 2, 0}
	if got, want := a.Min(b), (Vec3{-1, -2, 0}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{1, 2, 3}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
}

func TestVec3XZY(t *testing.T) {
	got := Vec3{-5, 1, 2}.XZY()
	want := Vec3{-5, 2, 1}
	if got != want {
		t.Errorf("Vec3.XZY() = %v, want %v", got, want)
	}
}

func TestVec2FlipV(t *testing.T) {
	got := Vec2{0.25, 0.75}.FlipV()
	want := Vec2{0.25, 0.25}
	if got != want {
		t.Errorf("Vec2.FlipV() = %v, want %v", got, want)
	}
}

func TestVecArray(t *testing.T) {
	if got := (Vec3{1, 2, 3}).Array(); got != [3]float32{1, 2, 3} {
		t.Errorf("Vec3.Array() = %v", got)
	}
	if got := (Vec2{1, 2}).Array(); got != [2]float32{1, 2} {
		t.Errorf("Vec2.Array() = %v", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{0, 3, 4}.Normalize()
	if l := n.Length(); l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero Normalize() = %v, want zero", got)
	}
}
