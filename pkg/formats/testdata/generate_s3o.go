//go:build ignore

// This program generates a test S3O file for unit tests and manual CLI runs.
// Run with: go run generate_s3o.go
package main

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
)

type writer struct {
	bytes.Buffer
}

func (w *writer) pos() uint32 { return uint32(w.Len()) }

func (w *writer) u32(vs ...uint32) {
	for _, v := range vs {
		binary.Write(&w.Buffer, binary.LittleEndian, v)
	}
}

func (w *writer) f32(vs ...float32) {
	for _, v := range vs {
		w.u32(math.Float32bits(v))
	}
}

func (w *writer) cstr(s string) uint32 {
	at := w.pos()
	w.WriteString(s)
	w.WriteByte(0)
	return at
}

func main() {
	var w writer

	// Header placeholder, patched at the end
	w.Write(make([]byte, 52))

	tex1 := w.cstr("testunit_tex1.dds")
	tex2 := w.cstr("testunit_tex2.dds")

	// Piece "flare": no geometry, child of "turret"
	flareName := w.cstr("flare")
	flare := w.pos()
	w.u32(flareName, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	w.f32(0, 2, 12)

	// Piece "turret": one quad
	turretName := w.cstr("turret")
	turretVerts := w.pos()
	for _, v := range [][8]float32{
		{-2, 0, -2, 0, 1, 0, 0, 0},
		{2, 0, -2, 0, 1, 0, 1, 0},
		{2, 0, 2, 0, 1, 0, 1, 1},
		{-2, 0, 2, 0, 1, 0, 0, 1},
	} {
		w.f32(v[:]...)
	}
	turretTable := w.pos()
	w.u32(0, 1, 2, 3)
	turretChildren := w.pos()
	w.u32(flare)
	turret := w.pos()
	w.u32(turretName, 1, turretChildren, 4, turretVerts, 0, 2, 4, turretTable, 0)
	w.f32(0, 6, 0)

	// Piece "base": two triangles, root
	baseName := w.cstr("base")
	baseVerts := w.pos()
	for _, v := range [][8]float32{
		{-8, 0, -8, 0, 1, 0, 0, 0},
		{8, 0, -8, 0, 1, 0, 1, 0},
		{8, 0, 8, 0, 1, 0, 1, 1},
		{-8, 0, 8, 0, 1, 0, 0, 1},
	} {
		w.f32(v[:]...)
	}
	baseTable := w.pos()
	w.u32(0, 1, 2, 0, 2, 3)
	baseChildren := w.pos()
	w.u32(turret)
	base := w.pos()
	w.u32(baseName, 1, baseChildren, 4, baseVerts, 0, 0, 6, baseTable, 0)
	w.f32(0, 0, 0)

	data := w.Bytes()
	copy(data, "Spring unit\x00")
	put := func(at int, v uint32) { binary.LittleEndian.PutUint32(data[at:], v) }
	put(12, 0)                      // version
	put(16, math.Float32bits(16))   // radius
	put(20, math.Float32bits(10))   // height
	put(24, math.Float32bits(0))    // midx
	put(28, math.Float32bits(5))    // midy
	put(32, math.Float32bits(0))    // midz
	put(36, base)                   // root piece
	put(40, 0)                      // collision data
	put(44, tex1)
	put(48, tex2)

	if err := os.WriteFile("test.s3o", data, 0644); err != nil {
		panic(err)
	}

	println("Generated test.s3o:", len(data), "bytes")
	println("  - base (2 triangles) > turret (1 quad) > flare (empty)")
}
