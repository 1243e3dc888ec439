// Package export converts decoded S3O models into glTF 2.0 documents.
package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/spring-s3o/internal/logger"
	"github.com/Faultbox/spring-s3o/pkg/formats"
	"github.com/Faultbox/spring-s3o/pkg/math"
)

// GLTFVersion is the glTF specification version written to the asset block.
const GLTFVersion = "2.0"

// FlipMode controls the vertical flip of texture coordinates.
type FlipMode int

const (
	// FlipAuto flips V unless texture1 is a DDS file.
	FlipAuto FlipMode = iota
	// FlipAlways flips V for every vertex.
	FlipAlways
	// FlipNever keeps V as stored.
	FlipNever
)

// ParseFlipMode maps "auto", "always" or "never" to a FlipMode.
func ParseFlipMode(s string) (FlipMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FlipAuto, nil
	case "always":
		return FlipAlways, nil
	case "never":
		return FlipNever, nil
	default:
		return FlipAuto, fmt.Errorf("unknown flip mode %q", s)
	}
}

// Options configures ToGLTF.
type Options struct {
	Name string   // Model name used for the scene, material and marker nodes
	Flip FlipMode // UV flip policy

	// TextureURI maps a texture name to the image URI written to the document.
	// When nil the texture name is used as is.
	TextureURI func(name string) string
}

// ShouldFlipV reports whether V must be flipped for the given texture name.
// DDS images are stored bottom-up and keep their coordinates.
func ShouldFlipV(mode FlipMode, texture string) bool {
	switch mode {
	case FlipAlways:
		return true
	case FlipNever:
		return false
	}
	if texture == "" {
		return false
	}
	return !strings.EqualFold(filepath.Ext(texture), ".dds")
}

// builder accumulates one document.
type builder struct {
	doc      *gltf.Document
	buf      *bytes.Buffer
	material *uint32
	flipV    bool
}

// ToGLTF builds a glTF document from a decoded model. Each piece becomes a
// node translated by its local offset; pieces without faces become empty
// nodes. Two marker nodes carry the collision radius and height.
func ToGLTF(model *formats.S3O, opts Options) (*gltf.Document, error) {
	if model == nil || model.Root == nil {
		return nil, fmt.Errorf("export: model has no root piece")
	}
	name := opts.Name
	if name == "" {
		name = model.Root.Name
	}

	scene := uint32(0)
	b := &builder{
		doc: &gltf.Document{
			Asset:   gltf.Asset{Version: GLTFVersion, Generator: "s3otool"},
			Scene:   &scene,
			Scenes:  []*gltf.Scene{{Name: name}},
			Buffers: []*gltf.Buffer{{}},
		},
		buf:   new(bytes.Buffer),
		flipV: ShouldFlipV(opts.Flip, model.Header.Texture1),
	}

	b.addMaterial(name, model.Header, opts.TextureURI)

	root, err := b.addPiece(model.Root)
	if err != nil {
		return nil, err
	}
	b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, root)

	// Marker placement swaps Y and Z of the midpoint.
	mid := model.Header.Mid().XZY()
	b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes,
		b.addMarker(name+".SpringRadius", mid, map[string]interface{}{"radius": model.Header.Radius}),
		b.addMarker(name+".SpringHeight", mid, map[string]interface{}{"height": model.Header.Height}),
	)

	buffer := b.doc.Buffers[0]
	buffer.Data = b.buf.Bytes()
	buffer.ByteLength = uint32(len(buffer.Data))

	logger.Named("export").Debug("built glTF document",
		zap.String("name", name),
		zap.Int("nodes", len(b.doc.Nodes)),
		zap.Int("meshes", len(b.doc.Meshes)),
		zap.Int("bytes", len(buffer.Data)),
		zap.Bool("flip_v", b.flipV))

	return b.doc, nil
}

// addMaterial creates the single model material. texture1 becomes the base
// colour texture. texture2 (Spring's reflection/self-illumination map) has no
// core glTF slot, so it is added as a texture and referenced from the
// material extras.
func (b *builder) addMaterial(name string, h formats.S3OHeader, uri func(string) string) {
	metallic := float32(0)
	mat := &gltf.Material{
		Name: name + ".mat",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  &metallic,
		},
	}

	if h.Texture1 != "" {
		tex := b.addTexture(h.Texture1, uri)
		mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: tex}
	}
	if h.Texture2 != "" {
		tex := b.addTexture(h.Texture2, uri)
		mat.Extras = map[string]interface{}{
			"texture2":      h.Texture2,
			"texture2Index": tex,
		}
	}

	idx := uint32(len(b.doc.Materials))
	b.doc.Materials = append(b.doc.Materials, mat)
	b.material = &idx
}

// addTexture appends an image and a texture sampling it, and returns the
// texture index.
func (b *builder) addTexture(name string, uri func(string) string) uint32 {
	imageURI := name
	if uri != nil {
		imageURI = uri(name)
	}
	img := uint32(len(b.doc.Images))
	b.doc.Images = append(b.doc.Images, &gltf.Image{Name: name, URI: imageURI})
	tex := uint32(len(b.doc.Textures))
	b.doc.Textures = append(b.doc.Textures, &gltf.Texture{Source: &img})
	return tex
}

// addPiece appends the node for p and its subtree and returns p's node index.
func (b *builder) addPiece(p *formats.S3OPiece) (uint32, error) {
	node := &gltf.Node{
		Name:        p.Name,
		Translation: p.LocalOffset.Array(),
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{1, 1, 1},
	}
	idx := uint32(len(b.doc.Nodes))
	b.doc.Nodes = append(b.doc.Nodes, node)

	if !p.IsEmpty() && len(p.Faces) > 0 {
		mesh, err := b.addMesh(p)
		if err != nil {
			return 0, fmt.Errorf("export: piece %q: %w", p.Name, err)
		}
		node.Mesh = &mesh
	}

	for _, child := range p.Children {
		c, err := b.addPiece(child)
		if err != nil {
			return 0, err
		}
		node.Children = append(node.Children, c)
	}
	return idx, nil
}

// addMarker appends an empty node carrying extras and returns its index.
func (b *builder) addMarker(name string, at math.Vec3, extras map[string]interface{}) uint32 {
	idx := uint32(len(b.doc.Nodes))
	b.doc.Nodes = append(b.doc.Nodes, &gltf.Node{
		Name:        name,
		Translation: at.Array(),
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{1, 1, 1},
		Extras:      extras,
	})
	return idx
}

// addMesh writes the vertex streams and triangulated indices of p.
func (b *builder) addMesh(p *formats.S3OPiece) (uint32, error) {
	n := len(p.Vertices)
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	uvs := make([][2]float32, n)

	lo, hi := p.Vertices[0].Position, p.Vertices[0].Position
	for i, v := range p.Vertices {
		positions[i] = v.Position.Array()
		lo, hi = lo.Min(v.Position), hi.Max(v.Position)

		normal := v.Normal.Normalize()
		if normal == (math.Vec3{}) {
			normal = math.Vec3{Y: 1}
		}
		normals[i] = normal.Array()

		uv := v.UV
		if b.flipV {
			uv = uv.FlipV()
		}
		uvs[i] = uv.Array()
	}

	indices := Triangulate(p.Faces)

	posView, err := b.addView(positions)
	if err != nil {
		return 0, err
	}
	normView, err := b.addView(normals)
	if err != nil {
		return 0, err
	}
	uvView, err := b.addView(uvs)
	if err != nil {
		return 0, err
	}
	idxView, err := b.addView(indices)
	if err != nil {
		return 0, err
	}

	posAcc := b.addAccessor(&gltf.Accessor{
		BufferView:    &posView,
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(n),
		Min:           []float32{lo.X, lo.Y, lo.Z},
		Max:           []float32{hi.X, hi.Y, hi.Z},
	})
	normAcc := b.addAccessor(&gltf.Accessor{
		BufferView:    &normView,
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(n),
	})
	uvAcc := b.addAccessor(&gltf.Accessor{
		BufferView:    &uvView,
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec2,
		Count:         uint32(n),
	})
	idxAcc := b.addAccessor(&gltf.Accessor{
		BufferView:    &idxView,
		ComponentType: gltf.ComponentUint,
		Type:          gltf.AccessorScalar,
		Count:         uint32(len(indices)),
	})

	mesh := uint32(len(b.doc.Meshes))
	b.doc.Meshes = append(b.doc.Meshes, &gltf.Mesh{
		Name: p.Name,
		Primitives: []*gltf.Primitive{{
			Indices: &idxAcc,
			Attributes: gltf.Attribute{
				"POSITION":   posAcc,
				"NORMAL":     normAcc,
				"TEXCOORD_0": uvAcc,
			},
			Mode:     gltf.PrimitiveTriangles,
			Material: b.material,
		}},
	})
	return mesh, nil
}

// addView appends data to the shared buffer as a new buffer view.
// Every stream is made of 4-byte components, so views stay aligned.
func (b *builder) addView(data interface{}) (uint32, error) {
	start := b.buf.Len()
	if err := binary.Write(b.buf, binary.LittleEndian, data); err != nil {
		return 0, fmt.Errorf("writing buffer view: %w", err)
	}
	idx := uint32(len(b.doc.BufferViews))
	b.doc.BufferViews = append(b.doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(start),
		ByteLength: uint32(b.buf.Len() - start),
	})
	return idx, nil
}

func (b *builder) addAccessor(acc *gltf.Accessor) uint32 {
	idx := uint32(len(b.doc.Accessors))
	b.doc.Accessors = append(b.doc.Accessors, acc)
	return idx
}

// Triangulate flattens faces into a triangle index list. Quads (a, b, c, d)
// are split into (a, b, c) and (a, c, d).
func Triangulate(faces []formats.S3OFace) []uint32 {
	out := make([]uint32, 0, len(faces)*6)
	for _, f := range faces {
		switch len(f) {
		case 3:
			out = append(out, f[0], f[1], f[2])
		case 4:
			out = append(out, f[0], f[1], f[2], f[0], f[2], f[3])
		}
	}
	return out
}

// Write encodes doc as .gltf JSON, or as .glb when asBinary is set. JSON
// output embeds the buffer as a base64 data URI.
func Write(w io.Writer, doc *gltf.Document, asBinary bool) error {
	if !asBinary {
		for _, buffer := range doc.Buffers {
			if buffer.URI == "" && len(buffer.Data) > 0 {
				buffer.EmbeddedResource()
			}
		}
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = asBinary
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding glTF: %w", err)
	}
	return nil
}

// WriteFile writes doc to path; the format follows asBinary.
func WriteFile(path string, doc *gltf.Document, asBinary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, doc, asBinary); err != nil {
		return err
	}
	return f.Close()
}
