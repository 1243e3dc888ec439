// S3O (Spring unit model) format parser for 3D models.

package formats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Faultbox/spring-s3o/pkg/encoding"
	"github.com/Faultbox/spring-s3o/pkg/math"
)

// S3O format errors.
var (
	ErrInvalidS3OMagic          = errors.New("invalid S3O magic: expected 'Spring unit'")
	ErrUnsupportedS3OVersion    = errors.New("unsupported S3O version")
	ErrTruncatedS3OData         = errors.New("truncated S3O data")
	ErrUnsupportedPrimitiveType = errors.New("unsupported S3O primitive type")
	ErrUnknownPrimitiveType     = errors.New("unknown S3O primitive type")
	ErrMalformedPrimitiveTable  = errors.New("malformed S3O primitive table")
	ErrVertexIndexOutOfRange    = errors.New("S3O face index out of range")
	ErrCyclicPieceGraph         = errors.New("cyclic S3O piece graph")
	ErrPieceTreeTooDeep         = errors.New("S3O piece tree too deep")
)

// S3OMagic is the header tag of every S3O file (stored null-padded to 12 bytes).
const S3OMagic = "Spring unit"

// Fixed record sizes in bytes.
const (
	s3oHeaderSize = 52 // magic[12] + version + 5 floats + 4 offsets
	s3oPieceSize  = 52 // 10 uint32 + 3 floats
	s3oVertexSize = 32 // 8 floats
	s3oMagicSize  = 12
)

// DefaultS3OMaxDepth bounds piece tree recursion.
const DefaultS3OMaxDepth = 256

// S3OPrimitiveType describes how a piece's index table groups into faces.
type S3OPrimitiveType uint32

const (
	S3OTriangles      S3OPrimitiveType = 0 // 3 indices per face
	S3OTriangleStrips S3OPrimitiveType = 1 // recognized, never decoded
	S3OQuads          S3OPrimitiveType = 2 // 4 indices per face
)

// String returns a human-readable primitive type name.
func (p S3OPrimitiveType) String() string {
	switch p {
	case S3OTriangles:
		return "Triangles"
	case S3OTriangleStrips:
		return "TriangleStrips"
	case S3OQuads:
		return "Quads"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(p))
	}
}

// IndicesPerFace returns 3 for triangles, 4 for quads and 0 otherwise.
func (p S3OPrimitiveType) IndicesPerFace() int {
	switch p {
	case S3OTriangles:
		return 3
	case S3OQuads:
		return 4
	default:
		return 0
	}
}

// S3OHeader is the fixed 52-byte file header with its texture names resolved.
type S3OHeader struct {
	Magic   string // Trimmed magic tag
	Version uint32 // Always 0

	Radius float32 // Collision sphere radius
	Height float32 // Object height
	MidX   float32 // Origin offset, negated from the stored value
	MidY   float32
	MidZ   float32

	RootPieceOffset     uint32
	CollisionDataOffset uint32 // 0 = no collision data
	Texture1Offset      uint32 // 0 = absent
	Texture2Offset      uint32 // 0 = absent

	Texture1 string // Colour/team texture file name
	Texture2 string // Other (reflection/specular) texture file name
}

// Mid returns the model midpoint in file coordinates.
func (h S3OHeader) Mid() math.Vec3 {
	return math.Vec3{X: h.MidX, Y: h.MidY, Z: h.MidZ}
}

// S3OVertex is one 32-byte vertex record.
type S3OVertex struct {
	Position math.Vec3
	Normal   math.Vec3 // Not normalized
	UV       math.Vec2 // File-native, no vertical flip
}

// S3OFace holds 3 (triangle) or 4 (quad) indices into the piece's vertices.
type S3OFace []uint32

// S3OPiece is one node of the model hierarchy.
type S3OPiece struct {
	Name        string
	Vertices    []S3OVertex
	Faces       []S3OFace
	LocalOffset math.Vec3   // Translation relative to the parent piece
	Children    []*S3OPiece // File order

	Index       int // Position in S3O.Pieces (depth-first)
	ParentIndex int // Index of the parent in S3O.Pieces, -1 for the root

	// Raw record fields
	Offset              uint32
	VertType            uint32
	PrimitiveType       S3OPrimitiveType
	CollisionDataOffset uint32
}

// IsEmpty returns true if the piece carries no geometry (an anchor point).
func (p *S3OPiece) IsEmpty() bool {
	return len(p.Vertices) == 0
}

// S3O represents a parsed S3O model file.
type S3O struct {
	Header S3OHeader
	Root   *S3OPiece
	Pieces []*S3OPiece // Every piece, depth-first, parents before children
}

// S3OOption configures DecodeS3O.
type S3OOption func(*s3oDecoder)

// WithStringPolicy selects how name and texture bytes are decoded.
func WithStringPolicy(policy encoding.StringPolicy) S3OOption {
	return func(d *s3oDecoder) {
		d.policy = policy
	}
}

// WithMaxDepth bounds the depth of the piece tree. Values < 1 keep the default.
func WithMaxDepth(depth int) S3OOption {
	return func(d *s3oDecoder) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// s3oDecoder holds the state of a single decode pass.
type s3oDecoder struct {
	r        *byteReader
	policy   encoding.StringPolicy
	maxDepth int
	visited  map[uint32]struct{} // every piece offset decoded so far
	pieces   []*S3OPiece
}

// DecodeS3O decodes an S3O model from a seekable stream.
// Any failure aborts the decode and no partial model is returned.
func DecodeS3O(rs io.ReadSeeker, opts ...S3OOption) (*S3O, error) {
	d := &s3oDecoder{
		policy:   encoding.StrictASCII,
		maxDepth: DefaultS3OMaxDepth,
		visited:  make(map[uint32]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	r, err := newByteReader(rs, d.policy)
	if err != nil {
		return nil, err
	}
	d.r = r

	header, err := d.decodeHeader()
	if err != nil {
		return nil, err
	}

	root, err := d.decodePiece(header.RootPieceOffset, -1, 1)
	if err != nil {
		return nil, fmt.Errorf("decoding root piece: %w", err)
	}

	return &S3O{
		Header: header,
		Root:   root,
		Pieces: d.pieces,
	}, nil
}

// ParseS3O parses S3O data from a byte slice.
func ParseS3O(data []byte, opts ...S3OOption) (*S3O, error) {
	return DecodeS3O(bytes.NewReader(data), opts...)
}

// ParseS3OFile parses an S3O file from disk. The file is closed on every path.
func ParseS3OFile(path string, opts ...S3OOption) (*S3O, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening S3O file: %w", err)
	}
	defer f.Close()

	return DecodeS3O(f, opts...)
}

// decodeHeader reads and validates the file header, then resolves texture names.
func (d *s3oDecoder) decodeHeader() (S3OHeader, error) {
	var h S3OHeader

	if err := d.r.seek(0); err != nil {
		return h, err
	}
	magic, err := d.r.readExact(int(min(d.r.size, s3oMagicSize)))
	if err != nil {
		return h, err
	}
	h.Magic = encoding.TrimNullString(magic)
	if len(magic) < s3oMagicSize {
		// Too short to hold a header: only a foreign prefix counts as bad magic.
		if strings.HasPrefix(S3OMagic+"\x00", string(magic)) {
			return h, fmt.Errorf("%w: %d byte stream", ErrTruncatedS3OData, len(magic))
		}
		return h, fmt.Errorf("%w: got %q", ErrInvalidS3OMagic, h.Magic)
	}
	if h.Magic != S3OMagic {
		return h, fmt.Errorf("%w: got %q", ErrInvalidS3OMagic, h.Magic)
	}

	buf, err := d.r.readExact(s3oHeaderSize - s3oMagicSize)
	if err != nil {
		return h, err
	}

	h.Version = le32(buf, 0)
	if h.Version != 0 {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedS3OVersion, h.Version)
	}

	h.Radius = lef32(buf, 1)
	h.Height = lef32(buf, 2)
	h.MidX = -lef32(buf, 3)
	h.MidY = lef32(buf, 4)
	h.MidZ = lef32(buf, 5)
	h.RootPieceOffset = le32(buf, 6)
	h.CollisionDataOffset = le32(buf, 7)
	h.Texture1Offset = le32(buf, 8)
	h.Texture2Offset = le32(buf, 9)

	if h.Texture1Offset != 0 {
		if h.Texture1, err = d.r.readCString(h.Texture1Offset); err != nil {
			return h, fmt.Errorf("reading texture1: %w", err)
		}
	}
	if h.Texture2Offset != 0 {
		if h.Texture2, err = d.r.readCString(h.Texture2Offset); err != nil {
			return h, fmt.Errorf("reading texture2: %w", err)
		}
	}

	return h, nil
}

// decodePiece decodes the piece record at offset and, recursively, its children.
func (d *s3oDecoder) decodePiece(offset uint32, parent, depth int) (*S3OPiece, error) {
	if depth > d.maxDepth {
		return nil, fmt.Errorf("%w: more than %d levels", ErrPieceTreeTooDeep, d.maxDepth)
	}
	if _, ok := d.visited[offset]; ok {
		return nil, fmt.Errorf("%w: piece at offset %d referenced twice", ErrCyclicPieceGraph, offset)
	}
	d.visited[offset] = struct{}{}

	if err := d.r.seek(int64(offset)); err != nil {
		return nil, err
	}
	buf, err := d.r.readExact(s3oPieceSize)
	if err != nil {
		return nil, fmt.Errorf("piece at offset %d: %w", offset, err)
	}

	nameOffset := le32(buf, 0)
	numChildren := le32(buf, 1)
	childrenOffset := le32(buf, 2)
	numVerts := le32(buf, 3)
	vertsOffset := le32(buf, 4)
	tableSize := le32(buf, 7)
	tableOffset := le32(buf, 8)

	piece := &S3OPiece{
		Index:               len(d.pieces),
		ParentIndex:         parent,
		Offset:              offset,
		VertType:            le32(buf, 5),
		PrimitiveType:       S3OPrimitiveType(le32(buf, 6)),
		CollisionDataOffset: le32(buf, 9),
		LocalOffset:         math.Vec3{X: lef32(buf, 10), Y: lef32(buf, 11), Z: lef32(buf, 12)},
	}
	d.pieces = append(d.pieces, piece)

	if piece.Name, err = d.r.readCString(nameOffset); err != nil {
		return nil, fmt.Errorf("piece at offset %d name: %w", offset, err)
	}

	if err := checkPrimitiveType(piece.PrimitiveType); err != nil {
		return nil, fmt.Errorf("piece %q: %w", piece.Name, err)
	}

	// Geometry-less pieces are anchors; they keep empty vertex and face lists.
	if numVerts > 0 {
		if !d.r.fits(int64(vertsOffset), numVerts, s3oVertexSize) {
			return nil, fmt.Errorf("piece %q: %w: %d vertices at offset %d", piece.Name, ErrTruncatedS3OData, numVerts, vertsOffset)
		}
		piece.Vertices = make([]S3OVertex, numVerts)
		for i := uint32(0); i < numVerts; i++ {
			v, err := decodeS3OVertex(d.r, int64(vertsOffset)+int64(i)*s3oVertexSize)
			if err != nil {
				return nil, fmt.Errorf("piece %q vertex %d: %w", piece.Name, i, err)
			}
			piece.Vertices[i] = v
		}

		faces, err := decodeS3OPrimitives(d.r, tableOffset, tableSize, piece.PrimitiveType)
		if err != nil {
			return nil, fmt.Errorf("piece %q: %w", piece.Name, err)
		}
		for fi, face := range faces {
			for _, idx := range face {
				if idx >= numVerts {
					return nil, fmt.Errorf("piece %q face %d: %w: index %d, %d vertices",
						piece.Name, fi, ErrVertexIndexOutOfRange, idx, numVerts)
				}
			}
		}
		piece.Faces = faces
	}

	if numChildren == 0 {
		return piece, nil
	}

	if !d.r.fits(int64(childrenOffset), numChildren, 4) {
		return nil, fmt.Errorf("piece %q: %w: %d child offsets at %d", piece.Name, ErrTruncatedS3OData, numChildren, childrenOffset)
	}
	if err := d.r.seek(int64(childrenOffset)); err != nil {
		return nil, err
	}
	piece.Children = make([]*S3OPiece, 0, numChildren)
	for i := uint32(0); i < numChildren; i++ {
		childOffset, err := d.r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("piece %q child offset %d: %w", piece.Name, i, err)
		}
		resume, err := d.r.tell()
		if err != nil {
			return nil, err
		}

		child, err := d.decodePiece(childOffset, piece.Index, depth+1)
		if err != nil {
			return nil, fmt.Errorf("piece %q child %d: %w", piece.Name, i, err)
		}
		piece.Children = append(piece.Children, child)

		if err := d.r.seek(resume); err != nil {
			return nil, err
		}
	}

	return piece, nil
}

// checkPrimitiveType rejects tristrips and values outside the known set.
func checkPrimitiveType(p S3OPrimitiveType) error {
	switch p {
	case S3OTriangles, S3OQuads:
		return nil
	case S3OTriangleStrips:
		return fmt.Errorf("%w: %s", ErrUnsupportedPrimitiveType, p)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPrimitiveType, uint32(p))
	}
}

// decodeS3OVertex reads one vertex record at an absolute offset.
func decodeS3OVertex(r *byteReader, offset int64) (S3OVertex, error) {
	if err := r.seek(offset); err != nil {
		return S3OVertex{}, err
	}
	buf, err := r.readExact(s3oVertexSize)
	if err != nil {
		return S3OVertex{}, err
	}
	return S3OVertex{
		Position: math.Vec3{X: lef32(buf, 0), Y: lef32(buf, 1), Z: lef32(buf, 2)},
		Normal:   math.Vec3{X: lef32(buf, 3), Y: lef32(buf, 4), Z: lef32(buf, 5)},
		UV:       math.Vec2{X: lef32(buf, 6), Y: lef32(buf, 7)},
	}, nil
}

// decodeS3OPrimitives splits a flat index table into faces.
// Indices are not checked against the vertex count here.
func decodeS3OPrimitives(r *byteReader, offset, size uint32, primType S3OPrimitiveType) ([]S3OFace, error) {
	if err := checkPrimitiveType(primType); err != nil {
		return nil, err
	}
	per := uint32(primType.IndicesPerFace())
	if size%per != 0 {
		return nil, fmt.Errorf("%w: %d indices is not a multiple of %d for %s",
			ErrMalformedPrimitiveTable, size, per, primType)
	}
	if size == 0 {
		return nil, nil
	}
	if !r.fits(int64(offset), size, 4) {
		return nil, fmt.Errorf("%w: %d indices at offset %d", ErrTruncatedS3OData, size, offset)
	}

	if err := r.seek(int64(offset)); err != nil {
		return nil, err
	}
	buf, err := r.readExact(int(size) * 4)
	if err != nil {
		return nil, err
	}

	faces := make([]S3OFace, 0, size/per)
	for i := uint32(0); i < size; i += per {
		face := make(S3OFace, per)
		for j := uint32(0); j < per; j++ {
			face[j] = le32(buf, int(i+j))
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// Walk visits every piece depth-first in file order. Returning false from fn
// skips that piece's children.
func (s *S3O) Walk(fn func(piece *S3OPiece, depth int) bool) {
	var visit func(p *S3OPiece, depth int)
	visit = func(p *S3OPiece, depth int) {
		if !fn(p, depth) {
			return
		}
		for _, child := range p.Children {
			visit(child, depth+1)
		}
	}
	if s.Root != nil {
		visit(s.Root, 0)
	}
}

// Parent returns the parent of a piece, or nil for the root.
func (s *S3O) Parent(p *S3OPiece) *S3OPiece {
	if p.ParentIndex < 0 || p.ParentIndex >= len(s.Pieces) {
		return nil
	}
	return s.Pieces[p.ParentIndex]
}

// WorldOffset returns the piece origin in model space by chaining local
// offsets through its ancestors.
func (s *S3O) WorldOffset(p *S3OPiece) math.Vec3 {
	offset := p.LocalOffset
	for parent := s.Parent(p); parent != nil; parent = s.Parent(parent) {
		offset = offset.Add(parent.LocalOffset)
	}
	return offset
}

// PieceCount returns the number of pieces in the model.
func (s *S3O) PieceCount() int {
	return len(s.Pieces)
}

// GetTotalVertexCount returns the total number of vertices across all pieces.
func (s *S3O) GetTotalVertexCount() int {
	total := 0
	for _, p := range s.Pieces {
		total += len(p.Vertices)
	}
	return total
}

// GetTotalFaceCount returns the total number of faces across all pieces.
func (s *S3O) GetTotalFaceCount() int {
	total := 0
	for _, p := range s.Pieces {
		total += len(p.Faces)
	}
	return total
}

// GetPieceByName returns the first piece with the given name, or nil if not found.
func (s *S3O) GetPieceByName(name string) *S3OPiece {
	for _, p := range s.Pieces {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// HasCollisionData returns true if the header points at collision data.
func (s *S3O) HasCollisionData() bool {
	return s.Header.CollisionDataOffset != 0
}

// Bounds returns the model-space bounding box of every vertex. ok is false
// when the model has no geometry.
func (s *S3O) Bounds() (lo, hi math.Vec3, ok bool) {
	for _, p := range s.Pieces {
		if len(p.Vertices) == 0 {
			continue
		}
		origin := s.WorldOffset(p)
		for _, v := range p.Vertices {
			pos := v.Position.Add(origin)
			if !ok {
				lo, hi, ok = pos, pos, true
				continue
			}
			lo = lo.Min(pos)
			hi = hi.Max(pos)
		}
	}
	return lo, hi, ok
}
