package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Faultbox/spring-s3o/pkg/encoding"
)

// cStringChunk is how many bytes readCString pulls per read while scanning for a terminator.
const cStringChunk = 64

// byteReader is a bounds-checked seek/read cursor over an S3O stream.
// All offsets are absolute from the start of the stream.
type byteReader struct {
	rs     io.ReadSeeker
	size   int64
	policy encoding.StringPolicy
}

// newByteReader measures the stream and rewinds it to the start.
func newByteReader(rs io.ReadSeeker, policy encoding.StringPolicy) (*byteReader, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measuring stream: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding stream: %w", err)
	}
	return &byteReader{rs: rs, size: size, policy: policy}, nil
}

// seek moves the cursor to an absolute offset. Seeking to exactly the end is allowed.
func (r *byteReader) seek(offset int64) error {
	if offset < 0 || offset > r.size {
		return fmt.Errorf("%w: offset %d outside stream of %d bytes", ErrTruncatedS3OData, offset, r.size)
	}
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %d: %w", offset, err)
	}
	return nil
}

// tell returns the current absolute cursor position.
func (r *byteReader) tell() (int64, error) {
	return r.rs.Seek(0, io.SeekCurrent)
}

// remaining returns how many bytes lie between the cursor and the end of the stream.
func (r *byteReader) remaining() (int64, error) {
	pos, err := r.tell()
	if err != nil {
		return 0, err
	}
	return r.size - pos, nil
}

// fits reports whether count records of recordSize bytes starting at offset lie inside the stream.
func (r *byteReader) fits(offset int64, count, recordSize uint32) bool {
	return offset >= 0 && offset+int64(count)*int64(recordSize) <= r.size
}

// readExact reads exactly n bytes or fails with ErrTruncatedS3OData.
func (r *byteReader) readExact(n int) ([]byte, error) {
	left, err := r.remaining()
	if err != nil {
		return nil, err
	}
	if int64(n) > left {
		return nil, fmt.Errorf("%w: need %d bytes, %d remain", ErrTruncatedS3OData, n, left)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.rs, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrTruncatedS3OData, err)
		}
		return nil, err
	}
	return buf, nil
}

// readUint32 reads one little-endian uint32 at the cursor.
func (r *byteReader) readUint32() (uint32, error) {
	buf, err := r.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// readCString reads a null-terminated string at an absolute offset.
// End of stream also terminates the string.
func (r *byteReader) readCString(offset uint32) (string, error) {
	if err := r.seek(int64(offset)); err != nil {
		return "", err
	}

	var raw []byte
	chunk := make([]byte, cStringChunk)
	for {
		n, err := r.rs.Read(chunk)
		if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
			raw = append(raw, chunk[:i]...)
			break
		}
		raw = append(raw, chunk[:n]...)
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading string at %d: %w", offset, err)
		}
	}

	s, err := r.policy.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("string at offset %d: %w", offset, err)
	}
	return s, nil
}

// le32 returns the i-th little-endian uint32 of buf.
func le32(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*4:])
}

// lef32 returns the i-th little-endian float32 of buf.
func lef32(buf []byte, i int) float32 {
	return math.Float32frombits(le32(buf, i))
}
