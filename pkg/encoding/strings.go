// Package encoding provides text encoding utilities for Spring model file formats.
package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrInvalidEncoding is returned when a string byte is rejected by the active policy.
var ErrInvalidEncoding = errors.New("invalid string encoding")

// StringPolicy selects how raw string bytes read from a model file are decoded.
type StringPolicy int

const (
	// StrictASCII rejects any byte outside 0-127.
	StrictASCII StringPolicy = iota
	// Windows1252 decodes high bytes as Windows-1252 instead of failing.
	Windows1252
)

// String returns the policy name as used in config files.
func (p StringPolicy) String() string {
	switch p {
	case StrictASCII:
		return "ascii"
	case Windows1252:
		return "windows-1252"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// ParseStringPolicy maps a config name to a StringPolicy.
func ParseStringPolicy(name string) (StringPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ascii", "strict":
		return StrictASCII, nil
	case "windows-1252", "cp1252", "latin1", "lenient":
		return Windows1252, nil
	default:
		return StrictASCII, fmt.Errorf("unknown string policy %q", name)
	}
}

// Decode converts raw bytes (without terminator) to a string under the policy.
func (p StringPolicy) Decode(data []byte) (string, error) {
	for i, b := range data {
		if b < 0x80 {
			continue
		}
		if p != Windows1252 {
			return "", fmt.Errorf("%w: byte 0x%02x at position %d is not ASCII", ErrInvalidEncoding, b, i)
		}
		return Windows1252ToUTF8(data)
	}
	return string(data), nil
}

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
func Windows1252ToUTF8(data []byte) (string, error) {
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return string(result), nil
}

// IsASCII reports whether every byte of data is in the 0-127 range.
func IsASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// TrimNullString removes trailing null bytes and whitespace and converts to string.
func TrimNullString(data []byte) string {
	return strings.TrimSpace(string(TrimNullBytes(data)))
}

// NormalizeName lowercases a file name for case-insensitive lookup.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.ToLower(strings.TrimSpace(name))
}
