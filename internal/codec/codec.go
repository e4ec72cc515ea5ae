// Package codec turns the numeric premium and amount of a position into the
// opaque strings stored in the ledger, and back.
//
// The shipped TagCodec is a reversible text encoding, not encryption. Anything
// satisfying Codec (for example a homomorphic-encryption backend) can replace
// it without touching callers.
package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// Codec encodes and decodes obscured numeric fields.
type Codec interface {
	Encode(value float64) (string, error)
	Decode(ciphertext string) (float64, error)
}

// DefaultTag is the scheme prefix written by TagCodec.
const DefaultTag = "FHE-"

// TagCodec writes Tag followed by the standard base64 encoding of the
// shortest decimal literal of the value.
type TagCodec struct {
	Tag string
}

// New returns a TagCodec using DefaultTag.
func New() *TagCodec {
	return &TagCodec{Tag: DefaultTag}
}

func (c *TagCodec) tag() string {
	if c.Tag == "" {
		return DefaultTag
	}
	return c.Tag
}

// Encode obscures value. NaN and infinities have no numeric literal to
// round-trip and are rejected.
func (c *TagCodec) Encode(value float64) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("codec: encode %v: %w", value, domain.ErrValidation)
	}
	literal := strconv.FormatFloat(value, 'f', -1, 64)
	return c.tag() + base64.StdEncoding.EncodeToString([]byte(literal)), nil
}

// Decode reverses Encode. A missing tag, a payload that is not base64, or a
// payload that is not a finite numeric literal all yield domain.ErrDecode.
func (c *TagCodec) Decode(ciphertext string) (float64, error) {
	tag := c.tag()
	if !strings.HasPrefix(ciphertext, tag) {
		return 0, fmt.Errorf("codec: missing %q tag: %w", tag, domain.ErrDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext[len(tag):])
	if err != nil {
		return 0, fmt.Errorf("codec: payload is not base64: %w: %v", domain.ErrDecode, err)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("codec: payload %q is not a numeric literal: %w", string(raw), domain.ErrDecode)
	}
	return v, nil
}

// Compile-time interface check.
var _ Codec = (*TagCodec)(nil)
