package domain

import (
	"encoding/hex"
	"strings"
)

const (
	// CodeWidth is the number of characters used to encode one sibling index.
	CodeWidth = 2
	// MaxSiblings caps the number of direct children of a task.
	MaxSiblings = 256
)

// Path is a materialized task path: the sibling indices of every ancestor,
// root first. It is serialized to fixed-width uppercase hex only at the
// store boundary, so lexical order of the encoded form matches index order.
type Path []byte

// EncodeNumber maps a sibling index to its two-character code.
func EncodeNumber(number int) (string, error) {
	if number < 0 || number >= MaxSiblings {
		return "", FormatError("sibling index %d out of range [0, %d)", number, MaxSiblings)
	}
	return strings.ToUpper(hex.EncodeToString([]byte{byte(number)})), nil
}

// DecodeNumber is the inverse of EncodeNumber.
func DecodeNumber(code string) (int, error) {
	if len(code) != CodeWidth {
		return 0, FormatError("sibling code %q must be %d characters", code, CodeWidth)
	}
	b, err := hex.DecodeString(code)
	if err != nil {
		return 0, WrapError(ErrCodeFormat, "invalid sibling code "+code, err)
	}
	return int(b[0]), nil
}

// ParsePath decodes a stored path string.
func ParsePath(s string) (Path, error) {
	if len(s)%CodeWidth != 0 {
		return nil, FormatError("path %q has odd length %d", s, len(s))
	}
	p := make(Path, 0, len(s)/CodeWidth)
	for i := 0; i < len(s); i += CodeWidth {
		n, err := DecodeNumber(s[i : i+CodeWidth])
		if err != nil {
			return nil, err
		}
		p = append(p, byte(n))
	}
	return p, nil
}

// MustParsePath panics on malformed input; meant for literals and tests.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the storage encoding of the path.
func (p Path) String() string {
	return strings.ToUpper(hex.EncodeToString(p))
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := ParsePath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Depth is the number of segments.
func (p Path) Depth() int {
	return len(p)
}

// Concat returns a new path with number appended. The receiver is never aliased.
func (p Path) Concat(number int) (Path, error) {
	if number < 0 || number >= MaxSiblings {
		return nil, FormatError("sibling index %d out of range [0, %d)", number, MaxSiblings)
	}
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, byte(number)), nil
}

// Parent splits off the last segment. ok is false for the empty path.
func (p Path) Parent() (parent Path, last int, ok bool) {
	if len(p) == 0 {
		return nil, 0, false
	}
	return p.Clone()[:len(p)-1], int(p[len(p)-1]), true
}

// HasPrefix reports whether prefix is an ancestor path of p, or p itself.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal compares two paths segment by segment.
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// ReplacePrefix swaps oldPrefix for newPrefix. p must start with oldPrefix.
func (p Path) ReplacePrefix(oldPrefix, newPrefix Path) Path {
	out := make(Path, 0, len(newPrefix)+len(p)-len(oldPrefix))
	out = append(out, newPrefix...)
	return append(out, p[len(oldPrefix):]...)
}

// Clone returns an independent copy.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Ancestors returns the full paths of every ancestor, root first, excluding p.
func (p Path) Ancestors() []Path {
	out := make([]Path, 0, len(p))
	for i := 1; i < len(p); i++ {
		out = append(out, p[:i].Clone())
	}
	return out
}
