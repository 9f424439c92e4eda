package trace

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID is a 128-bit trace or span identifier.
type ID [16]byte

// NewID generates a new random identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical UUID string form of an identifier.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid trace identifier %q: %w", s, err)
	}
	return ID(u), nil
}

// ParseHex parses a variable-length lowercase hex identifier, as used by
// Jaeger-style headers. Up to 32 hex digits are accepted; shorter values are
// left-padded with zeros into the 128-bit identifier.
func ParseHex(s string) (ID, error) {
	if s == "" || len(s) > 32 {
		return ID{}, fmt.Errorf("invalid hex identifier %q", s)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	buf, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid hex identifier %q: %w", s, err)
	}
	var id ID
	copy(id[16-len(buf):], buf)
	return id, nil
}

// String returns the canonical UUID form of the identifier.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Hex returns the identifier as lowercase hex with leading zeros stripped.
// The zero identifier is rendered as "0".
func (id ID) Hex() string {
	s := strings.TrimLeft(hex.EncodeToString(id[:]), "0")
	if s == "" {
		return "0"
	}
	return s
}

// Lower64 returns the low 64 bits of the identifier, interpreted big-endian.
// Samplers use this form for consistent probabilistic decisions.
func (id ID) Lower64() uint64 {
	return binary.BigEndian.Uint64(id[8:])
}

// IsZero reports whether the identifier is the all-zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}
