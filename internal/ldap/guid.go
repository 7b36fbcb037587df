package ldap

import (
	"fmt"

	"github.com/google/uuid"
)

// GUIDBytesLength is the size of a binary objectGUID value.
const GUIDBytesLength = 16

// DecodeGUID converts an Active Directory objectGUID value to its canonical
// string form. Active Directory stores the first three GUID fields
// little-endian, unlike the RFC 4122 byte order uuid expects.
func DecodeGUID(raw []byte) (string, error) {
	if len(raw) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(raw))
	}

	b := make([]byte, GUIDBytesLength)
	// Data1 (bytes 0-3), Data2 (4-5) and Data3 (6-7) are little-endian
	b[0], b[1], b[2], b[3] = raw[3], raw[2], raw[1], raw[0]
	b[4], b[5] = raw[5], raw[4]
	b[6], b[7] = raw[7], raw[6]
	// Data4 (bytes 8-15) keeps its order
	copy(b[8:], raw[8:])

	id, err := uuid.FromBytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode GUID: %w", err)
	}
	return id.String(), nil
}

// EncodeGUID is the inverse of DecodeGUID.
func EncodeGUID(s string) ([]byte, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	b := id[:]
	return []byte{
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15],
	}, nil
}
