package ldap

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
)

// DecodeSID converts a binary security identifier, as stored in objectSid,
// tokenGroups and sIDHistory, to its S-1-5-21-... string form.
func DecodeSID(raw []byte) (string, error) {
	// revision, sub-authority count, 6-byte authority, 4 bytes per sub-authority
	if len(raw) < 8 {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(raw))
	}
	if want := 8 + 4*int(raw[1]); len(raw) != want {
		return "", fmt.Errorf("invalid binary SID length: expected %d, got %d", want, len(raw))
	}

	sid := objectsid.Decode(raw)
	return sid.String(), nil
}
