package domain

import "fmt"

// DefaultTagLength is the authentication tag length in bytes used when an
// algorithm descriptor does not shorten the tag. Both AEAD families the
// element implements share the same default.
const DefaultTagLength = 16

// Family identifies the cryptographic family an algorithm descriptor names.
//
// Only the two AEAD families are operable. Other values exist so requests
// for them parse cleanly and fail as unsupported instead of as malformed.
type Family string

const (
	// FamilyAeadCCM is AES in CCM mode.
	FamilyAeadCCM Family = "aead-ccm"

	// FamilyAeadGCM is AES in GCM mode.
	FamilyAeadGCM Family = "aead-gcm"

	// FamilyCipherCTR is an unauthenticated stream mode. Recognized, never
	// operable on the AEAD path.
	FamilyCipherCTR Family = "cipher-ctr"

	// FamilyCipherCBC is an unauthenticated block mode. Recognized, never
	// operable on the AEAD path.
	FamilyCipherCBC Family = "cipher-cbc"
)

// Algorithm describes the algorithm a single request names.
//
// TagLength zero selects the family default; a non-zero value is a
// shortened-tag variant carrying exactly the caller's choice. The value is
// immutable and scoped to one operation.
type Algorithm struct {
	Family    Family `json:"family"`
	TagLength int    `json:"tag_length,omitempty"`
}

// IsAead reports whether the descriptor names one of the AEAD families.
func (a Algorithm) IsAead() bool {
	return a.Family == FamilyAeadCCM || a.Family == FamilyAeadGCM
}

// IsCCM reports whether the descriptor names the CCM family, under either
// the default or a shortened tag. Every other AEAD descriptor selects GCM.
func (a Algorithm) IsCCM() bool {
	return a.Family == FamilyAeadCCM
}

// ResolveTagLength returns the tag length in bytes this descriptor commits
// both the encrypt and the decrypt path to.
//
// The caller's shortened value is passed through unchecked: range and
// parity constraints differ per construction and are owned by the device
// layer. Non-AEAD families resolve to ErrAlgorithmUnsupported.
func (a Algorithm) ResolveTagLength() (int, error) {
	if !a.IsAead() {
		return 0, ErrAlgorithmUnsupported.WithDetails(string(a.Family))
	}
	if a.TagLength == 0 {
		return DefaultTagLength, nil
	}
	return a.TagLength, nil
}

// String renders the descriptor for logs and error details.
func (a Algorithm) String() string {
	if a.TagLength == 0 {
		return string(a.Family)
	}
	return fmt.Sprintf("%s(tag=%d)", a.Family, a.TagLength)
}
