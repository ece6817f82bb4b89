package domain

import (
	"strings"
	"time"
)

// timeNow is overridable in tests.
var timeNow = time.Now

// Provider labels the backend a key lives on. A deployment may attach more
// than one element type; the label keeps their key namespaces apart.
type Provider string

// ProviderSoftElement is the bundled software secure element.
const ProviderSoftElement Provider = "soft-element"

// KeyType identifies the kind of key material a slot holds.
type KeyType string

// KeyTypeAES is symmetric AES key material, the only type the AEAD path uses.
const KeyTypeAES KeyType = "aes"

// KeyName length bounds, enforced at creation.
const (
	MinKeyNameLength = 1
	MaxKeyNameLength = 128
)

// KeyTriple identifies one key: the owning application, the provider label
// and the caller-chosen name. The triple is the only lookup path into the
// key-info store; raw slot numbers never appear in the caller contract.
type KeyTriple struct {
	App      string   `json:"app"`
	Provider Provider `json:"provider"`
	Name     string   `json:"name"`
}

// NewKeyTriple builds a triple for the given application and key name on
// the bundled provider.
func NewKeyTriple(app, name string) KeyTriple {
	return KeyTriple{App: app, Provider: ProviderSoftElement, Name: name}
}

// String renders the triple in its canonical store-key form.
func (t KeyTriple) String() string {
	return t.App + "/" + string(t.Provider) + "/" + t.Name
}

// UsageFlags are the operations a key's policy allows.
type UsageFlags struct {
	Encrypt bool `json:"encrypt"`
	Decrypt bool `json:"decrypt"`
}

// KeyAttributes is the policy attached to a key at creation time. The
// element enforces nothing about usage; every policy decision happens here
// before a slot is touched.
type KeyAttributes struct {
	Type      KeyType    `json:"type"`
	Bits      int        `json:"bits"`
	Usage     UsageFlags `json:"usage"`
	Algorithm Family     `json:"algorithm"`
}

// PermitsEncrypt checks the policy against an encrypt request for the given
// algorithm descriptor.
func (a KeyAttributes) PermitsEncrypt(alg Algorithm) error {
	if !a.Usage.Encrypt {
		return ErrKeyNotPermitted.WithDetails("key usage does not allow encrypt")
	}
	return a.permitsAlgorithm(alg)
}

// PermitsDecrypt checks the policy against a decrypt request for the given
// algorithm descriptor.
func (a KeyAttributes) PermitsDecrypt(alg Algorithm) error {
	if !a.Usage.Decrypt {
		return ErrKeyNotPermitted.WithDetails("key usage does not allow decrypt")
	}
	return a.permitsAlgorithm(alg)
}

// permitsAlgorithm confirms the request's family matches the family the key
// was created for. Tag length is not a policy dimension: any tag variant of
// the permitted family is allowed.
func (a KeyAttributes) permitsAlgorithm(alg Algorithm) error {
	if alg.Family != a.Algorithm {
		return ErrKeyNotPermitted.WithDetails(
			"key permits " + string(a.Algorithm) + ", request names " + string(alg.Family))
	}
	return nil
}

// Validate checks the attributes describe a key the element can hold.
func (a KeyAttributes) Validate() error {
	var violations []string

	if a.Type != KeyTypeAES {
		violations = append(violations, "type must be aes")
	}
	if a.Bits != 128 && a.Bits != 256 {
		violations = append(violations, "bits must be 128 or 256")
	}
	if !a.Usage.Encrypt && !a.Usage.Decrypt {
		violations = append(violations, "usage must allow encrypt, decrypt or both")
	}
	if a.Algorithm != FamilyAeadCCM && a.Algorithm != FamilyAeadGCM {
		violations = append(violations, "algorithm must be aead-ccm or aead-gcm")
	}

	if len(violations) > 0 {
		return ErrKeyValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// KeyInfo is the stored record for one provisioned key. Slot is the element
// key handle the triple resolves to; key material itself never leaves the
// element.
type KeyInfo struct {
	Triple     KeyTriple     `json:"triple"`
	Slot       uint8         `json:"slot"`
	Attributes KeyAttributes `json:"attributes"`

	// CreatedAt is Unix milliseconds.
	CreatedAt int64 `json:"created_at"`
}

// NewKeyInfo builds a record for a freshly provisioned key.
func NewKeyInfo(triple KeyTriple, slot uint8, attrs KeyAttributes) *KeyInfo {
	return &KeyInfo{
		Triple:     triple,
		Slot:       slot,
		Attributes: attrs,
		CreatedAt:  timeNow().UnixMilli(),
	}
}

// Validate checks the record is storable.
func (k *KeyInfo) Validate() error {
	var violations []string

	if k.Triple.App == "" {
		violations = append(violations, "app is required")
	}
	if k.Triple.Provider == "" {
		violations = append(violations, "provider is required")
	}
	if len(k.Triple.Name) < MinKeyNameLength || len(k.Triple.Name) > MaxKeyNameLength {
		violations = append(violations, "name length must be 1..128")
	}
	if strings.ContainsAny(k.Triple.Name, "/\x00") {
		violations = append(violations, "name must not contain '/' or NUL")
	}

	if err := k.Attributes.Validate(); err != nil {
		if de, ok := err.(*DomainError); ok {
			violations = append(violations, de.Details)
		} else {
			violations = append(violations, err.Error())
		}
	}

	if len(violations) > 0 {
		return ErrKeyValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone returns a deep copy so stores never hand out aliased records.
func (k *KeyInfo) Clone() *KeyInfo {
	if k == nil {
		return nil
	}
	cp := *k
	return &cp
}

// CreatedAtTime returns CreatedAt as time.Time.
func (k *KeyInfo) CreatedAtTime() time.Time {
	return time.UnixMilli(k.CreatedAt)
}
