package domain

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"
)

// Application credential constants.
const (
	// AppIDPrefix is the prefix for application IDs (public, uses hyphen).
	AppIDPrefix = "sva-"

	// AppSecretPrefix is the prefix for application secrets (sensitive, uses underscore).
	AppSecretPrefix = "svs_"
)

// Argon2 parameters for application secret hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// Role defines the permission level of an application.
type Role string

const (
	// RoleClient can run AEAD operations and manage keys in its own
	// namespace.
	RoleClient Role = "client"

	// RoleAdmin additionally manages applications, backups and the audit
	// trail.
	RoleAdmin Role = "admin"
)

// ValidRoles returns all valid roles.
func ValidRoles() []Role {
	return []Role{RoleClient, RoleAdmin}
}

// IsValidRole checks if a string is a valid role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleClient, RoleAdmin:
		return true
	}
	return false
}

// AppStatus defines the status of an application.
type AppStatus string

const (
	// AppStatusActive indicates the application can authenticate.
	AppStatusActive AppStatus = "active"

	// AppStatusDisabled indicates the application has been disabled.
	AppStatusDisabled AppStatus = "disabled"
)

// IsValidAppStatus checks if a string is a valid application status.
func IsValidAppStatus(s string) bool {
	switch AppStatus(s) {
	case AppStatusActive, AppStatusDisabled:
		return true
	}
	return false
}

// Permission represents an action that can be performed.
type Permission string

// Permission constants for all operations.
const (
	// AEAD permissions
	PermAeadEncrypt Permission = "aead.encrypt"
	PermAeadDecrypt Permission = "aead.decrypt"

	// Key permissions (caller's own namespace)
	PermKeyCreate  Permission = "key.create"
	PermKeyRead    Permission = "key.read"
	PermKeyList    Permission = "key.list"
	PermKeyDestroy Permission = "key.destroy"

	// Application permissions (admin only)
	PermAppRegister Permission = "app.register"
	PermAppRead     Permission = "app.read"
	PermAppList     Permission = "app.list"
	PermAppDisable  Permission = "app.disable"
	PermAppEnable   Permission = "app.enable"
	PermAppRotate   Permission = "app.rotate"

	// System permissions (admin only)
	PermSystemStatus Permission = "system.status"
	PermSystemBackup Permission = "system.backup"
	PermSystemAudit  Permission = "system.audit"

	// Metrics permissions
	PermMetricsRead Permission = "metrics.read"
)

// rolePermissions defines the permissions granted to each role.
var rolePermissions = map[Role][]Permission{
	RoleClient: {
		PermAeadEncrypt,
		PermAeadDecrypt,
		PermKeyCreate,
		PermKeyRead,
		PermKeyList,
		PermKeyDestroy,
		PermMetricsRead,
	},
	RoleAdmin: {
		PermAeadEncrypt,
		PermAeadDecrypt,
		PermKeyCreate,
		PermKeyRead,
		PermKeyList,
		PermKeyDestroy,
		PermAppRegister,
		PermAppRead,
		PermAppList,
		PermAppDisable,
		PermAppEnable,
		PermAppRotate,
		PermSystemStatus,
		PermSystemBackup,
		PermSystemAudit,
		PermMetricsRead,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// GetPermissions returns all permissions for a role.
func GetPermissions(role Role) []Permission {
	if permissions, ok := rolePermissions[role]; ok {
		result := make([]Permission, len(permissions))
		copy(result, permissions)
		return result
	}
	return nil
}

// IsValidAppID checks if a string is a valid application ID format.
// It normalizes the ID to lowercase before validation.
func IsValidAppID(id string) bool {
	id = strings.ToLower(id)

	if !strings.HasPrefix(id, AppIDPrefix) {
		return false
	}

	// sva- (4) + ULID (26) = 30 characters
	if len(id) != 30 {
		return false
	}

	ulidPart := strings.ToUpper(id[len(AppIDPrefix):])
	_, err := ulid.Parse(ulidPart)
	return err == nil
}

// NormalizeAppID normalizes an application ID to lowercase.
// Returns empty string if the ID is invalid.
func NormalizeAppID(id string) string {
	normalized := strings.ToLower(id)
	if !IsValidAppID(normalized) {
		return ""
	}
	return normalized
}

// MaskAppSecret masks an application secret for safe logging.
func MaskAppSecret(secret string) string {
	if len(secret) < 10 {
		return "***REDACTED***"
	}
	if strings.HasPrefix(secret, AppSecretPrefix) {
		prefix := secret[:4]
		body := secret[4:]
		if len(body) > 6 {
			return prefix + body[:3] + "..." + body[len(body)-3:]
		}
		return prefix + "***"
	}
	return "***REDACTED***"
}

// Application represents a registered client of the vault. Every key the
// vault holds is namespaced under exactly one application; the application
// ID is the first element of each key triple.
type Application struct {
	// ID is the unique identifier (public).
	// Format: sva-{ulid_lowercase}, 30 characters total.
	ID string `json:"id"`

	// Name is the human-readable name for the application.
	Name string `json:"name"`

	// SecretHash is the Argon2id hash of the secret (never exposed).
	SecretHash string `json:"-"`

	// OldSecretHash stores the previous secret hash during rotation.
	OldSecretHash string `json:"-"`

	// GracePeriodEnd is when the old secret expires (Unix MS), 0 = no rotation.
	GracePeriodEnd int64 `json:"grace_period_end,omitempty"`

	// Role defines the permission level.
	Role Role `json:"role"`

	// Allowlist contains IP/CIDR allowlist entries.
	// Empty list means no IP restriction.
	Allowlist []string `json:"allowlist,omitempty"`

	// RateLimit is the QPS limit (1 - 1,000,000).
	RateLimit int `json:"rate_limit"`

	// ExpiresAt is the absolute expiration time (Unix MS), 0 = never expires.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// Status is the application status (active/disabled).
	Status AppStatus `json:"status"`

	// Description is an optional description.
	Description string `json:"description,omitempty"`

	// CreatedAt is the creation timestamp (Unix MS).
	CreatedAt int64 `json:"created_at"`

	// CreatedBy is the application ID of the creator or "system".
	CreatedBy string `json:"created_by"`

	// LastUsed is the last authentication timestamp (Unix MS).
	LastUsed int64 `json:"last_used,omitempty"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// Application constraints.
const (
	MaxAllowlistEntries  = 100
	MaxDescriptionLength = 256
	MinRateLimit         = 1
	MaxRateLimit         = 1000000
	SecretLength         = 32 // 256 bits
	GracePeriodDuration  = 24 * time.Hour
)

// NewApplication creates a new Application with a generated ID and secret.
// Returns the application and the plaintext secret (only returned once).
func NewApplication(name string, role Role) (*Application, string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(timeNow()), entropy)
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}
	appID := AppIDPrefix + strings.ToLower(id.String())

	secretBytes := make([]byte, SecretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}
	plainSecret := AppSecretPrefix + base64.RawURLEncoding.EncodeToString(secretBytes)

	secretHash, err := hashSecret(plainSecret)
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}

	now := currentTimeMillis()
	return &Application{
		ID:         appID,
		Name:       name,
		SecretHash: secretHash,
		Role:       role,
		Status:     AppStatusActive,
		RateLimit:  1000, // Default QPS
		CreatedAt:  now,
		Version:    1,
	}, plainSecret, nil
}

// hashSecret computes an Argon2id hash of the secret.
// Returns the hash in the format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func hashSecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(hash)

	return "$argon2id$v=19$m=16384,t=2,p=2$" + saltB64 + "$" + hashB64, nil
}

// IsExpired returns true if the application credential has expired.
func (a *Application) IsExpired() bool {
	if a.ExpiresAt == 0 {
		return false
	}
	return currentTimeMillis() > a.ExpiresAt
}

// IsActive returns true if the application is active and not expired.
func (a *Application) IsActive() bool {
	return a.Status == AppStatusActive && !a.IsExpired()
}

// IsInGracePeriod returns true if we're in the secret rotation grace period.
func (a *Application) IsInGracePeriod() bool {
	if a.GracePeriodEnd == 0 || a.OldSecretHash == "" {
		return false
	}
	return currentTimeMillis() < a.GracePeriodEnd
}

// Touch updates the LastUsed timestamp.
func (a *Application) Touch() {
	a.LastUsed = currentTimeMillis()
}

// IncrVersion increments the version number for optimistic locking.
func (a *Application) IncrVersion() {
	a.Version++
}

// RotateSecret generates a new secret and sets up a grace period for the
// old one. Returns the new plaintext secret.
func (a *Application) RotateSecret() (string, error) {
	secretBytes := make([]byte, SecretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	newSecret := AppSecretPrefix + base64.RawURLEncoding.EncodeToString(secretBytes)

	newHash, err := hashSecret(newSecret)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}

	a.OldSecretHash = a.SecretHash
	a.SecretHash = newHash
	a.GracePeriodEnd = currentTimeMillis() + GracePeriodDuration.Milliseconds()
	a.IncrVersion()

	return newSecret, nil
}

// CreatedAtTime returns CreatedAt as time.Time.
func (a *Application) CreatedAtTime() time.Time {
	return time.UnixMilli(a.CreatedAt)
}

// LastUsedAtTime returns LastUsed as time.Time.
func (a *Application) LastUsedAtTime() time.Time {
	if a.LastUsed == 0 {
		return time.Time{}
	}
	return time.UnixMilli(a.LastUsed)
}

// Validate validates the application fields.
func (a *Application) Validate() error {
	var violations []string

	if a.ID == "" {
		violations = append(violations, "id is required")
	} else if !IsValidAppID(a.ID) {
		violations = append(violations, "id format invalid")
	}

	if a.SecretHash == "" {
		violations = append(violations, "secret_hash is required")
	}

	if !IsValidRole(string(a.Role)) {
		violations = append(violations, "invalid role")
	}

	if !IsValidAppStatus(string(a.Status)) {
		violations = append(violations, "invalid status")
	}

	if len(a.Allowlist) > MaxAllowlistEntries {
		violations = append(violations, "allowlist exceeds 100 entries")
	}

	if a.RateLimit < MinRateLimit || a.RateLimit > MaxRateLimit {
		violations = append(violations, "rate_limit must be between 1 and 1,000,000")
	}

	if len(a.Description) > MaxDescriptionLength {
		violations = append(violations, "description exceeds 256 characters")
	}

	if len(violations) > 0 {
		return ErrApplicationValidation.WithDetails(strings.Join(violations, "; "))
	}

	return nil
}

// Clone creates a deep copy of the application.
func (a *Application) Clone() *Application {
	clone := *a
	if a.Allowlist != nil {
		clone.Allowlist = make([]string, len(a.Allowlist))
		copy(clone.Allowlist, a.Allowlist)
	}
	return &clone
}

// currentTimeMillis returns the current Unix timestamp in milliseconds.
// This is a package-level function to enable testing with mock time.
var currentTimeMillis = func() int64 {
	return timeNow().UnixMilli()
}
