package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
)

// Key derivation errors.
var (
	ErrPassphraseTooWeak = errors.New("backup: passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("backup: decryption failed, wrong passphrase or corrupted data")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	// Argon2id parameters for deriving the master key from a passphrase.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// fileKeyInfo separates the file key from any other key derived from the
// same passphrase.
const fileKeyInfo = "sevault backup file key v1"

// GenerateSalt returns a fresh random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("backup: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveFileKey derives the backup file key from a passphrase and salt.
// Argon2id stretches the passphrase into a master key; HKDF expands the
// master key into the file key. The same passphrase and salt always yield
// the same file key, which is what lets Restore reproduce it from the
// header.
func DeriveFileKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("backup: salt must be %d bytes, got %d", SaltLength, len(salt))
	}

	master := argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, atrest.KeySize)
	defer ZeroKey(master)

	reader := hkdf.New(sha256.New, master, nil, []byte(fileKeyInfo))
	key := make([]byte, atrest.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("backup: derive file key: %w", err)
	}
	return key, nil
}

// NewCipher builds the AES-256-GCM cipher sealing a backup file.
func NewCipher(passphrase, salt []byte) (atrest.Cipher, error) {
	key, err := DeriveFileKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer ZeroKey(key)

	return atrest.New(key, atrest.CipherAESGCM)
}

// ZeroKey zeros a key in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
