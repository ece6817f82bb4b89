package device

import (
	"crypto/cipher"
	"fmt"
)

// GCM parameter window. The element supports two shapes: any nonce length
// from 7 to 13 bytes with the full 16-byte tag, or the standard 12-byte
// nonce with a tag truncated down to 12 bytes. Combining a non-standard
// nonce with a truncated tag is not supported.
const (
	gcmMinNonceLength      = 7
	gcmMaxNonceLength      = 13
	gcmStandardNonceLength = 12
	gcmMinTagLength        = 12
	gcmFullTagLength       = 16
)

// checkGCMParams validates the nonce and tag sizes against the GCM window.
func checkGCMParams(nonceLen, tagLen int) error {
	if nonceLen < gcmMinNonceLength || nonceLen > gcmMaxNonceLength {
		return fmt.Errorf("%w: gcm nonce must be %d..%d bytes, got %d",
			ErrNonceLength, gcmMinNonceLength, gcmMaxNonceLength, nonceLen)
	}
	if tagLen < gcmMinTagLength || tagLen > gcmFullTagLength {
		return fmt.Errorf("%w: gcm tag must be %d..%d bytes, got %d",
			ErrTagLength, gcmMinTagLength, gcmFullTagLength, tagLen)
	}
	if tagLen != gcmFullTagLength && nonceLen != gcmStandardNonceLength {
		return fmt.Errorf("%w: gcm %d-byte tag requires a %d-byte nonce",
			ErrTagLength, tagLen, gcmStandardNonceLength)
	}
	return nil
}

// newGCM builds an AES-GCM AEAD over block for the given sizes.
func newGCM(block cipher.Block, nonceLen, tagLen int) (cipher.AEAD, error) {
	if err := checkGCMParams(nonceLen, tagLen); err != nil {
		return nil, err
	}
	var (
		aead cipher.AEAD
		err  error
	)
	if tagLen == gcmFullTagLength {
		aead, err = cipher.NewGCMWithNonceSize(block, nonceLen)
	} else {
		aead, err = cipher.NewGCMWithTagSize(block, tagLen)
	}
	if err != nil {
		return nil, fmt.Errorf("device: gcm setup: %w", err)
	}
	return aead, nil
}
