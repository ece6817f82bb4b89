package device

import (
	"crypto/cipher"
	"fmt"

	"github.com/pion/dtls/v3/pkg/crypto/ccm"
)

// CCM parameter window. Nonce lengths follow RFC 3610: the counter block
// reserves 15-nonceLen bytes for the message length, so 7..13 are the only
// legal sizes. Tags are even sizes from 4 to 16.
const (
	ccmMinNonceLength = 7
	ccmMaxNonceLength = 13
	ccmMinTagLength   = 4
	ccmMaxTagLength   = 16
)

// checkCCMParams validates the nonce and tag sizes against the CCM window.
func checkCCMParams(nonceLen, tagLen int) error {
	if nonceLen < ccmMinNonceLength || nonceLen > ccmMaxNonceLength {
		return fmt.Errorf("%w: ccm nonce must be %d..%d bytes, got %d",
			ErrNonceLength, ccmMinNonceLength, ccmMaxNonceLength, nonceLen)
	}
	if tagLen < ccmMinTagLength || tagLen > ccmMaxTagLength || tagLen%2 != 0 {
		return fmt.Errorf("%w: ccm tag must be an even size %d..%d bytes, got %d",
			ErrTagLength, ccmMinTagLength, ccmMaxTagLength, tagLen)
	}
	return nil
}

// newCCM builds an AES-CCM AEAD over block for the given sizes.
func newCCM(block cipher.Block, nonceLen, tagLen int) (cipher.AEAD, error) {
	if err := checkCCMParams(nonceLen, tagLen); err != nil {
		return nil, err
	}
	aead, err := ccm.NewCCM(block, tagLen, nonceLen)
	if err != nil {
		return nil, fmt.Errorf("device: ccm setup: %w", err)
	}
	return aead, nil
}
