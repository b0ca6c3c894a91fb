package fetch

import (
	"fmt"
	"os"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// VerifySignature verifies a detached OpenPGP signature (armored .asc/.sig)
// for a fetched file against a known public key, for source tarballs that
// ship one alongside a published checksum. Nothing in the install pipeline
// calls it: formula.Record carries no signature URL or key, so Fetch's
// checksum comparison is the only integrity check applied to downloads.
func VerifySignature(filePath, signaturePath, armoredPublicKey string) error {
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	sigData, err := os.ReadFile(signaturePath)
	if err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	key, err := crypto.NewKeyFromArmored(armoredPublicKey)
	if err != nil {
		return &zerobrewerr.ErrExtractionError{Archive: filePath, Detail: fmt.Sprintf("invalid signing key: %v", err)}
	}
	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return &zerobrewerr.ErrExtractionError{Archive: filePath, Detail: fmt.Sprintf("invalid key ring: %v", err)}
	}

	message := crypto.NewPlainMessage(fileData)
	signature, err := crypto.NewPGPSignatureFromArmored(string(sigData))
	if err != nil {
		return &zerobrewerr.ErrExtractionError{Archive: filePath, Detail: fmt.Sprintf("invalid signature: %v", err)}
	}

	if err := keyRing.VerifyDetached(message, signature, crypto.GetUnixTime()); err != nil {
		return &zerobrewerr.ErrExtractionError{Archive: filePath, Detail: fmt.Sprintf("signature verification failed: %v", err)}
	}
	return nil
}
