// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrOTPMismatch     = errors.New("otp mismatch")
)

// OTPLength is the number of characters in a one-time passcode.
const OTPLength = 15

const otpAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateOTPSecret creates a 15-character alphanumeric one-time passcode
// from a cryptographically secure source. The caller must hash it before
// storage; the plaintext only ever travels out of band to the voter.
func GenerateOTPSecret() (string, error) {
	var sb strings.Builder
	sb.Grow(OTPLength)
	max := big.NewInt(int64(len(otpAlphabet)))
	for i := 0; i < OTPLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate OTP secret: %w", err)
		}
		sb.WriteByte(otpAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// HashOTP produces a salted one-way hash of an OTP secret suitable for
// storage. bcrypt embeds its own per-hash salt.
func HashOTP(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash OTP: %w", err)
	}
	return string(h), nil
}

// CheckOTP verifies a candidate secret against a stored hash. The bcrypt
// comparison does not leak timing about how close the candidate is.
func CheckOTP(hash, candidate string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)); err != nil {
		return ErrOTPMismatch
	}
	return nil
}

// GenerateAdminKey creates an HMAC-based admin key for an election
// This is deterministic and verifiable
func GenerateAdminKey(electionID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(electionID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key is valid for the election
func ValidateAdminKey(electionID, adminKey, salt string) error {
	expected := GenerateAdminKey(electionID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// ObfuscateChoice produces the opaque tag stored on a vote row in place of
// the readable candidate reference. It is a keyed one-way tag, not
// encryption: the tally reads the candidate column inside the same row, and
// nothing ever needs to reverse the tag.
func ObfuscateChoice(candidateID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(candidateID))
	sum := h.Sum(nil)
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum[:16]), "=")
}
