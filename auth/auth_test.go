// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateOTPSecret(t *testing.T) {
	otp, err := GenerateOTPSecret()
	if err != nil {
		t.Fatalf("GenerateOTPSecret() error = %v", err)
	}

	if len(otp) != OTPLength {
		t.Errorf("GenerateOTPSecret() length = %d, want %d", len(otp), OTPLength)
	}

	// Should be alphanumeric only
	for _, c := range otp {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			t.Errorf("GenerateOTPSecret() contains non-alphanumeric char: %c", c)
		}
	}

	// Test randomness - should not produce duplicates
	secrets := make(map[string]bool)
	for i := 0; i < 100; i++ {
		otp, err := GenerateOTPSecret()
		if err != nil {
			t.Fatalf("GenerateOTPSecret() error on iteration %d: %v", i, err)
		}
		if secrets[otp] {
			t.Errorf("GenerateOTPSecret() produced duplicate secret: %s", otp)
		}
		secrets[otp] = true
	}
}

func TestHashAndCheckOTP(t *testing.T) {
	otp, err := GenerateOTPSecret()
	if err != nil {
		t.Fatalf("GenerateOTPSecret() error = %v", err)
	}

	hash, err := HashOTP(otp)
	if err != nil {
		t.Fatalf("HashOTP() error = %v", err)
	}

	// The plaintext must never survive hashing
	if strings.Contains(hash, otp) {
		t.Error("HashOTP() output contains the plaintext secret")
	}

	// Hashing is salted, so two hashes of the same secret differ
	hash2, err := HashOTP(otp)
	if err != nil {
		t.Fatalf("HashOTP() error = %v", err)
	}
	if hash == hash2 {
		t.Error("HashOTP() produced identical hashes for the same secret")
	}

	tests := []struct {
		name      string
		candidate string
		wantErr   bool
	}{
		{"correct secret", otp, false},
		{"wrong secret", "AAAAAAAAAAAAAAA", true},
		{"empty secret", "", true},
		{"case mismatch", strings.ToLower(otp) + "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOTP(hash, tt.candidate)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckOTP() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrOTPMismatch {
				t.Errorf("CheckOTP() error = %v, want %v", err, ErrOTPMismatch)
			}
		})
	}
}

func TestGenerateAdminKey(t *testing.T) {
	tests := []struct {
		name       string
		electionID string
		salt       string
	}{
		{"standard", "election123", "secret-salt"},
		{"empty election id", "", "salt"},
		{"empty salt", "election456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := GenerateAdminKey(tt.electionID, tt.salt)

			// Should not be empty
			if key == "" {
				t.Error("GenerateAdminKey() returned empty string")
			}

			// Should be deterministic
			key2 := GenerateAdminKey(tt.electionID, tt.salt)
			if key != key2 {
				t.Error("GenerateAdminKey() is not deterministic")
			}

			// Different inputs should produce different keys
			if tt.electionID != "" && tt.salt != "" {
				differentKey := GenerateAdminKey(tt.electionID+"x", tt.salt)
				if key == differentKey {
					t.Error("GenerateAdminKey() produced same key for different election IDs")
				}
			}

			// Should be URL-safe (no padding)
			if strings.Contains(key, "=") {
				t.Error("GenerateAdminKey() contains padding characters")
			}
		})
	}
}

func TestValidateAdminKey(t *testing.T) {
	electionID := "test-election-123"
	salt := "test-salt"
	validKey := GenerateAdminKey(electionID, salt)

	tests := []struct {
		name       string
		electionID string
		adminKey   string
		salt       string
		wantErr    bool
	}{
		{"valid key", electionID, validKey, salt, false},
		{"wrong key", electionID, "wrong-key", salt, true},
		{"wrong election id", "different-election", validKey, salt, true},
		{"wrong salt", electionID, validKey, "different-salt", true},
		{"empty key", electionID, "", salt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAdminKey(tt.electionID, tt.adminKey, tt.salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAdminKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrInvalidAdminKey {
				t.Errorf("ValidateAdminKey() error = %v, want %v", err, ErrInvalidAdminKey)
			}
		})
	}
}

func TestObfuscateChoice(t *testing.T) {
	tests := []struct {
		name        string
		candidateID string
		salt        string
	}{
		{"standard", "cand-abc-123", "ballot-salt"},
		{"different candidate", "cand-xyz-456", "ballot-salt"},
		{"different salt", "cand-abc-123", "other-salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag := ObfuscateChoice(tt.candidateID, tt.salt)

			// Should not be empty
			if tag == "" {
				t.Error("ObfuscateChoice() returned empty string")
			}

			// Should be deterministic
			tag2 := ObfuscateChoice(tt.candidateID, tt.salt)
			if tag != tag2 {
				t.Error("ObfuscateChoice() is not deterministic")
			}

			// Must not reveal the candidate reference
			if strings.Contains(tag, tt.candidateID) {
				t.Error("ObfuscateChoice() leaks the candidate ID")
			}

			// Should be URL-safe (no padding)
			if strings.Contains(tag, "=") {
				t.Error("ObfuscateChoice() contains padding characters")
			}
		})
	}

	// Different inputs should produce different tags
	tag1 := ObfuscateChoice("cand1", "salt")
	tag2 := ObfuscateChoice("cand2", "salt")
	if tag1 == tag2 {
		t.Error("ObfuscateChoice() produced same tag for different candidates")
	}

	tag3 := ObfuscateChoice("cand1", "salt1")
	tag4 := ObfuscateChoice("cand1", "salt2")
	if tag3 == tag4 {
		t.Error("ObfuscateChoice() produced same tag for different salts")
	}
}

// Benchmark tests
func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateID(16)
	}
}

func BenchmarkGenerateAdminKey(b *testing.B) {
	electionID := "test-election-123"
	salt := "test-salt"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GenerateAdminKey(electionID, salt)
	}
}

func BenchmarkObfuscateChoice(b *testing.B) {
	candidateID := "cand-abc-123"
	salt := "ballot-salt"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ObfuscateChoice(candidateID, salt)
	}
}
