// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides the cryptographic primitives of the voting flow:
random IDs, OTP secret generation and salted one-way hashing, HMAC-based
election admin keys, and the keyed obfuscation tag stored on vote rows.

All comparisons are constant-time (hmac.Equal, bcrypt).
*/
package auth
