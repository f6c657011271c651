// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the request, response, and domain types shared by the
handlers.

Domain types mirror the database rows. Fields that must never leave the
server (reference photo paths, OTP hashes, voter identity on a vote, the
obfuscated choice tag) carry a `json:"-"` tag.
*/
package models
