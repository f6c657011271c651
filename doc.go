// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Safidy election API server.

Safidy is a community election service: registered voters authenticate in
three steps (identity lookup, facial comparison, emailed one-time
passcode), then cast exactly one ballot per election round. Closing an
election computes final tallies, archives the outcome, and purges the raw
votes.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=safidy.db ADMIN_KEY_SALT=... BALLOT_SALT=... go run main.go

Or with flags:

	go run main.go -p 8017 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for election admin key HMAC
  - BALLOT_SALT (--ballot-salt): Secret for ballot choice obfuscation

Optional settings:

  - PORT (-p): Server port (default: 8017)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - FACE_API_URL (--face-api): Face comparison service URL
  - FACE_THRESHOLD (--face-threshold): Match threshold (default: 0.7)
  - SMTP_ADDR (--smtp): SMTP relay for OTP mail (logs OTPs when unset)
  - REDIS_URI (--redis): Redis store for handshake tokens (in-process when unset)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (voters, elections, auth flow, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Admin keys, OTP secrets, ballot obfuscation
  - tokenstore: Handshake tokens (in-memory or Redis)
  - facematch: Face comparison client
  - notify: OTP delivery
  - archive: Final result reports
  - db: Schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
