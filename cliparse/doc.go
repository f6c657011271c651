// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package cliparse parses configuration from CLI flags with environment
// variable fallback.
package cliparse
