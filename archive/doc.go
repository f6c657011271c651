// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package archive renders the results document stored on a final result.
package archive
