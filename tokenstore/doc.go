// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tokenstore holds the short-lived handshake tokens minted when a
voter starts an authentication flow.

Two backends implement the Store interface: Memory (mutex-guarded map with
lazy eviction, the default) and Redis (hash per token with a native TTL,
selected when REDIS_URI is configured). The store instance is injected into
handlers; there is no package-level singleton.
*/
package tokenstore
