// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db creates the database schema.

The schema targets the SQL subset shared by PostgreSQL (lib/pq) and SQLite
(modernc.org/sqlite): elections, candidates, the voter roll with its
precinct counters, three-step authentication sessions, immutable votes with
a storage-level uniqueness constraint per (election, voter, round),
per-round result tallies, and at-most-one final result per election.
*/
package db
