// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The SQL below sticks to the dialect subset shared by PostgreSQL and
// SQLite; timestamps are always written explicitly from Go.
const schema = `
-- Precincts (fokontany). Geographic CRUD lives outside this service; only
-- the registered-voter counter is maintained here.
CREATE TABLE IF NOT EXISTS fokontany (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    registered_count INTEGER NOT NULL DEFAULT 0
);

-- Voter roll
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    last_name TEXT NOT NULL,
    first_name TEXT NOT NULL,
    birth_date TIMESTAMP NOT NULL,
    birth_place TEXT,
    national_id TEXT NOT NULL UNIQUE,
    address TEXT,
    profession TEXT,
    email TEXT NOT NULL UNIQUE,
    phone TEXT NOT NULL UNIQUE,
    photo_path TEXT,
    fokontany_id TEXT NOT NULL REFERENCES fokontany(id),
    eligible BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_voter_identity ON voter(last_name, first_name, national_id);

-- Elections
CREATE TABLE IF NOT EXISTS election (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'ongoing', 'closed')),
    current_round INTEGER NOT NULL DEFAULT 1,
    start_at TIMESTAMP,
    end_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_election_status ON election(status);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL REFERENCES voter(id),
    name TEXT NOT NULL,
    party TEXT
);

CREATE INDEX IF NOT EXISTS idx_candidate_election_id ON candidate(election_id);

-- Authentication sessions (three-step flow)
CREATE TABLE IF NOT EXISTS auth_session (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES voter(id) ON DELETE CASCADE,
    ident_ok BOOLEAN NOT NULL DEFAULT FALSE,
    face_ok BOOLEAN NOT NULL DEFAULT FALSE,
    valid BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP,
    otp_hash TEXT,
    CHECK (NOT valid OR (ident_ok AND face_ok)),
    CHECK (NOT face_ok OR ident_ok)
);

CREATE INDEX IF NOT EXISTS idx_auth_session_voter ON auth_session(voter_id);
CREATE INDEX IF NOT EXISTS idx_auth_session_valid ON auth_session(valid);
CREATE INDEX IF NOT EXISTS idx_auth_session_created ON auth_session(created_at);

-- Votes. Immutable rows; only the finalization purge deletes them. The
-- UNIQUE constraint is the storage-level arbiter for one vote per
-- (election, voter, round) under concurrent casts.
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL REFERENCES voter(id),
    candidate_id TEXT NOT NULL REFERENCES candidate(id),
    round INTEGER NOT NULL,
    cast_at TIMESTAMP NOT NULL,
    choice_tag TEXT NOT NULL,
    UNIQUE (election_id, voter_id, round)
);

CREATE INDEX IF NOT EXISTS idx_vote_election_round ON vote(election_id, round);

-- Per-candidate tallies, one row per (election, candidate, round)
CREATE TABLE IF NOT EXISTS result_tally (
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    round INTEGER NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0,
    total_votes_in_round INTEGER NOT NULL DEFAULT 0,
    participation_rate REAL NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (election_id, candidate_id, round)
);

CREATE INDEX IF NOT EXISTS idx_result_tally_round ON result_tally(election_id, round);

-- Final results, at most one per election
CREATE TABLE IF NOT EXISTS final_result (
    election_id TEXT PRIMARY KEY REFERENCES election(id) ON DELETE CASCADE,
    winner_candidate_id TEXT REFERENCES candidate(id),
    total_votes_won INTEGER NOT NULL DEFAULT 0,
    participation_rate REAL NOT NULL DEFAULT 0,
    finalized_round INTEGER NOT NULL DEFAULT 1,
    finalized_at TIMESTAMP NOT NULL,
    published BOOLEAN NOT NULL DEFAULT FALSE,
    archive BYTEA
);
`
