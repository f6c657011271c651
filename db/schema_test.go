// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCreateSchema(t *testing.T) {
	conn := openTestDB(t)

	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}

	// Idempotent: IF NOT EXISTS makes repeated calls safe
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("Second CreateSchema() error = %v", err)
	}

	tables := []string{
		"fokontany", "voter", "election", "candidate",
		"auth_session", "vote", "result_tally", "final_result",
	}
	for _, table := range tables {
		var name string
		err := conn.QueryRow(`
			SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?
		`, table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestVoteUniquenessConstraint(t *testing.T) {
	conn := openTestDB(t)
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}

	now := time.Now()
	mustExec := func(query string, args ...interface{}) {
		t.Helper()
		if _, err := conn.Exec(query, args...); err != nil {
			t.Fatalf("Exec failed (%s): %v", query, err)
		}
	}

	mustExec(`INSERT INTO fokontany (id, name) VALUES ('f1', 'Analakely')`)
	mustExec(`
		INSERT INTO voter (id, last_name, first_name, birth_date, national_id, email, phone, fokontany_id, eligible)
		VALUES ('v1', 'Rakoto', 'Alice', $1, '100000000001', 'a@test', '0340000001', 'f1', TRUE)
	`, now)
	mustExec(`
		INSERT INTO election (id, name, type, status, current_round, created_at)
		VALUES ('e1', 'Test', 'municipal', 'ongoing', 1, $1)
	`, now)
	mustExec(`INSERT INTO candidate (id, election_id, voter_id, name) VALUES ('c1', 'e1', 'v1', 'Alice')`)
	mustExec(`
		INSERT INTO vote (id, election_id, voter_id, candidate_id, round, cast_at, choice_tag)
		VALUES ('vote1', 'e1', 'v1', 'c1', 1, $1, 'tag1')
	`, now)

	// A second vote by the same voter in the same round must be rejected
	_, err := conn.Exec(`
		INSERT INTO vote (id, election_id, voter_id, candidate_id, round, cast_at, choice_tag)
		VALUES ('vote2', 'e1', 'v1', 'c1', 1, $1, 'tag2')
	`, now)
	if err == nil {
		t.Error("Expected unique violation for duplicate (election, voter, round)")
	}

	// A later round is a fresh slate
	if _, err := conn.Exec(`
		INSERT INTO vote (id, election_id, voter_id, candidate_id, round, cast_at, choice_tag)
		VALUES ('vote3', 'e1', 'v1', 'c1', 2, $1, 'tag3')
	`, now); err != nil {
		t.Errorf("Vote in a new round should be accepted: %v", err)
	}
}

func TestAuthSessionStepOrderConstraints(t *testing.T) {
	conn := openTestDB(t)
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}

	now := time.Now()
	if _, err := conn.Exec(`INSERT INTO fokontany (id, name) VALUES ('f1', 'Analakely')`); err != nil {
		t.Fatalf("Failed to insert fokontany: %v", err)
	}
	if _, err := conn.Exec(`
		INSERT INTO voter (id, last_name, first_name, birth_date, national_id, email, phone, fokontany_id, eligible)
		VALUES ('v1', 'Rakoto', 'Alice', $1, '100000000001', 'a@test', '0340000001', 'f1', TRUE)
	`, now); err != nil {
		t.Fatalf("Failed to insert voter: %v", err)
	}

	// valid requires both earlier steps
	_, err := conn.Exec(`
		INSERT INTO auth_session (id, voter_id, ident_ok, face_ok, valid, created_at)
		VALUES ('s1', 'v1', TRUE, FALSE, TRUE, $1)
	`, now)
	if err == nil {
		t.Error("Expected check violation: valid without face_ok")
	}

	// face_ok requires ident_ok
	_, err = conn.Exec(`
		INSERT INTO auth_session (id, voter_id, ident_ok, face_ok, valid, created_at)
		VALUES ('s2', 'v1', FALSE, TRUE, FALSE, $1)
	`, now)
	if err == nil {
		t.Error("Expected check violation: face_ok without ident_ok")
	}

	// The legal progression is accepted
	if _, err := conn.Exec(`
		INSERT INTO auth_session (id, voter_id, ident_ok, face_ok, valid, created_at)
		VALUES ('s3', 'v1', TRUE, TRUE, TRUE, $1)
	`, now); err != nil {
		t.Errorf("Fully validated session should be accepted: %v", err)
	}
}

func TestFinalResultSingleRow(t *testing.T) {
	conn := openTestDB(t)
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}

	now := time.Now()
	if _, err := conn.Exec(`
		INSERT INTO election (id, name, type, status, current_round, created_at)
		VALUES ('e1', 'Test', 'municipal', 'closed', 1, $1)
	`, now); err != nil {
		t.Fatalf("Failed to insert election: %v", err)
	}

	if _, err := conn.Exec(`
		INSERT INTO final_result (election_id, total_votes_won, finalized_at)
		VALUES ('e1', 10, $1)
	`, now); err != nil {
		t.Fatalf("Failed to insert final result: %v", err)
	}

	// The primary key allows at most one final result per election
	_, err := conn.Exec(`
		INSERT INTO final_result (election_id, total_votes_won, finalized_at)
		VALUES ('e1', 20, $1)
	`, now)
	if err == nil {
		t.Error("Expected primary key violation for second final result")
	}
}
