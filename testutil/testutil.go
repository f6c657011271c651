// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mirado-ravelo/safidy/auth"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/db"
	"github.com/mirado-ravelo/safidy/facematch"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full
// schema. A single pooled connection keeps the memory database alive and
// serializes writers the way the production database would.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          8017,
		DatabaseURL:   ":memory:",
		DatabaseType:  "sqlite",
		AdminKeySalt:  "test-admin-salt",
		BallotSalt:    "test-ballot-salt",
		FaceThreshold: 0.7,
	}
}

func randomDigits(t *testing.T, n int) string {
	t.Helper()
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			t.Fatalf("Failed to generate digits: %v", err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf)
}

// CreateTestFokontany inserts a precinct row and returns its ID.
func CreateTestFokontany(t *testing.T, conn *sql.DB, name string) string {
	t.Helper()

	id, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO fokontany (id, name, registered_count) VALUES ($1, $2, 0)
	`, id, name)
	if err != nil {
		t.Fatalf("Failed to create test fokontany: %v", err)
	}
	return id
}

// CreateTestVoter inserts an adult voter with unique identity fields and
// returns the voter ID. The reference photo path may be empty.
func CreateTestVoter(t *testing.T, conn *sql.DB, fokontanyID, lastName, firstName, photoPath string) string {
	t.Helper()

	voterID, _ := auth.GenerateID(16)
	suffix := randomDigits(t, 9)
	_, err := conn.Exec(`
		INSERT INTO voter (id, last_name, first_name, birth_date, birth_place, national_id,
		                   address, profession, email, phone, photo_path, fokontany_id, eligible)
		VALUES ($1, $2, $3, $4, 'Antananarivo', $5, '12 rue test', 'tester', $6, $7, $8, $9, TRUE)
	`, voterID, lastName, firstName, time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		"100"+suffix, firstName+suffix+"@example.test", "0"+suffix, photoPath, fokontanyID)
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	_, err = conn.Exec(`UPDATE fokontany SET registered_count = registered_count + 1 WHERE id = $1`, fokontanyID)
	if err != nil {
		t.Fatalf("Failed to bump fokontany counter: %v", err)
	}

	return voterID
}

// CreateTestVoterWithIdentity is CreateTestVoter with a caller-chosen
// national ID, for exercising the identity step.
func CreateTestVoterWithIdentity(t *testing.T, conn *sql.DB, fokontanyID, lastName, firstName, nationalID, photoPath string) string {
	t.Helper()

	voterID, _ := auth.GenerateID(16)
	suffix := randomDigits(t, 9)
	_, err := conn.Exec(`
		INSERT INTO voter (id, last_name, first_name, birth_date, birth_place, national_id,
		                   address, profession, email, phone, photo_path, fokontany_id, eligible)
		VALUES ($1, $2, $3, $4, 'Antananarivo', $5, '12 rue test', 'tester', $6, $7, $8, $9, TRUE)
	`, voterID, lastName, firstName, time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		nationalID, firstName+suffix+"@example.test", "0"+suffix, photoPath, fokontanyID)
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}
	return voterID
}

// CreateTestElection inserts an election in the given status and returns
// its ID and admin key.
func CreateTestElection(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string) (electionID, adminKey string) {
	t.Helper()

	electionID, _ = auth.GenerateID(16)
	adminKey = auth.GenerateAdminKey(electionID, cfg.AdminKeySalt)

	_, err := conn.Exec(`
		INSERT INTO election (id, name, type, status, current_round, created_at)
		VALUES ($1, 'Test Election', 'presidential', $2, 1, $3)
	`, electionID, status, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}
	return electionID, adminKey
}

// AddTestCandidate inserts a candidate wrapping the given voter.
func AddTestCandidate(t *testing.T, conn *sql.DB, electionID, voterID, name string) string {
	t.Helper()

	candidateID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO candidate (id, election_id, voter_id, name, party)
		VALUES ($1, $2, $3, $4, 'Test Party')
	`, candidateID, electionID, voterID, name)
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return candidateID
}

// CreateValidSession inserts a fully validated, unexpired auth session for
// the voter and returns the session ID.
func CreateValidSession(t *testing.T, conn *sql.DB, voterID string) string {
	t.Helper()

	sessionID, _ := auth.GenerateID(16)
	now := time.Now()
	_, err := conn.Exec(`
		INSERT INTO auth_session (id, voter_id, ident_ok, face_ok, valid, created_at, expires_at)
		VALUES ($1, $2, TRUE, TRUE, TRUE, $3, $4)
	`, sessionID, voterID, now, now.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return sessionID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// FakeComparer is a facematch.Comparer returning a fixed result.
type FakeComparer struct {
	Result facematch.Result
	Err    error
	Calls  int
}

func (f *FakeComparer) Compare(ctx context.Context, referencePath string, probe []byte, threshold float64) (facematch.Result, error) {
	f.Calls++
	if f.Err != nil {
		return facematch.Result{}, f.Err
	}
	return f.Result, nil
}

// SentMessage records one delivery through FakeSender.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// FakeSender is a notify.Sender recording messages; set Err to simulate
// delivery failure.
type FakeSender struct {
	mu   sync.Mutex
	Err  error
	Sent []SentMessage
}

func (f *FakeSender) Send(ctx context.Context, to, subject, body string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	f.Sent = append(f.Sent, SentMessage{To: to, Subject: subject, Body: body})
	f.mu.Unlock()
	return nil
}

// LastSent returns the most recent message, failing the test when none
// was delivered.
func (f *FakeSender) LastSent(t *testing.T) SentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		t.Fatal("Expected at least one sent message")
	}
	return f.Sent[len(f.Sent)-1]
}

// VoteDirect inserts a vote row bypassing the handler, for fixtures that
// need pre-existing ballots.
func VoteDirect(t *testing.T, conn *sql.DB, electionID, voterID, candidateID string, round int) string {
	t.Helper()

	voteID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO vote (id, election_id, voter_id, candidate_id, round, cast_at, choice_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, voteID, electionID, voterID, candidateID, round, time.Now(),
		auth.ObfuscateChoice(candidateID, GetTestConfig().BallotSalt))
	if err != nil {
		t.Fatalf("Failed to insert test vote: %v", err)
	}
	return voteID
}

// CountRows is a small helper for asserting table contents.
func CountRows(t *testing.T, conn *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows (%s): %v", query, err)
	}
	return n
}

// ExtractOTP pulls the passcode out of a delivered OTP message body.
func ExtractOTP(t *testing.T, body string) string {
	t.Helper()
	marker := "passcode is: "
	idx := bytes.Index([]byte(body), []byte(marker))
	if idx < 0 {
		t.Fatalf("No OTP found in message body: %q", body)
	}
	start := idx + len(marker)
	end := start
	for end < len(body) && body[end] != '\n' && body[end] != '\r' {
		end++
	}
	return body[start:end]
}
