// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mirado-ravelo/safidy/archive"
	"github.com/mirado-ravelo/safidy/models"
	"github.com/mirado-ravelo/safidy/testutil"
)

// TestConcurrentBallotCasts verifies that simultaneous ballots from distinct
// voters are all recorded and the tallies stay consistent with the votes
func TestConcurrentBallotCasts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	fokontanyID := testutil.CreateTestFokontany(t, db, "Analakely")
	electionID, _ := testutil.CreateTestElection(t, db, cfg, models.StatusOngoing)

	c1Voter := testutil.CreateTestVoter(t, db, fokontanyID, "Rabe", "Hery", "")
	c2Voter := testutil.CreateTestVoter(t, db, fokontanyID, "Randria", "Fara", "")
	candidates := []string{
		testutil.AddTestCandidate(t, db, electionID, c1Voter, "Hery Rabe"),
		testutil.AddTestCandidate(t, db, electionID, c2Voter, "Fara Randria"),
	}

	numVoters := 10
	sessions := make([]string, numVoters)
	for i := 0; i < numVoters; i++ {
		voterID := testutil.CreateTestVoter(t, db, fokontanyID, "Mpifidy", string(rune('A'+i)), "")
		sessions[i] = testutil.CreateValidSession(t, db, voterID)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(voterIdx int) {
			defer wg.Done()

			w := castVote(t, votingHandler, electionID, sessions[voterIdx], candidates[voterIdx%2])
			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful casts, got %d", numVoters, successCount.Load())
	}

	// Every ballot landed, from a distinct voter
	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID); n != numVoters {
		t.Errorf("Expected %d votes in database, got %d", numVoters, n)
	}
	if n := testutil.CountRows(t, db, `SELECT COUNT(DISTINCT voter_id) FROM vote WHERE election_id = $1`, electionID); n != numVoters {
		t.Errorf("Expected %d distinct voters, got %d (possible duplicates)", numVoters, n)
	}

	// No lost tally updates: counts sum to the ballots, totals agree everywhere
	var tallySum int
	err := db.QueryRow(`
		SELECT COALESCE(SUM(vote_count), 0) FROM result_tally WHERE election_id = $1 AND round = 1
	`, electionID).Scan(&tallySum)
	if err != nil {
		t.Fatalf("Failed to sum tallies: %v", err)
	}
	if tallySum != numVoters {
		t.Errorf("Expected tally sum %d, got %d", numVoters, tallySum)
	}

	rows, err := db.Query(`
		SELECT total_votes_in_round FROM result_tally WHERE election_id = $1 AND round = 1
	`, electionID)
	if err != nil {
		t.Fatalf("Failed to query tallies: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var total int
		if err := rows.Scan(&total); err != nil {
			t.Fatalf("Failed to scan tally: %v", err)
		}
		if total != numVoters {
			t.Errorf("Expected total_votes_in_round %d on every row, got %d", numVoters, total)
		}
	}
}

// TestConcurrentDuplicateCasts verifies that when one voter fires several
// simultaneous ballots, the uniqueness constraint lets exactly one through
func TestConcurrentDuplicateCasts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)

	fokontanyID := testutil.CreateTestFokontany(t, db, "Analakely")
	electionID, _ := testutil.CreateTestElection(t, db, cfg, models.StatusOngoing)
	cVoter := testutil.CreateTestVoter(t, db, fokontanyID, "Rabe", "Hery", "")
	candidateID := testutil.AddTestCandidate(t, db, electionID, cVoter, "Hery Rabe")

	voterID := testutil.CreateTestVoter(t, db, fokontanyID, "Rakoto", "Alice", "")
	sessionID := testutil.CreateValidSession(t, db, voterID)

	numAttempts := 5
	var createdCount, conflictCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w := castVote(t, votingHandler, electionID, sessionID, candidateID)
			switch w.Code {
			case http.StatusCreated:
				createdCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if createdCount.Load() != 1 {
		t.Errorf("Expected exactly 1 accepted ballot, got %d", createdCount.Load())
	}
	if int(createdCount.Load()+conflictCount.Load()) != numAttempts {
		t.Errorf("Expected %d attempts accounted for, got %d created + %d conflicts",
			numAttempts, createdCount.Load(), conflictCount.Load())
	}

	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM vote WHERE election_id = $1 AND voter_id = $2`, electionID, voterID); n != 1 {
		t.Errorf("Expected 1 vote in database, got %d", n)
	}

	var voteCount int
	err := db.QueryRow(`
		SELECT vote_count FROM result_tally
		WHERE election_id = $1 AND candidate_id = $2 AND round = 1
	`, electionID, candidateID).Scan(&voteCount)
	if err != nil {
		t.Fatalf("Failed to query tally: %v", err)
	}
	if voteCount != 1 {
		t.Errorf("Expected tally of 1, got %d", voteCount)
	}
}

// TestConcurrentElectionClose verifies that simultaneous close requests leave
// the election closed with exactly one final result and no surviving votes
func TestConcurrentElectionClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	votingHandler := NewVotingHandler(db, cfg)
	electionHandler := NewElectionHandler(db, cfg, archive.TextRenderer{})

	fokontanyID := testutil.CreateTestFokontany(t, db, "Analakely")
	electionID, adminKey := testutil.CreateTestElection(t, db, cfg, models.StatusOngoing)
	cVoter := testutil.CreateTestVoter(t, db, fokontanyID, "Rabe", "Hery", "")
	candidateID := testutil.AddTestCandidate(t, db, electionID, cVoter, "Hery Rabe")

	voterID := testutil.CreateTestVoter(t, db, fokontanyID, "Rakoto", "Alice", "")
	sessionID := testutil.CreateValidSession(t, db, voterID)
	testutil.AssertStatus(t, castVote(t, votingHandler, electionID, sessionID, candidateID), http.StatusCreated)

	numAttempts := 3
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w, _ := closeElection(t, electionHandler, electionID, adminKey)
			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() < 1 {
		t.Error("Expected at least one successful close")
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM election WHERE id = $1`, electionID).Scan(&status); err != nil {
		t.Fatalf("Failed to query election status: %v", err)
	}
	if status != models.StatusClosed {
		t.Errorf("Expected election status '%s', got '%s'", models.StatusClosed, status)
	}

	// The primary key guarantees a single final result even under races
	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM final_result WHERE election_id = $1`, electionID); n != 1 {
		t.Errorf("Expected 1 final result, got %d", n)
	}
	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID); n != 0 {
		t.Errorf("Expected purged votes, got %d", n)
	}
}
