// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mirado-ravelo/safidy/archive"
	"github.com/mirado-ravelo/safidy/models"
)

// updateTally maintains the per-candidate result rows for one committed
// vote, inside the caller's transaction:
//
//  1. lazy-initialize a tally row at zero for every candidate of the
//     election/round,
//  2. increment the voted candidate's count with an atomic UPDATE (a
//     row-level lock in postgres, writer serialization in sqlite — either
//     way no lost updates under concurrent ballots),
//  3. recompute the round's total from the vote table and the
//     participation rate from the registered-voter count,
//  4. write totals back to every row of the round.
func updateTally(tx *sql.Tx, electionID, candidateID string, round int, now time.Time) error {
	rows, err := tx.Query(`SELECT id FROM candidate WHERE election_id = $1`, electionID)
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}
	var candidateIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidateIDs = append(candidateIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}

	for _, id := range candidateIDs {
		_, err := tx.Exec(`
			INSERT INTO result_tally (election_id, candidate_id, round, vote_count, total_votes_in_round, participation_rate, updated_at)
			VALUES ($1, $2, $3, 0, 0, 0, $4)
			ON CONFLICT (election_id, candidate_id, round) DO NOTHING
		`, electionID, id, round, now)
		if err != nil {
			return fmt.Errorf("failed to initialize tally row: %w", err)
		}
	}

	_, err = tx.Exec(`
		UPDATE result_tally
		SET vote_count = vote_count + 1, updated_at = $1
		WHERE election_id = $2 AND candidate_id = $3 AND round = $4
	`, now, electionID, candidateID, round)
	if err != nil {
		return fmt.Errorf("failed to increment tally: %w", err)
	}

	var totalVotes int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM vote WHERE election_id = $1 AND round = $2
	`, electionID, round).Scan(&totalVotes)
	if err != nil {
		return fmt.Errorf("failed to count round votes: %w", err)
	}

	var registered int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM voter`).Scan(&registered); err != nil {
		return fmt.Errorf("failed to count registered voters: %w", err)
	}

	rate := 0.0
	if registered > 0 {
		rate = float64(totalVotes) / float64(registered) * 100
	}

	_, err = tx.Exec(`
		UPDATE result_tally
		SET total_votes_in_round = $1, participation_rate = $2, updated_at = $3
		WHERE election_id = $4 AND round = $5
	`, totalVotes, rate, now, electionID, round)
	if err != nil {
		return fmt.Errorf("failed to write round totals: %w", err)
	}

	return nil
}

// rankedTallies returns the tallies of one round ordered by vote count
// descending, ties broken by candidate id ascending for determinism.
func rankedTallies(tx *sql.Tx, electionID string, round int) ([]models.TallyRow, error) {
	rows, err := tx.Query(`
		SELECT t.election_id, t.candidate_id, c.name, t.round, t.vote_count,
		       t.total_votes_in_round, t.participation_rate, t.updated_at
		FROM result_tally t
		JOIN candidate c ON c.id = t.candidate_id
		WHERE t.election_id = $1 AND t.round = $2
		ORDER BY t.vote_count DESC, t.candidate_id ASC
	`, electionID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to query tallies: %w", err)
	}
	defer rows.Close()

	var tallies []models.TallyRow
	for rows.Next() {
		var t models.TallyRow
		if err := rows.Scan(&t.ElectionID, &t.CandidateID, &t.CandidateName, &t.Round,
			&t.VoteCount, &t.TotalVotesInRound, &t.ParticipationRate, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

// finalizeElection freezes the results of a closed election inside the
// caller's transaction: at most one final result per election, winner from
// the current round's ranked tallies, archive blob from the renderer, and
// a hard delete of the raw votes (only the aggregates survive).
//
// Returns (result, true) when a final result exists after the call, and
// (zero, false) when the round had no tallies at all.
func finalizeElection(tx *sql.Tx, election models.Election, renderer archive.Renderer, now time.Time) (models.FinalResult, bool, error) {
	var existing models.FinalResult
	err := tx.QueryRow(`
		SELECT election_id, winner_candidate_id, total_votes_won, participation_rate,
		       finalized_round, finalized_at, published
		FROM final_result WHERE election_id = $1
	`, election.ID).Scan(&existing.ElectionID, &existing.WinnerCandidateID, &existing.TotalVotesWon,
		&existing.ParticipationRate, &existing.FinalizedRound, &existing.FinalizedAt, &existing.Published)
	if err == nil {
		// Already finalized; never re-run the archive or the purge.
		return existing, true, nil
	}
	if err != sql.ErrNoRows {
		return models.FinalResult{}, false, fmt.Errorf("failed to query final result: %w", err)
	}

	tallies, err := rankedTallies(tx, election.ID, election.CurrentRound)
	if err != nil {
		return models.FinalResult{}, false, err
	}
	if len(tallies) == 0 {
		return models.FinalResult{}, false, nil
	}

	winner := tallies[0]
	final := models.FinalResult{
		ElectionID:        election.ID,
		WinnerCandidateID: winner.CandidateID,
		WinnerName:        winner.CandidateName,
		TotalVotesWon:     winner.VoteCount,
		ParticipationRate: winner.ParticipationRate,
		FinalizedRound:    election.CurrentRound,
		FinalizedAt:       now,
	}

	blob, err := renderer.Render(election, tallies, now)
	if err != nil {
		return models.FinalResult{}, false, fmt.Errorf("failed to render archive: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO final_result (election_id, winner_candidate_id, total_votes_won,
		                          participation_rate, finalized_round, finalized_at, published, archive)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`, final.ElectionID, final.WinnerCandidateID, final.TotalVotesWon,
		final.ParticipationRate, final.FinalizedRound, final.FinalizedAt, blob)
	if err != nil {
		return models.FinalResult{}, false, fmt.Errorf("failed to insert final result: %w", err)
	}

	// Privacy/storage tradeoff: raw ballots are unrecoverable from here on.
	if _, err := tx.Exec(`DELETE FROM vote WHERE election_id = $1`, election.ID); err != nil {
		return models.FinalResult{}, false, fmt.Errorf("failed to purge votes: %w", err)
	}

	return final, true, nil
}
