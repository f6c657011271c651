// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/mirado-ravelo/safidy/auth"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/middleware"
	"github.com/mirado-ravelo/safidy/models"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

// GetResults handles GET /elections/{id}/results
// Returns the current round's tallies ordered by vote count descending.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election id is required")
		return
	}

	election, err := getElection(h.db, electionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if err != nil {
		slog.Error("failed to query election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT t.election_id, t.candidate_id, c.name, t.round, t.vote_count,
		       t.total_votes_in_round, t.participation_rate, t.updated_at
		FROM result_tally t
		JOIN candidate c ON c.id = t.candidate_id
		WHERE t.election_id = $1 AND t.round = $2
		ORDER BY t.vote_count DESC, t.candidate_id ASC
	`, electionID, election.CurrentRound)
	if err != nil {
		slog.Error("failed to query tallies", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	tallies := []models.TallyRow{}
	for rows.Next() {
		var t models.TallyRow
		if err := rows.Scan(&t.ElectionID, &t.CandidateID, &t.CandidateName, &t.Round,
			&t.VoteCount, &t.TotalVotesInRound, &t.ParticipationRate, &t.UpdatedAt); err != nil {
			slog.Error("failed to scan tally", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		tallies = append(tallies, t)
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Election: election,
		Round:    election.CurrentRound,
		Tallies:  tallies,
	})
}

// GetFinalResult handles GET /elections/{id}/final-result
// An unpublished final result is only visible with the election admin key.
func (h *ResultsHandler) GetFinalResult(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election id is required")
		return
	}

	var final models.FinalResult
	var winnerName sql.NullString
	err := h.db.QueryRow(`
		SELECT f.election_id, f.winner_candidate_id, c.name, f.total_votes_won,
		       f.participation_rate, f.finalized_round, f.finalized_at, f.published
		FROM final_result f
		LEFT JOIN candidate c ON c.id = f.winner_candidate_id
		WHERE f.election_id = $1
	`, electionID).Scan(&final.ElectionID, &final.WinnerCandidateID, &winnerName,
		&final.TotalVotesWon, &final.ParticipationRate, &final.FinalizedRound,
		&final.FinalizedAt, &final.Published)

	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No final result for this election")
		return
	}
	if err != nil {
		slog.Error("failed to query final result", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if winnerName.Valid {
		final.WinnerName = winnerName.String
	}

	if !final.Published {
		adminKey := r.Header.Get("X-Admin-Key")
		if err := auth.ValidateAdminKey(electionID, adminKey, h.cfg.AdminKeySalt); err != nil {
			middleware.ErrorResponse(w, http.StatusForbidden, "Final result is not published yet")
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, final)
}

// PublishFinalResult handles PATCH /elections/{id}/final-result/publish
func (h *ResultsHandler) PublishFinalResult(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election id is required")
		return
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(electionID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	res, err := h.db.Exec(`
		UPDATE final_result SET published = TRUE WHERE election_id = $1
	`, electionID)
	if err != nil {
		slog.Error("failed to publish final result", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "No final result for this election")
		return
	}

	slog.Info("final result published", "election_id", electionID)

	middleware.JSONResponse(w, http.StatusOK, map[string]bool{"published": true})
}
