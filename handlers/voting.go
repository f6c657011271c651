// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mirado-ravelo/safidy/auth"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/middleware"
	"github.com/mirado-ravelo/safidy/models"
)

// castRetries is how many times the vote+tally transaction is retried on
// serialization or lock contention before the attempt is surfaced as an
// error. The vote is never recorded without its tally increment.
const castRetries = 3

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg}
}

// isUniqueViolation matches the duplicate-key errors of both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// isRetryable matches transient serialization/lock failures of both drivers.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected")
}

// CastVote handles POST /elections/{id}/votes
// Commits a single immutable vote exactly once per (election, voter, round)
// and updates the tallies in the same transaction. Validation order:
// session, election, candidate, then the storage-level uniqueness
// constraint as the final arbiter under concurrency.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	PurgeStaleSessions(h.db)

	electionID := r.PathValue("id")
	if electionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election id is required")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SessionID == "" || req.CandidateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session_id and candidate_id are required")
		return
	}

	now := time.Now()

	// (1) the session is the capability token: it must be VALID and unexpired
	session, err := getSession(h.db, req.SessionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Voter not authenticated")
		return
	}
	if err != nil {
		slog.Error("failed to query auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !session.Valid || session.ExpiresAt == nil || !session.ExpiresAt.After(now) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Voter not authenticated or session expired")
		return
	}

	// (2) election must exist and be ongoing
	var status string
	var round int
	err = h.db.QueryRow(`
		SELECT status, current_round FROM election WHERE id = $1
	`, electionID).Scan(&status, &round)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if err != nil {
		slog.Error("failed to query election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status != models.StatusOngoing {
		middleware.ErrorResponse(w, http.StatusConflict, "Election is not open for voting")
		return
	}

	// (3) candidate must belong to this election
	var candidateElection string
	err = h.db.QueryRow(`
		SELECT election_id FROM candidate WHERE id = $1
	`, req.CandidateID).Scan(&candidateElection)
	if err == sql.ErrNoRows || (err == nil && candidateElection != electionID) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Candidate does not belong to this election")
		return
	}
	if err != nil {
		slog.Error("failed to query candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	voteID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate vote ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}
	choiceTag := auth.ObfuscateChoice(req.CandidateID, h.cfg.BallotSalt)

	// (4) round is assigned by the engine, (5) uniqueness is enforced by the
	// vote table constraint inside the same transaction as the tally update.
	castAt := time.Now()
	var lastErr error
	for attempt := 0; attempt < castRetries; attempt++ {
		lastErr = h.castOnce(voteID, electionID, session.VoterID, req.CandidateID, round, castAt, choiceTag)
		if lastErr == nil || isUniqueViolation(lastErr) || !isRetryable(lastErr) {
			break
		}
		slog.Warn("vote transaction retry", "attempt", attempt+1, "error", lastErr)
	}

	if isUniqueViolation(lastErr) {
		middleware.ErrorResponse(w, http.StatusConflict, "This voter has already voted in this round")
		return
	}
	if lastErr != nil {
		slog.Error("failed to cast vote", "error", lastErr, "election_id", electionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	slog.Info("vote cast", "election_id", electionID, "round", round, "vote_id", voteID)

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		VoteID: voteID,
		Round:  round,
		CastAt: castAt,
	})
}

// castOnce runs the insert-vote-and-update-tally transaction once. Both
// writes commit or neither does.
func (h *VotingHandler) castOnce(voteID, electionID, voterID, candidateID string, round int, castAt time.Time, choiceTag string) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO vote (id, election_id, voter_id, candidate_id, round, cast_at, choice_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, voteID, electionID, voterID, candidateID, round, castAt, choiceTag)
	if err != nil {
		return err
	}

	if err := updateTally(tx, electionID, candidateID, round, castAt); err != nil {
		return err
	}

	return tx.Commit()
}

// HasVoted handles GET /elections/{id}/has-voted/{sessionID}
// Reports whether the session's voter has already cast a ballot in this
// election (any round).
func (h *VotingHandler) HasVoted(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	sessionID := r.PathValue("sessionID")
	if electionID == "" || sessionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election id and session id are required")
		return
	}

	session, err := getSession(h.db, sessionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid session")
		return
	}
	if err != nil {
		slog.Error("failed to query auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !session.Valid {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid session")
		return
	}

	var hasVoted bool
	err = h.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM vote WHERE election_id = $1 AND voter_id = $2
		)
	`, electionID, session.VoterID).Scan(&hasVoted)
	if err != nil {
		slog.Error("failed to check votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.HasVotedResponse{HasVoted: hasVoted})
}
