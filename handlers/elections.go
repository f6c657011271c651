// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirado-ravelo/safidy/archive"
	"github.com/mirado-ravelo/safidy/auth"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/middleware"
	"github.com/mirado-ravelo/safidy/models"
)

// opsKeyScope derives the operations admin key (session deletion and other
// non-election-scoped admin calls) from the same salt as election keys.
const opsKeyScope = "ops"

type ElectionHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	renderer archive.Renderer
}

func NewElectionHandler(db *sql.DB, cfg cliparse.Config, renderer archive.Renderer) *ElectionHandler {
	return &ElectionHandler{db: db, cfg: cfg, renderer: renderer}
}

// getElection loads one election row. Returns sql.ErrNoRows when absent.
func getElection(db *sql.DB, id string) (models.Election, error) {
	var e models.Election
	err := db.QueryRow(`
		SELECT id, name, type, status, current_round, start_at, end_at, created_at
		FROM election WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.Type, &e.Status, &e.CurrentRound, &e.StartAt, &e.EndAt, &e.CreatedAt)
	return e, err
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Type == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "type is required")
		return
	}

	var startAt, endAt *time.Time
	if req.StartAt != "" {
		t, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "start_at must be RFC 3339")
			return
		}
		startAt = &t
	}
	if req.EndAt != "" {
		t, err := time.Parse(time.RFC3339, req.EndAt)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "end_at must be RFC 3339")
			return
		}
		endAt = &t
	}

	electionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate election ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	adminKey := auth.GenerateAdminKey(electionID, h.cfg.AdminKeySalt)

	_, err = h.db.Exec(`
		INSERT INTO election (id, name, type, status, current_round, start_at, end_at, created_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $7)
	`, electionID, req.Name, req.Type, models.StatusScheduled, startAt, endAt, time.Now())
	if err != nil {
		slog.Error("failed to insert election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	slog.Info("election created", "election_id", electionID, "name", req.Name)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateElectionResponse{
		ElectionID: electionID,
		AdminKey:   adminKey,
	})
}

// AddCandidate handles POST /elections/{id}/candidates
func (h *ElectionHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
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

	var req models.AddCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VoterID == "" || req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voter_id and name are required")
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
	if election.Status != models.StatusScheduled {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot add candidates after the election opened")
		return
	}

	var voterExists bool
	err = h.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM voter WHERE id = $1)`, req.VoterID).Scan(&voterExists)
	if err != nil {
		slog.Error("failed to query voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !voterExists {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voter_id does not reference a registered voter")
		return
	}

	candidateID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate candidate ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO candidate (id, election_id, voter_id, name, party)
		VALUES ($1, $2, $3, $4, $5)
	`, candidateID, electionID, req.VoterID, req.Name, req.Party)
	if err != nil {
		slog.Error("failed to insert candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	slog.Info("candidate added", "election_id", electionID, "candidate_id", candidateID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddCandidateResponse{
		CandidateID: candidateID,
	})
}

// OpenElection handles POST /elections/{id}/open
func (h *ElectionHandler) OpenElection(w http.ResponseWriter, r *http.Request) {
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

	var status string
	var candidateCount int
	err := h.db.QueryRow(`
		SELECT e.status, COUNT(c.id)
		FROM election e
		LEFT JOIN candidate c ON e.id = c.election_id
		WHERE e.id = $1
		GROUP BY e.status
	`, electionID).Scan(&status, &candidateCount)

	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if err != nil {
		slog.Error("failed to query election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if status != models.StatusScheduled {
		middleware.ErrorResponse(w, http.StatusConflict, "Election is not in scheduled status")
		return
	}
	if candidateCount < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Election must have at least 2 candidates")
		return
	}

	_, err = h.db.Exec(`
		UPDATE election SET status = $1, start_at = $2 WHERE id = $3
	`, models.StatusOngoing, time.Now(), electionID)
	if err != nil {
		slog.Error("failed to open election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to open election")
		return
	}

	slog.Info("election opened", "election_id", electionID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": models.StatusOngoing})
}

// NextRound handles POST /elections/{id}/next-round
// Advances current_round for a runoff; tallies and uniqueness are per
// round, so voters may cast again in the new round.
func (h *ElectionHandler) NextRound(w http.ResponseWriter, r *http.Request) {
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
	if election.Status != models.StatusOngoing {
		middleware.ErrorResponse(w, http.StatusConflict, "Election is not ongoing")
		return
	}

	_, err = h.db.Exec(`
		UPDATE election SET current_round = current_round + 1 WHERE id = $1
	`, electionID)
	if err != nil {
		slog.Error("failed to advance round", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to advance round")
		return
	}

	slog.Info("election round advanced", "election_id", electionID, "round", election.CurrentRound+1)

	middleware.JSONResponse(w, http.StatusOK, map[string]int{"current_round": election.CurrentRound + 1})
}

// CloseElection handles POST /elections/{id}/close
// Transitions the election to closed and finalizes it in the same
// transaction: winner, archive blob, vote purge. Closing an already-closed
// election returns the existing final result without re-running any side
// effects.
func (h *ElectionHandler) CloseElection(w http.ResponseWriter, r *http.Request) {
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
	if election.Status == models.StatusScheduled {
		middleware.ErrorResponse(w, http.StatusConflict, "Election was never opened")
		return
	}

	closedAt := time.Now()

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	if election.Status == models.StatusOngoing {
		_, err = tx.Exec(`
			UPDATE election SET status = $1, end_at = $2 WHERE id = $3
		`, models.StatusClosed, closedAt, electionID)
		if err != nil {
			slog.Error("failed to close election", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close election")
			return
		}
	}

	final, ok, err := finalizeElection(tx, election, h.renderer, closedAt)
	if err != nil {
		slog.Error("failed to finalize election", "error", err, "election_id", electionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to finalize election")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close election")
		return
	}

	if !ok {
		slog.Info("election closed without votes", "election_id", electionID)
		middleware.JSONResponse(w, http.StatusOK, models.CloseElectionResponse{
			ClosedAt:    closedAt,
			FinalResult: models.FinalResult{ElectionID: electionID},
		})
		return
	}

	slog.Info("election closed", "election_id", electionID, "winner", final.WinnerCandidateID)

	middleware.JSONResponse(w, http.StatusOK, models.CloseElectionResponse{
		ClosedAt:    closedAt,
		FinalResult: final,
	})
}
