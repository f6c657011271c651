// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/mirado-ravelo/safidy/auth"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/middleware"
	"github.com/mirado-ravelo/safidy/models"
)

// votingAge is the minimum age, at registration time, for eligibility.
const votingAge = 18

var (
	nationalIDPattern = regexp.MustCompile(`^\d{12}$`)
	phonePattern      = regexp.MustCompile(`^0\d{9}$`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)
)

type VoterHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVoterHandler(db *sql.DB, cfg cliparse.Config) *VoterHandler {
	return &VoterHandler{db: db, cfg: cfg}
}

// ageAt computes full years elapsed between birth and the reference date.
func ageAt(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}

// Register handles POST /voters
// Eligibility is derived once here, from age at registration; it is never
// recomputed afterwards. Registering also bumps the precinct's
// registered-voter counter in the same transaction.
func (h *VoterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterVoterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.LastName == "" || req.FirstName == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "last_name and first_name are required")
		return
	}
	if !nationalIDPattern.MatchString(req.NationalID) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "national_id must be exactly 12 digits")
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "phone must start with 0 and contain 10 digits")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is invalid")
		return
	}
	if req.FokontanyID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "fokontany_id is required")
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
		return
	}

	var fokontanyExists bool
	err = h.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM fokontany WHERE id = $1)`, req.FokontanyID).Scan(&fokontanyExists)
	if err != nil {
		slog.Error("failed to query fokontany", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !fokontanyExists {
		middleware.ErrorResponse(w, http.StatusBadRequest, "fokontany_id does not reference a known precinct")
		return
	}

	voterID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate voter ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register voter")
		return
	}

	eligible := ageAt(birthDate, time.Now()) >= votingAge

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO voter (id, last_name, first_name, birth_date, birth_place, national_id,
		                   address, profession, email, phone, photo_path, fokontany_id, eligible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, voterID, req.LastName, req.FirstName, birthDate, req.BirthPlace, req.NationalID,
		req.Address, req.Profession, req.Email, req.Phone, req.PhotoPath, req.FokontanyID, eligible)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "A voter with this national ID, email or phone already exists")
			return
		}
		slog.Error("failed to insert voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register voter")
		return
	}

	_, err = tx.Exec(`
		UPDATE fokontany SET registered_count = registered_count + 1 WHERE id = $1
	`, req.FokontanyID)
	if err != nil {
		slog.Error("failed to update fokontany counter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register voter")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register voter")
		return
	}

	slog.Info("voter registered", "voter_id", voterID, "eligible", eligible)

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterVoterResponse{
		VoterID:  voterID,
		Eligible: eligible,
	})
}

// GetVoter handles GET /voters/{id}
func (h *VoterHandler) GetVoter(w http.ResponseWriter, r *http.Request) {
	voterID := r.PathValue("id")
	if voterID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voter id is required")
		return
	}

	var v models.Voter
	err := h.db.QueryRow(`
		SELECT id, last_name, first_name, birth_date, birth_place, national_id,
		       address, profession, email, phone, fokontany_id, eligible
		FROM voter WHERE id = $1
	`, voterID).Scan(&v.ID, &v.LastName, &v.FirstName, &v.BirthDate, &v.BirthPlace,
		&v.NationalID, &v.Address, &v.Profession, &v.Email, &v.Phone, &v.FokontanyID, &v.Eligible)

	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Voter not found")
		return
	}
	if err != nil {
		slog.Error("failed to query voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, v)
}
