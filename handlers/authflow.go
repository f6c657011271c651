// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirado-ravelo/safidy/auth"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/facematch"
	"github.com/mirado-ravelo/safidy/middleware"
	"github.com/mirado-ravelo/safidy/models"
	"github.com/mirado-ravelo/safidy/notify"
	"github.com/mirado-ravelo/safidy/tokenstore"
)

// Lifetimes of the three-step flow. A session that never reaches VALID is
// purged after staleSessionAge; a VALID session expires validSessionTTL
// after the OTP step.
const (
	staleSessionAge = 5 * time.Minute
	validSessionTTL = 15 * time.Minute
)

// collaboratorTimeout bounds the face-compare and notification calls so a
// stuck collaborator cannot pin a request.
const collaboratorTimeout = 10 * time.Second

// maxProbeBytes caps the uploaded face probe image.
const maxProbeBytes = 8 << 20

type AuthHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	tokens tokenstore.Store
	faces  facematch.Comparer
	mailer notify.Sender
}

func NewAuthHandler(db *sql.DB, cfg cliparse.Config, tokens tokenstore.Store, faces facematch.Comparer, mailer notify.Sender) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, tokens: tokens, faces: faces, mailer: mailer}
}

// PurgeStaleSessions removes sessions that never reached VALID within
// staleSessionAge, and VALID sessions past their expiry. It is idempotent
// and safe to call concurrently; every auth entry point runs it first and
// swallows its errors so a purge failure never blocks a live request.
func PurgeStaleSessions(db *sql.DB) {
	now := time.Now()
	if _, err := db.Exec(`
		DELETE FROM auth_session WHERE valid = FALSE AND created_at < $1
	`, now.Add(-staleSessionAge)); err != nil {
		slog.Warn("stale session purge failed", "error", err)
	}
	if _, err := db.Exec(`
		DELETE FROM auth_session WHERE valid = TRUE AND expires_at < $1
	`, now); err != nil {
		slog.Warn("expired session purge failed", "error", err)
	}
}

// getSession loads one auth session row. Returns sql.ErrNoRows when absent.
func getSession(db *sql.DB, id string) (models.AuthSession, error) {
	var s models.AuthSession
	err := db.QueryRow(`
		SELECT id, voter_id, ident_ok, face_ok, valid, created_at, expires_at, otp_hash
		FROM auth_session
		WHERE id = $1
	`, id).Scan(&s.ID, &s.VoterID, &s.IdentOK, &s.FaceOK, &s.Valid, &s.CreatedAt, &s.ExpiresAt, &s.OTPHash)
	return s, err
}

func sessionExpired(s models.AuthSession, now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// redeemHandshake validates the X-Handshake-Token header against the
// session's voter. The token is not consumed here.
func (h *AuthHandler) redeemHandshake(r *http.Request, voterID string) bool {
	token := r.Header.Get("X-Handshake-Token")
	if token == "" {
		return false
	}
	got, err := h.tokens.Redeem(r.Context(), token)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			slog.Error("handshake token lookup failed", "error", err)
		}
		return false
	}
	return got == voterID
}

// StartAuth handles POST /auth/start
// Identity step: matches the voter by (last name, first name, national ID),
// refuses a second active session, and creates the session in IDENT_OK.
func (h *AuthHandler) StartAuth(w http.ResponseWriter, r *http.Request) {
	PurgeStaleSessions(h.db)

	var req models.StartAuthRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.LastName == "" || req.FirstName == "" || req.NationalID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "last_name, first_name and national_id are required")
		return
	}

	var voterID string
	err := h.db.QueryRow(`
		SELECT id FROM voter
		WHERE last_name = $1 AND first_name = $2 AND national_id = $3
	`, req.LastName, req.FirstName, req.NationalID).Scan(&voterID)

	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No voter matches these credentials")
		return
	}
	if err != nil {
		slog.Error("failed to query voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	sessionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate session ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start authentication")
		return
	}

	// The duplicate-session check and the insert share a transaction so two
	// simultaneous StartAuth calls for one voter cannot both pass the check.
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	now := time.Now()
	var active bool
	err = tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM auth_session
			WHERE voter_id = $1 AND valid = TRUE AND expires_at > $2
		)
	`, voterID, now).Scan(&active)
	if err != nil {
		slog.Error("failed to check active sessions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if active {
		middleware.ErrorResponse(w, http.StatusConflict, "An active session already exists for this voter")
		return
	}

	_, err = tx.Exec(`
		INSERT INTO auth_session (id, voter_id, ident_ok, face_ok, valid, created_at)
		VALUES ($1, $2, TRUE, FALSE, FALSE, $3)
	`, sessionID, voterID, now)
	if err != nil {
		slog.Error("failed to insert auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start authentication")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start authentication")
		return
	}

	token, err := h.tokens.Issue(r.Context(), voterID)
	if err != nil {
		slog.Error("failed to issue handshake token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start authentication")
		return
	}

	slog.Info("auth session started", "session_id", sessionID, "voter_id", voterID)

	middleware.JSONResponse(w, http.StatusCreated, models.StartAuthResponse{
		SessionID:      sessionID,
		HandshakeToken: token,
		Status:         models.AuthStatusIdentValid,
	})
}

// SubmitFace handles POST /auth/{id}/face
// Facial step: compares the uploaded probe against the voter's reference
// photo, and on match mints an OTP, stores only its hash, and mails the
// plaintext. OTP storage and dispatch form one logical unit: a delivery
// failure rolls the step back so it can be retried cleanly.
func (h *AuthHandler) SubmitFace(w http.ResponseWriter, r *http.Request) {
	PurgeStaleSessions(h.db)

	sessionID := r.PathValue("id")
	if sessionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	session, err := getSession(h.db, sessionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Authentication session not found")
		return
	}
	if err != nil {
		slog.Error("failed to query auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !h.redeemHandshake(r, session.VoterID) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing or invalid handshake token")
		return
	}

	if !session.IdentOK {
		middleware.ErrorResponse(w, http.StatusConflict, "Identity step is not validated")
		return
	}
	if session.FaceOK {
		middleware.ErrorResponse(w, http.StatusConflict, "Facial step already validated")
		return
	}
	if sessionExpired(session, time.Now()) {
		middleware.ErrorResponse(w, http.StatusConflict, "Session expired")
		return
	}

	var photoPath sql.NullString
	var email, firstName string
	err = h.db.QueryRow(`
		SELECT photo_path, email, first_name FROM voter WHERE id = $1
	`, session.VoterID).Scan(&photoPath, &email, &firstName)
	if err != nil {
		slog.Error("failed to query voter for face step", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !photoPath.Valid || photoPath.String == "" {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "No reference photo registered for this voter")
		return
	}

	if err := r.ParseMultipartForm(maxProbeBytes); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "captured_image upload required")
		return
	}
	file, _, err := r.FormFile("captured_image")
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "captured_image upload required")
		return
	}
	probe, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "failed to read captured_image")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), collaboratorTimeout)
	defer cancel()

	result, err := h.faces.Compare(ctx, photoPath.String, probe, h.cfg.FaceThreshold)
	if err != nil {
		slog.Error("face comparison failed", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Face comparison failed")
		return
	}
	if !result.Matched {
		slog.Info("face mismatch", "session_id", sessionID, "distance", result.Distance)
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Face does not match the registered photo")
		return
	}

	otp, err := auth.GenerateOTPSecret()
	if err != nil {
		slog.Error("failed to generate OTP", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to issue OTP")
		return
	}
	otpHash, err := auth.HashOTP(otp)
	if err != nil {
		slog.Error("failed to hash OTP", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to issue OTP")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE auth_session SET face_ok = TRUE, otp_hash = $1 WHERE id = $2
	`, otpHash, sessionID)
	if err != nil {
		slog.Error("failed to update auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record facial step")
		return
	}

	body := "Hello " + firstName + ",\n\n" +
		"Your one-time passcode is: " + otp + "\n" +
		"It will be requested to finish your authentication.\n\n" +
		"This code is confidential."
	if err := h.mailer.Send(ctx, email, "Your authentication passcode", body); err != nil {
		// Rollback keeps face_ok and otp_hash unset, so the step stays
		// retryable with a fresh OTP.
		slog.Error("OTP delivery failed", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Could not deliver the OTP")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record facial step")
		return
	}

	slog.Info("facial step validated", "session_id", sessionID, "distance", result.Distance)

	middleware.JSONResponse(w, http.StatusOK, models.FaceAuthResponse{
		SessionID: sessionID,
		Status:    models.AuthStatusFacialValid,
		Distance:  result.Distance,
	})
}

// VerifyOTP handles POST /auth/{id}/verify-otp
// Final step: checks the candidate secret against the stored hash and, on
// success, marks the session VALID for validSessionTTL.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	PurgeStaleSessions(h.db)

	sessionID := r.PathValue("id")
	if sessionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	session, err := getSession(h.db, sessionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Authentication session not found")
		return
	}
	if err != nil {
		slog.Error("failed to query auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !h.redeemHandshake(r, session.VoterID) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing or invalid handshake token")
		return
	}

	var req models.VerifyOTPRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.OTP == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "otp is required")
		return
	}

	if !session.IdentOK || !session.FaceOK {
		middleware.ErrorResponse(w, http.StatusConflict, "Previous steps are not validated")
		return
	}
	if session.Valid {
		middleware.ErrorResponse(w, http.StatusConflict, "OTP already validated")
		return
	}
	if session.OTPHash == nil {
		middleware.ErrorResponse(w, http.StatusConflict, "No OTP issued for this session")
		return
	}

	if err := auth.CheckOTP(*session.OTPHash, req.OTP); err != nil {
		slog.Info("OTP mismatch", "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid OTP")
		return
	}

	expiresAt := time.Now().Add(validSessionTTL)
	_, err = h.db.Exec(`
		UPDATE auth_session SET valid = TRUE, expires_at = $1 WHERE id = $2
	`, expiresAt, sessionID)
	if err != nil {
		slog.Error("failed to validate auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to validate session")
		return
	}

	// The handshake token has served its purpose.
	if token := r.Header.Get("X-Handshake-Token"); token != "" {
		if err := h.tokens.Revoke(r.Context(), token); err != nil {
			slog.Warn("failed to revoke handshake token", "error", err)
		}
	}

	slog.Info("auth session validated", "session_id", sessionID, "expires_at", expiresAt)

	middleware.JSONResponse(w, http.StatusOK, models.VerifyOTPResponse{
		SessionID: sessionID,
		Status:    models.AuthStatusValid,
		ExpiresAt: expiresAt,
	})
}

// DeleteSession handles DELETE /auth/{id}
// Admin override: unconditional delete, any state.
func (h *AuthHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session id is required")
		return
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(opsKeyScope, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	res, err := h.db.Exec(`DELETE FROM auth_session WHERE id = $1`, sessionID)
	if err != nil {
		slog.Error("failed to delete auth session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Authentication session not found")
		return
	}

	slog.Info("auth session deleted", "session_id", sessionID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}
