// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Election status constants
const (
	StatusScheduled = "scheduled"
	StatusOngoing   = "ongoing"
	StatusClosed    = "closed"
)

// Auth step status values returned by the auth flow endpoints
const (
	AuthStatusIdentValid  = "ident_valid"
	AuthStatusFacialValid = "facial_valid"
	AuthStatusValid       = "valid"
)

// Request types

type RegisterVoterRequest struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	BirthDate   string `json:"birth_date"` // YYYY-MM-DD
	BirthPlace  string `json:"birth_place"`
	NationalID  string `json:"national_id"`
	Address     string `json:"address"`
	Profession  string `json:"profession"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	PhotoPath   string `json:"photo_path"`
	FokontanyID string `json:"fokontany_id"`
}

type CreateElectionRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	StartAt string `json:"start_at,omitempty"` // RFC 3339
	EndAt   string `json:"end_at,omitempty"`
}

type AddCandidateRequest struct {
	VoterID string `json:"voter_id"`
	Name    string `json:"name"`
	Party   string `json:"party"`
}

type StartAuthRequest struct {
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	NationalID string `json:"national_id"`
}

type VerifyOTPRequest struct {
	OTP string `json:"otp"`
}

type CastVoteRequest struct {
	SessionID   string `json:"session_id"`
	CandidateID string `json:"candidate_id"`
}

// Response types

type RegisterVoterResponse struct {
	VoterID  string `json:"voter_id"`
	Eligible bool   `json:"eligible"`
}

type CreateElectionResponse struct {
	ElectionID string `json:"election_id"`
	AdminKey   string `json:"admin_key"`
}

type AddCandidateResponse struct {
	CandidateID string `json:"candidate_id"`
}

type StartAuthResponse struct {
	SessionID      string `json:"session_id"`
	HandshakeToken string `json:"handshake_token"`
	Status         string `json:"status"`
}

type FaceAuthResponse struct {
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Distance  float64 `json:"distance"`
}

type VerifyOTPResponse struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CastVoteResponse struct {
	VoteID string    `json:"vote_id"`
	Round  int       `json:"round"`
	CastAt time.Time `json:"cast_at"`
}

type HasVotedResponse struct {
	HasVoted bool `json:"has_voted"`
}

type ResultsResponse struct {
	Election Election   `json:"election"`
	Round    int        `json:"round"`
	Tallies  []TallyRow `json:"tallies"`
}

type CloseElectionResponse struct {
	ClosedAt    time.Time   `json:"closed_at"`
	FinalResult FinalResult `json:"final_result"`
}

// Domain types

type Fokontany struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	RegisteredCount int    `json:"registered_count"`
}

type Voter struct {
	ID          string    `json:"id"`
	LastName    string    `json:"last_name"`
	FirstName   string    `json:"first_name"`
	BirthDate   time.Time `json:"birth_date"`
	BirthPlace  string    `json:"birth_place"`
	NationalID  string    `json:"national_id"`
	Address     string    `json:"address"`
	Profession  string    `json:"profession"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	PhotoPath   string    `json:"-"` // Never expose in JSON
	FokontanyID string    `json:"fokontany_id"`
	Eligible    bool      `json:"eligible"`
}

type Election struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	CurrentRound int        `json:"current_round"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Candidate struct {
	ID         string `json:"id"`
	ElectionID string `json:"election_id"`
	VoterID    string `json:"voter_id"`
	Name       string `json:"name"`
	Party      string `json:"party"`
}

type AuthSession struct {
	ID        string     `json:"id"`
	VoterID   string     `json:"voter_id"`
	IdentOK   bool       `json:"ident_ok"`
	FaceOK    bool       `json:"face_ok"`
	Valid     bool       `json:"valid"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	OTPHash   *string    `json:"-"` // Never expose in JSON
}

type Vote struct {
	ID          string    `json:"id"`
	ElectionID  string    `json:"election_id"`
	VoterID     string    `json:"-"` // Never expose in JSON
	CandidateID string    `json:"candidate_id"`
	Round       int       `json:"round"`
	CastAt      time.Time `json:"cast_at"`
	ChoiceTag   string    `json:"-"` // Never expose in JSON
}

type TallyRow struct {
	ElectionID        string    `json:"election_id"`
	CandidateID       string    `json:"candidate_id"`
	CandidateName     string    `json:"candidate_name,omitempty"`
	Round             int       `json:"round"`
	VoteCount         int       `json:"vote_count"`
	TotalVotesInRound int       `json:"total_votes_in_round"`
	ParticipationRate float64   `json:"participation_rate"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type FinalResult struct {
	ElectionID        string    `json:"election_id"`
	WinnerCandidateID string    `json:"winner_candidate_id"`
	WinnerName        string    `json:"winner_name,omitempty"`
	TotalVotesWon     int       `json:"total_votes_won"`
	ParticipationRate float64   `json:"participation_rate"`
	FinalizedRound    int       `json:"finalized_round"`
	FinalizedAt       time.Time `json:"finalized_at"`
	Published         bool      `json:"published"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
