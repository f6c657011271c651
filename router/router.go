// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/mirado-ravelo/safidy/archive"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/facematch"
	"github.com/mirado-ravelo/safidy/handlers"
	"github.com/mirado-ravelo/safidy/middleware"
	"github.com/mirado-ravelo/safidy/notify"
	"github.com/mirado-ravelo/safidy/tokenstore"
)

// Deps are the external collaborators injected into the handlers.
type Deps struct {
	Tokens   tokenstore.Store
	Faces    facematch.Comparer
	Mailer   notify.Sender
	Renderer archive.Renderer
}

func NewRouter(db *sql.DB, cfg cliparse.Config, deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	voterHandler := handlers.NewVoterHandler(db, cfg)
	electionHandler := handlers.NewElectionHandler(db, cfg, deps.Renderer)
	authHandler := handlers.NewAuthHandler(db, cfg, deps.Tokens, deps.Faces, deps.Mailer)
	votingHandler := handlers.NewVotingHandler(db, cfg)
	resultsHandler := handlers.NewResultsHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Voter roll
	mux.HandleFunc("POST /voters", middleware.WithLogging(voterHandler.Register))
	mux.HandleFunc("GET /voters/{id}", middleware.WithLogging(voterHandler.GetVoter))

	// Election administration
	mux.HandleFunc("POST /elections", middleware.WithLogging(electionHandler.CreateElection))
	mux.HandleFunc("POST /elections/{id}/candidates", middleware.WithLogging(electionHandler.AddCandidate))
	mux.HandleFunc("POST /elections/{id}/open", middleware.WithLogging(electionHandler.OpenElection))
	mux.HandleFunc("POST /elections/{id}/next-round", middleware.WithLogging(electionHandler.NextRound))
	mux.HandleFunc("POST /elections/{id}/close", middleware.WithLogging(electionHandler.CloseElection))

	// Three-step authentication flow
	mux.HandleFunc("POST /auth/start", middleware.WithLogging(authHandler.StartAuth))
	mux.HandleFunc("POST /auth/{id}/face", middleware.WithLogging(authHandler.SubmitFace))
	mux.HandleFunc("POST /auth/{id}/verify-otp", middleware.WithLogging(authHandler.VerifyOTP))
	mux.HandleFunc("DELETE /auth/{id}", middleware.WithLogging(authHandler.DeleteSession))

	// Voting and results
	mux.HandleFunc("POST /elections/{id}/votes", middleware.WithLogging(votingHandler.CastVote))
	mux.HandleFunc("GET /elections/{id}/has-voted/{sessionID}", middleware.WithLogging(votingHandler.HasVoted))
	mux.HandleFunc("GET /elections/{id}/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /elections/{id}/final-result", middleware.WithLogging(resultsHandler.GetFinalResult))
	mux.HandleFunc("PATCH /elections/{id}/final-result/publish", middleware.WithLogging(resultsHandler.PublishFinalResult))

	// Root endpoint; {$} keeps it from swallowing unmatched paths
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("safidy API v1"))
	})

	return mux
}
