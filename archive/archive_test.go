// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/mirado-ravelo/safidy/models"
)

func TestTextRendererRender(t *testing.T) {
	election := models.Election{
		ID:           "election-1",
		Name:         "Municipal 2025",
		Type:         "municipal",
		Status:       models.StatusClosed,
		CurrentRound: 1,
		CreatedAt:    time.Now(),
	}

	tallies := []models.TallyRow{
		{
			ElectionID:        "election-1",
			CandidateID:       "cand-a",
			CandidateName:     "Alice Rakoto",
			Round:             1,
			VoteCount:         42,
			TotalVotesInRound: 60,
			ParticipationRate: 75.5,
		},
		{
			ElectionID:        "election-1",
			CandidateID:       "cand-b",
			CandidateName:     "Bob Randria",
			Round:             1,
			VoteCount:         18,
			TotalVotesInRound: 60,
			ParticipationRate: 75.5,
		},
	}

	finalizedAt := time.Date(2025, 11, 9, 17, 30, 0, 0, time.UTC)
	blob, err := TextRenderer{}.Render(election, tallies, finalizedAt)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	report := string(blob)

	for _, want := range []string{
		"Municipal 2025",
		"Round 1",
		"finalized 2025-11-09 17:30 UTC",
		"Alice Rakoto",
		"Bob Randria",
		"Winner: Alice Rakoto with 42 votes",
		"Participation rate: 75.50%",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("Render() output missing %q:\n%s", want, report)
		}
	}

	// The winner line comes from the first (highest) tally row
	if strings.Index(report, "Alice Rakoto") > strings.Index(report, "Bob Randria") {
		t.Error("Render() lists candidates out of rank order")
	}
}

func TestTextRendererFallsBackToCandidateID(t *testing.T) {
	election := models.Election{ID: "election-2", Name: "Test", Type: "municipal"}
	tallies := []models.TallyRow{
		{ElectionID: "election-2", CandidateID: "cand-x", Round: 1, VoteCount: 7},
	}

	blob, err := TextRenderer{}.Render(election, tallies, time.Now())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(string(blob), "cand-x") {
		t.Error("Render() should fall back to the candidate ID when the name is empty")
	}
}

func TestTextRendererEmptyTallies(t *testing.T) {
	election := models.Election{ID: "election-3", Name: "Empty", Type: "municipal"}

	if _, err := (TextRenderer{}).Render(election, nil, time.Now()); err == nil {
		t.Error("Render() with no tallies should return an error")
	}
}
