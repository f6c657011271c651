// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package archive

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mirado-ravelo/safidy/models"
)

// Renderer produces the archived results document attached to a final
// result. The blob is the only record of an election once its raw votes
// are purged.
type Renderer interface {
	Render(election models.Election, rankedTallies []models.TallyRow, finalizedAt time.Time) ([]byte, error)
}

// TextRenderer renders a plain-text tabular report.
type TextRenderer struct{}

func (TextRenderer) Render(election models.Election, rankedTallies []models.TallyRow, finalizedAt time.Time) ([]byte, error) {
	if len(rankedTallies) == 0 {
		return nil, fmt.Errorf("no tallies to render for election %s", election.ID)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Final results: %s (%s)\n", election.Name, election.Type)
	fmt.Fprintf(&buf, "Round %d, finalized %s\n\n", rankedTallies[0].Round,
		finalizedAt.UTC().Format("2006-01-02 15:04 UTC"))

	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tCANDIDATE\tVOTES")
	for i, row := range rankedTallies {
		name := row.CandidateName
		if name == "" {
			name = row.CandidateID
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, name, row.VoteCount)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render results table: %w", err)
	}

	winner := rankedTallies[0]
	name := winner.CandidateName
	if name == "" {
		name = winner.CandidateID
	}
	fmt.Fprintf(&buf, "\nWinner: %s with %d votes\n", name, winner.VoteCount)
	fmt.Fprintf(&buf, "Participation rate: %.2f%%\n", winner.ParticipationRate)

	return buf.Bytes(), nil
}
