// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers implements the HTTP handlers of the voting service.

Handlers are grouped by concern:

  - authflow: the three-step authentication state machine
    (identity, facial match, OTP) over auth sessions
  - voting: vote casting and the has-voted check
  - tally: per-candidate tally maintenance and election finalization,
    always inside the casting/closing transaction
  - elections: election administration (create, candidates, open,
    next round, close)
  - results: tally listing, final results, publication
  - voters: voter-roll registration with derived eligibility

Each handler holds a *sql.DB and the parsed config; collaborators (token
store, face comparer, notifier, archive renderer) are injected through the
constructors.
*/
package handlers
