package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cardvault/walletcore/internal/card"
	"github.com/cardvault/walletcore/internal/host"
)

// sessionContext is the per-attempt state: which cards may authenticate,
// whether pairing is required, and the instruction text shown while the
// user taps. Created at initiate, discarded at any terminal state.
type sessionContext struct {
	id              uuid.UUID
	heading         string
	message         string
	acceptableCards card.Mask
	pairRequired    bool
}

// Beep counts tell the user how long to hold the card: one beep per
// remaining card operation in the attempt.
func serialBeepCount(pairRequired bool) int {
	if pairRequired {
		return 3
	}
	return 2
}

func challengeBeepCount(pairRequired bool) int {
	if pairRequired {
		return 2
	}
	return 1
}

func holdMessage(beeps int) string {
	return fmt.Sprintf("Keep the card in place until %d beep(s)", beeps)
}

// newSessionContext reads the initiate request into a fresh attempt context.
func newSessionContext(req *host.InitiateRequest) sessionContext {
	ctx := sessionContext{
		id:              uuid.New(),
		acceptableCards: card.MaskAll,
		heading:         "Tap a card",
	}

	if req.CardIndex != nil {
		ctx.acceptableCards = card.MaskForIndex(*req.CardIndex)
		ctx.heading = fmt.Sprintf("Tap card #%d", *req.CardIndex)
	}
	if req.PairCard != nil {
		ctx.pairRequired = *req.PairCard
	}

	ctx.message = holdMessage(serialBeepCount(ctx.pairRequired))
	return ctx
}

// advanceToChallenge updates the instruction for the challenge round.
func (s *sessionContext) advanceToChallenge() {
	s.message = holdMessage(challengeBeepCount(s.pairRequired))
}

// advanceToResult updates the instruction while the host verifies.
func (s *sessionContext) advanceToResult() {
	if s.pairRequired {
		s.message = holdMessage(1)
		return
	}
	s.message = "..."
}
