package services

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// BuyTicket stakes the value attached to c on commitment in the current
// round and returns the new ticket id. Identical commitments are accepted;
// every call creates a new ticket.
func (p *SecretLotto) BuyTicket(c *chain.Context, commitment common.Hash) (uint64, error) {
	unlock, err := p.enter()
	if err != nil {
		return 0, err
	}
	defer unlock()

	tx := c.Tx()
	params, err := loadParams(tx)
	if err != nil {
		return 0, err
	}
	round, err := loadCurrentRound(tx)
	if err != nil {
		return 0, err
	}
	if round.State != models.RoundOpen {
		return 0, fmt.Errorf("%w: round %d is %s", ErrRoundNotOpen, round.ID, round.State)
	}
	stake := c.Value()
	if stake.Cmp(params.MinBet) < 0 {
		return 0, fmt.Errorf("%w: %s < %s", ErrBetTooLow, stake, params.MinBet)
	}
	if stake.Cmp(params.MaxBet) > 0 {
		return 0, fmt.Errorf("%w: %s > %s", ErrBetTooHigh, stake, params.MaxBet)
	}

	round.TotalPool.Add(round.TotalPool, stake)
	ticketID, err := recordTicket(tx, &round, c.Caller(), commitment)
	if err != nil {
		return 0, err
	}
	if err := tx.PutRound(round); err != nil {
		return 0, err
	}
	c.Emit(models.TicketPurchased{RoundID: round.ID, Player: c.Caller(), TicketID: ticketID})
	return ticketID, nil
}

// CurrentRound returns a snapshot of the open round.
func (p *SecretLotto) CurrentRound(tx store.Tx) (models.Round, error) {
	return loadCurrentRound(tx)
}

// CurrentRoundID returns the id of the open round.
func (p *SecretLotto) CurrentRoundID(tx store.Tx) (uint64, error) {
	id, err := tx.CurrentRoundID()
	if err == nil && id == 0 {
		return 0, ErrNotInitialized
	}
	return id, err
}

// Round returns a snapshot of round id.
func (p *SecretLotto) Round(tx store.Tx, id uint64) (models.Round, error) {
	return loadRound(tx, id)
}

// RoundTickets returns the number of tickets sold in round id.
func (p *SecretLotto) RoundTickets(tx store.Tx, id uint64) (uint64, error) {
	r, err := loadRound(tx, id)
	if err != nil {
		return 0, err
	}
	return r.TicketCount, nil
}

// Rounds returns every round, oldest first.
func (p *SecretLotto) Rounds(tx store.Tx) ([]models.Round, error) {
	return tx.Rounds()
}
