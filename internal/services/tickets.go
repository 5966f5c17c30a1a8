package services

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/commitment"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// recordTicket appends a ticket to round r under the next sequential id,
// adds it to the owner's history and bumps r's ticket count. The caller
// persists r in the same transaction.
func recordTicket(tx store.Tx, r *models.Round, owner common.Address, c common.Hash) (uint64, error) {
	id := r.TicketCount
	t := models.Ticket{
		ID:         id,
		RoundID:    r.ID,
		Owner:      owner,
		Commitment: c,
	}
	if err := tx.PutTicket(t); err != nil {
		return 0, err
	}
	if err := tx.AppendHistory(owner, models.HistoryEntry{RoundID: r.ID, TicketID: id}); err != nil {
		return 0, err
	}
	r.TicketCount++
	return id, nil
}

// RevealBet opens the commitment of a ticket. It works in any round state
// and may be submitted by anyone who knows the salt.
func (p *SecretLotto) RevealBet(c *chain.Context, roundID, ticketID uint64, amount *big.Int, salt common.Hash) error {
	tx := c.Tx()
	t, err := tx.Ticket(roundID, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: ticket %d in round %d", ErrNotFound, ticketID, roundID)
	}
	if err != nil {
		return err
	}
	if t.Revealed {
		return fmt.Errorf("%w: ticket %d in round %d", ErrAlreadyRevealed, ticketID, roundID)
	}
	if !commitment.Verify(t.Commitment, amount, salt) {
		return fmt.Errorf("%w: ticket %d in round %d", ErrInvalidReveal, ticketID, roundID)
	}

	t.Revealed = true
	t.RevealedAmount = new(big.Int).Set(amount)
	if err := tx.PutTicket(t); err != nil {
		return err
	}
	c.Emit(models.BetRevealed{RoundID: roundID, TicketID: ticketID, Player: t.Owner})
	return nil
}

// Ticket returns a single ticket.
func (p *SecretLotto) Ticket(tx store.Tx, roundID, ticketID uint64) (models.Ticket, error) {
	t, err := tx.Ticket(roundID, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Ticket{}, fmt.Errorf("%w: ticket %d in round %d", ErrNotFound, ticketID, roundID)
	}
	return t, err
}

// PlayerHistory returns every ticket bought by player in submission order.
func (p *SecretLotto) PlayerHistory(tx store.Tx, player common.Address) ([]models.HistoryEntry, error) {
	return tx.History(player)
}
