// Package store holds the durable state of the lottery ledger.
//
// Every ledger call runs inside exactly one Update transaction. A callback
// that returns an error leaves the store as it was before the call.
package store

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrReadOnly is returned when a write is attempted in a View transaction.
	ErrReadOnly = errors.New("store: read-only transaction")
)

// Tx is a view of the ledger state inside one transaction.
type Tx interface {
	// Params returns ErrNotFound before the lottery is initialized.
	Params() (models.Params, error)
	PutParams(p models.Params) error

	// CurrentRoundID returns 0 before the lottery is initialized.
	CurrentRoundID() (uint64, error)
	SetCurrentRoundID(id uint64) error

	Round(id uint64) (models.Round, error)
	PutRound(r models.Round) error
	// Rounds returns every round ordered by id.
	Rounds() ([]models.Round, error)

	Ticket(roundID, ticketID uint64) (models.Ticket, error)
	PutTicket(t models.Ticket) error

	// History returns a player's tickets in submission order.
	History(player common.Address) ([]models.HistoryEntry, error)
	AppendHistory(player common.Address, e models.HistoryEntry) error

	// Balance returns zero for unknown accounts.
	Balance(addr common.Address) (*big.Int, error)
	SetBalance(addr common.Address, v *big.Int) error

	// Pending returns the credited, not yet withdrawn amount for addr.
	Pending(addr common.Address) (*big.Int, error)
	SetPending(addr common.Address, v *big.Int) error
}

// Store opens transactions against the ledger state.
type Store interface {
	// View runs fn in a read-only transaction.
	View(fn func(Tx) error) error
	// Update runs fn in a read-write transaction and commits only if fn
	// returns nil.
	Update(fn func(Tx) error) error
	Close() error
}
