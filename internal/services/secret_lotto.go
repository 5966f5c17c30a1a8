package services

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// Ether is one ether in wei.
var Ether = big.NewInt(1_000_000_000_000_000_000)

// Settings are the parameters a lottery starts with.
type Settings struct {
	MinBet       *big.Int
	MaxBet       *big.Int
	PlatformFee  uint64
	FeeRecipient common.Address // zero means the owner
	PayoutMode   models.PayoutMode
}

// DefaultSettings returns the stock deployment: bets between 0.001 and
// 1 ether, a 5% fee, prizes pushed to the winner.
func DefaultSettings() Settings {
	return Settings{
		MinBet:      new(big.Int).Div(Ether, big.NewInt(1000)),
		MaxBet:      new(big.Int).Set(Ether),
		PlatformFee: 5,
		PayoutMode:  models.PayoutPush,
	}
}

// SecretLotto is the program hosted by the ledger. Its operations take the
// call frame of the ledger they run in; all state lives in the frame's store
// transaction.
type SecretLotto struct {
	entropy EntropySource
	// locked is held while funds move. The ledger serializes calls, so it
	// is only ever observed by re-entrant frames of the same call.
	locked bool
}

// NewSecretLotto creates the program. A nil entropy uses BlockEntropy.
func NewSecretLotto(entropy EntropySource) *SecretLotto {
	if entropy == nil {
		entropy = BlockEntropy{}
	}
	return &SecretLotto{entropy: entropy}
}

// Init makes the caller the owner, stores settings and opens round 1.
func (p *SecretLotto) Init(c *chain.Context, s Settings) error {
	tx := c.Tx()
	id, err := tx.CurrentRoundID()
	if err != nil {
		return err
	}
	if id != 0 {
		return ErrInitialized
	}
	if s.PayoutMode == "" {
		s.PayoutMode = models.PayoutPush
	}
	if s.PayoutMode != models.PayoutPush && s.PayoutMode != models.PayoutPull {
		return fmt.Errorf("%w: payout mode %q", ErrInvalidRange, s.PayoutMode)
	}
	if err := checkBetLimits(s.MinBet, s.MaxBet); err != nil {
		return err
	}
	if err := checkFee(s.PlatformFee); err != nil {
		return err
	}
	params := models.Params{
		Owner:        c.Caller(),
		MinBet:       s.MinBet,
		MaxBet:       s.MaxBet,
		PlatformFee:  s.PlatformFee,
		FeeRecipient: s.FeeRecipient,
		PayoutMode:   s.PayoutMode,
	}
	if err := tx.PutParams(params); err != nil {
		return err
	}
	return openRound(c, 1)
}

// enter takes the reentrancy lock.
func (p *SecretLotto) enter() (func(), error) {
	if p.locked {
		return nil, ErrReentrantCall
	}
	p.locked = true
	return func() { p.locked = false }, nil
}

func loadParams(tx store.Tx) (models.Params, error) {
	params, err := tx.Params()
	if errors.Is(err, store.ErrNotFound) {
		return models.Params{}, ErrNotInitialized
	}
	return params, err
}

func loadCurrentRound(tx store.Tx) (models.Round, error) {
	id, err := tx.CurrentRoundID()
	if err != nil {
		return models.Round{}, err
	}
	if id == 0 {
		return models.Round{}, ErrNotInitialized
	}
	return tx.Round(id)
}

func loadRound(tx store.Tx, id uint64) (models.Round, error) {
	r, err := tx.Round(id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Round{}, fmt.Errorf("%w: round %d", ErrNotFound, id)
	}
	return r, err
}

// openRound creates round id in state OPEN and makes it current.
func openRound(c *chain.Context, id uint64) error {
	tx := c.Tx()
	r := models.Round{
		ID:          id,
		State:       models.RoundOpen,
		TotalPool:   new(big.Int),
		PrizeAmount: new(big.Int),
		StartTime:   c.Block().Timestamp,
	}
	if err := tx.PutRound(r); err != nil {
		return err
	}
	return tx.SetCurrentRoundID(id)
}
