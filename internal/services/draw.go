package services

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// EntropySource produces the seed a draw picks its winner from.
type EntropySource interface {
	Seed(c *chain.Context, roundID uint64) *big.Int
}

// EntropyFunc adapts a function to EntropySource.
type EntropyFunc func(c *chain.Context, roundID uint64) *big.Int

func (f EntropyFunc) Seed(c *chain.Context, roundID uint64) *big.Int { return f(c, roundID) }

// BlockEntropy hashes the block timestamp, the block randomness and the
// round id. Whoever produces blocks can bias it; it is not a fair beacon.
type BlockEntropy struct{}

func (BlockEntropy) Seed(c *chain.Context, roundID uint64) *big.Int {
	b := c.Block()
	h := crypto.Keccak256(
		common.BigToHash(new(big.Int).SetUint64(b.Timestamp)).Bytes(),
		b.Random.Bytes(),
		common.BigToHash(new(big.Int).SetUint64(roundID)).Bytes(),
	)
	return new(big.Int).SetBytes(h)
}

// SplitPool divides pool into the winner's prize and the platform fee. The
// fee absorbs the truncation remainder, so prize+fee == pool.
func SplitPool(pool *big.Int, feePercent uint64) (prize, fee *big.Int) {
	prize = new(big.Int).Mul(pool, new(big.Int).SetUint64(100-feePercent))
	prize.Quo(prize, big.NewInt(100))
	fee = new(big.Int).Sub(pool, prize)
	return prize, fee
}

// DrawWinner finalizes the current round: it picks a ticket, records the
// result, opens the next round and only then moves funds. If any transfer
// fails the error carries ErrTransferFailed and the ledger reverts the whole
// call. Anyone may call it.
func (p *SecretLotto) DrawWinner(c *chain.Context) (models.Round, error) {
	unlock, err := p.enter()
	if err != nil {
		return models.Round{}, err
	}
	defer unlock()

	tx := c.Tx()
	params, err := loadParams(tx)
	if err != nil {
		return models.Round{}, err
	}
	round, err := loadCurrentRound(tx)
	if err != nil {
		return models.Round{}, err
	}
	if round.TicketCount == 0 {
		return models.Round{}, fmt.Errorf("%w: round %d", ErrNoTicketsSold, round.ID)
	}

	seed := p.entropy.Seed(c, round.ID)
	index := new(big.Int).Mod(seed, new(big.Int).SetUint64(round.TicketCount)).Uint64()
	ticket, err := tx.Ticket(round.ID, index)
	if err != nil {
		return models.Round{}, fmt.Errorf("winning ticket %d: %w", index, err)
	}
	prize, fee := SplitPool(round.TotalPool, params.PlatformFee)
	treasury := params.Treasury()

	round.State = models.RoundDrawn
	round.Winner = ticket.Owner
	round.PrizeAmount = prize
	round.EndTime = c.Block().Timestamp
	if err := tx.PutRound(round); err != nil {
		return models.Round{}, err
	}
	if err := openRound(c, round.ID+1); err != nil {
		return models.Round{}, err
	}
	c.Emit(models.WinnerDrawn{RoundID: round.ID, Winner: ticket.Owner, Prize: new(big.Int).Set(prize)})
	c.Emit(models.FeeCollected{RoundID: round.ID, Recipient: treasury, Amount: new(big.Int).Set(fee)})

	if err := p.pay(c, params.PayoutMode, ticket.Owner, prize); err != nil {
		return models.Round{}, err
	}
	if err := p.pay(c, params.PayoutMode, treasury, fee); err != nil {
		return models.Round{}, err
	}
	return round, nil
}

// Withdraw pays out the caller's credited balance (pull payouts).
func (p *SecretLotto) Withdraw(c *chain.Context) (*big.Int, error) {
	unlock, err := p.enter()
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx := c.Tx()
	owed, err := tx.Pending(c.Caller())
	if err != nil {
		return nil, err
	}
	if owed.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToClaim, c.Caller().Hex())
	}
	if err := tx.SetPending(c.Caller(), new(big.Int)); err != nil {
		return nil, err
	}
	c.Emit(models.Withdrawn{Account: c.Caller(), Amount: new(big.Int).Set(owed)})
	if err := c.Transfer(c.Caller(), owed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return owed, nil
}

// PendingWithdrawal returns what addr may withdraw.
func (p *SecretLotto) PendingWithdrawal(tx store.Tx, addr common.Address) (*big.Int, error) {
	return tx.Pending(addr)
}

func (p *SecretLotto) pay(c *chain.Context, mode models.PayoutMode, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if mode == models.PayoutPull {
		owed, err := c.Tx().Pending(to)
		if err != nil {
			return err
		}
		return c.Tx().SetPending(to, owed.Add(owed, amount))
	}
	if err := c.Transfer(to, amount); err != nil {
		return fmt.Errorf("%w: pay %s to %s: %v", ErrTransferFailed, amount, to.Hex(), err)
	}
	return nil
}
