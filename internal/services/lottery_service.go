package services

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/logger"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/metrics"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// LotteryService exposes the lottery program to off-ledger callers. Every
// mutating method is one ledger call; every read is a snapshot query.
type LotteryService struct {
	ledger *chain.Ledger
	lotto  *SecretLotto
}

// NewLotteryService creates a service that runs lotto on ledger.
func NewLotteryService(ledger *chain.Ledger, lotto *SecretLotto) *LotteryService {
	return &LotteryService{
		ledger: ledger,
		lotto:  lotto,
	}
}

// Ledger returns the hosting ledger.
func (s *LotteryService) Ledger() *chain.Ledger {
	return s.ledger
}

// Lotto returns the hosted program, for callers that re-enter it from
// receiver code.
func (s *LotteryService) Lotto() *SecretLotto {
	return s.lotto
}

// Deploy initializes the lottery with owner as its owner. It returns
// ErrInitialized if the store already holds a lottery.
func (s *LotteryService) Deploy(ctx context.Context, owner common.Address, settings Settings) error {
	_, err := s.ledger.Execute(ctx, chain.Msg{From: owner}, func(c *chain.Context) error {
		return s.lotto.Init(c, settings)
	})
	if err != nil {
		return err
	}
	logger.Infof("Lottery deployed: owner=%s minBet=%s maxBet=%s fee=%d%% payout=%s",
		owner.Hex(), settings.MinBet, settings.MaxBet, settings.PlatformFee, settings.PayoutMode)
	metrics.SetPool(1, new(big.Int))
	return nil
}

// BuyTicket stakes value from player on commitment.
func (s *LotteryService) BuyTicket(ctx context.Context, player common.Address, commitment common.Hash, value *big.Int) (models.TicketPurchased, error) {
	receipt, err := s.ledger.Execute(ctx, chain.Msg{From: player, Value: value}, func(c *chain.Context) error {
		_, err := s.lotto.BuyTicket(c, commitment)
		return err
	})
	if err != nil {
		s.fail("buy_ticket", err)
		return models.TicketPurchased{}, err
	}
	ev, _ := findEvent[models.TicketPurchased](receipt)
	if r, err := s.GetCurrentRound(ctx); err == nil {
		metrics.RecordTicket(r.ID, r.TotalPool)
	}
	logger.Infof("Ticket purchased: round=%d ticket=%d player=%s value=%s", ev.RoundID, ev.TicketID, player.Hex(), value)
	return ev, nil
}

// RevealBet opens the commitment of a ticket.
func (s *LotteryService) RevealBet(ctx context.Context, caller common.Address, roundID, ticketID uint64, amount *big.Int, salt common.Hash) (models.BetRevealed, error) {
	receipt, err := s.ledger.Execute(ctx, chain.Msg{From: caller}, func(c *chain.Context) error {
		return s.lotto.RevealBet(c, roundID, ticketID, amount, salt)
	})
	if err != nil {
		s.fail("reveal_bet", err)
		return models.BetRevealed{}, err
	}
	ev, _ := findEvent[models.BetRevealed](receipt)
	metrics.RecordReveal()
	logger.Infof("Bet revealed: round=%d ticket=%d player=%s", roundID, ticketID, ev.Player.Hex())
	return ev, nil
}

// DrawWinner finalizes the current round on behalf of caller.
func (s *LotteryService) DrawWinner(ctx context.Context, caller common.Address) (models.WinnerDrawn, error) {
	var drawn models.Round
	receipt, err := s.ledger.Execute(ctx, chain.Msg{From: caller}, func(c *chain.Context) error {
		var err error
		drawn, err = s.lotto.DrawWinner(c)
		return err
	})
	if err != nil {
		s.fail("draw_winner", err)
		return models.WinnerDrawn{}, err
	}
	ev, _ := findEvent[models.WinnerDrawn](receipt)
	fee, _ := findEvent[models.FeeCollected](receipt)
	metrics.RecordDraw(drawn.ID, ev.Prize, fee.Amount)
	metrics.SetPool(drawn.ID+1, new(big.Int))
	logger.Infof("Winner drawn: round=%d winner=%s prize=%s fee=%s tickets=%d",
		ev.RoundID, ev.Winner.Hex(), ev.Prize, fee.Amount, drawn.TicketCount)
	return ev, nil
}

// Withdraw pays caller's credited winnings or fees.
func (s *LotteryService) Withdraw(ctx context.Context, caller common.Address) (models.Withdrawn, error) {
	receipt, err := s.ledger.Execute(ctx, chain.Msg{From: caller}, func(c *chain.Context) error {
		_, err := s.lotto.Withdraw(c)
		return err
	})
	if err != nil {
		s.fail("withdraw", err)
		return models.Withdrawn{}, err
	}
	ev, _ := findEvent[models.Withdrawn](receipt)
	logger.Infof("Withdrawal: account=%s amount=%s", caller.Hex(), ev.Amount)
	return ev, nil
}

// UpdateBetLimits sets new bet bounds. Owner only.
func (s *LotteryService) UpdateBetLimits(ctx context.Context, caller common.Address, newMin, newMax *big.Int) error {
	_, err := s.ledger.Execute(ctx, chain.Msg{From: caller}, func(c *chain.Context) error {
		return s.lotto.UpdateBetLimits(c, newMin, newMax)
	})
	if err != nil {
		s.fail("update_bet_limits", err)
		return err
	}
	logger.Infof("Bet limits updated: min=%s max=%s", newMin, newMax)
	return nil
}

// UpdatePlatformFee sets a new fee percentage. Owner only.
func (s *LotteryService) UpdatePlatformFee(ctx context.Context, caller common.Address, percent uint64) error {
	_, err := s.ledger.Execute(ctx, chain.Msg{From: caller}, func(c *chain.Context) error {
		return s.lotto.UpdatePlatformFee(c, percent)
	})
	if err != nil {
		s.fail("update_platform_fee", err)
		return err
	}
	logger.Infof("Platform fee updated: %d%%", percent)
	return nil
}

// GetCurrentRound returns a snapshot of the open round.
func (s *LotteryService) GetCurrentRound(ctx context.Context) (models.Round, error) {
	return query(ctx, s, func(tx store.Tx) (models.Round, error) { return s.lotto.CurrentRound(tx) })
}

// GetRound returns a snapshot of any round.
func (s *LotteryService) GetRound(ctx context.Context, roundID uint64) (models.Round, error) {
	return query(ctx, s, func(tx store.Tx) (models.Round, error) { return s.lotto.Round(tx, roundID) })
}

// GetRounds returns every round, oldest first.
func (s *LotteryService) GetRounds(ctx context.Context) ([]models.Round, error) {
	return query(ctx, s, s.lotto.Rounds)
}

// GetRoundTickets returns the number of tickets sold in a round.
func (s *LotteryService) GetRoundTickets(ctx context.Context, roundID uint64) (uint64, error) {
	return query(ctx, s, func(tx store.Tx) (uint64, error) { return s.lotto.RoundTickets(tx, roundID) })
}

// GetTicket returns a single ticket.
func (s *LotteryService) GetTicket(ctx context.Context, roundID, ticketID uint64) (models.Ticket, error) {
	return query(ctx, s, func(tx store.Tx) (models.Ticket, error) { return s.lotto.Ticket(tx, roundID, ticketID) })
}

// GetPlayerHistory returns the tickets a player bought, in order.
func (s *LotteryService) GetPlayerHistory(ctx context.Context, player common.Address) ([]models.HistoryEntry, error) {
	return query(ctx, s, func(tx store.Tx) ([]models.HistoryEntry, error) { return s.lotto.PlayerHistory(tx, player) })
}

// GetParams returns the current settings.
func (s *LotteryService) GetParams(ctx context.Context) (models.Params, error) {
	return query(ctx, s, s.lotto.Params)
}

// MinBet returns the smallest accepted stake.
func (s *LotteryService) MinBet(ctx context.Context) (*big.Int, error) {
	p, err := s.GetParams(ctx)
	return p.MinBet, err
}

// MaxBet returns the largest accepted stake.
func (s *LotteryService) MaxBet(ctx context.Context) (*big.Int, error) {
	p, err := s.GetParams(ctx)
	return p.MaxBet, err
}

// PlatformFee returns the fee percentage.
func (s *LotteryService) PlatformFee(ctx context.Context) (uint64, error) {
	p, err := s.GetParams(ctx)
	return p.PlatformFee, err
}

// Owner returns the owner identity.
func (s *LotteryService) Owner(ctx context.Context) (common.Address, error) {
	p, err := s.GetParams(ctx)
	return p.Owner, err
}

// CurrentRoundID returns the id of the open round.
func (s *LotteryService) CurrentRoundID(ctx context.Context) (uint64, error) {
	return query(ctx, s, s.lotto.CurrentRoundID)
}

// PendingWithdrawal returns what addr may withdraw.
func (s *LotteryService) PendingWithdrawal(ctx context.Context, addr common.Address) (*big.Int, error) {
	return query(ctx, s, func(tx store.Tx) (*big.Int, error) { return s.lotto.PendingWithdrawal(tx, addr) })
}

// Balance returns the native balance of addr.
func (s *LotteryService) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.ledger.Balance(ctx, addr)
}

func (s *LotteryService) fail(op string, err error) {
	kind := Kind(err)
	metrics.RecordFailure(op, kind)
	if kind == "" && !errors.Is(err, chain.ErrInsufficientFunds) {
		logger.Errorf("%s failed: %v", op, err)
		return
	}
	logger.Infof("%s rejected: %v", op, err)
}

func query[T any](ctx context.Context, s *LotteryService, fn func(store.Tx) (T, error)) (T, error) {
	var out T
	err := s.ledger.Query(ctx, func(tx store.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func findEvent[T models.Event](r chain.Receipt) (T, bool) {
	for _, ev := range r.Events {
		if typed, ok := ev.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}
