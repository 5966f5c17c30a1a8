package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a log entry emitted by a committed ledger call.
type Event interface {
	// EventName returns the name the event is published under.
	EventName() string
}

// TicketPurchased is emitted for every successful buy.
type TicketPurchased struct {
	RoundID  uint64         `json:"roundId"`
	Player   common.Address `json:"player"`
	TicketID uint64         `json:"ticketId"`
}

func (TicketPurchased) EventName() string { return "TicketPurchased" }

// BetRevealed is emitted when a ticket's commitment is opened.
type BetRevealed struct {
	RoundID  uint64         `json:"roundId"`
	TicketID uint64         `json:"ticketId"`
	Player   common.Address `json:"player"`
}

func (BetRevealed) EventName() string { return "BetRevealed" }

// WinnerDrawn is emitted when a round is finalized.
type WinnerDrawn struct {
	RoundID uint64         `json:"roundId"`
	Winner  common.Address `json:"winner"`
	Prize   *big.Int       `json:"prize"`
}

func (WinnerDrawn) EventName() string { return "WinnerDrawn" }

// FeeCollected is emitted alongside WinnerDrawn for the fee share.
type FeeCollected struct {
	RoundID   uint64         `json:"roundId"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

func (FeeCollected) EventName() string { return "FeeCollected" }

type BetLimitsUpdated struct {
	MinBet *big.Int `json:"minBet"`
	MaxBet *big.Int `json:"maxBet"`
}

func (BetLimitsUpdated) EventName() string { return "BetLimitsUpdated" }

type PlatformFeeUpdated struct {
	PlatformFee uint64 `json:"platformFee"`
}

func (PlatformFeeUpdated) EventName() string { return "PlatformFeeUpdated" }

// Withdrawn is emitted when a credited balance is paid out in pull mode.
type Withdrawn struct {
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

func (Withdrawn) EventName() string { return "Withdrawn" }
