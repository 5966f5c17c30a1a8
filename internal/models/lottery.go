package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RoundState is the lifecycle state of a round. The numeric values are part
// of the wire format.
type RoundState uint8

const (
	RoundOpen RoundState = iota
	RoundDrawn
)

// String returns the upper-case name of the state.
func (s RoundState) String() string {
	switch s {
	case RoundOpen:
		return "OPEN"
	case RoundDrawn:
		return "DRAWN"
	default:
		return "UNKNOWN"
	}
}

// PayoutMode selects how a draw hands funds to the winner.
type PayoutMode string

const (
	// PayoutPush transfers the prize to the winner inside the draw.
	PayoutPush PayoutMode = "push"
	// PayoutPull credits the prize and lets the winner withdraw it later.
	PayoutPull PayoutMode = "pull"
)

// Round represents one lottery cycle. A round is OPEN while it accepts
// tickets and becomes DRAWN, and immutable, once a winner has been paid.
type Round struct {
	ID          uint64         `json:"roundId"`
	State       RoundState     `json:"state"`
	TotalPool   *big.Int       `json:"totalPool"`
	TicketCount uint64         `json:"ticketCount"`
	Winner      common.Address `json:"winner"`      // zero address until drawn
	PrizeAmount *big.Int       `json:"prizeAmount"` // zero until drawn
	StartTime   uint64         `json:"startTime"`
	EndTime     uint64         `json:"endTime"` // zero until drawn
}

// Copy returns a deep copy of the round so callers can't alias big values.
func (r Round) Copy() Round {
	r.TotalPool = cloneInt(r.TotalPool)
	r.PrizeAmount = cloneInt(r.PrizeAmount)
	return r
}

// Ticket is a single bet within a round, bound to a commitment.
// ID is the ticket's index inside its round.
type Ticket struct {
	ID             uint64         `json:"ticketId"`
	RoundID        uint64         `json:"roundId"`
	Owner          common.Address `json:"owner"`
	Commitment     common.Hash    `json:"commitment"`
	Revealed       bool           `json:"revealed"`
	RevealedAmount *big.Int       `json:"revealedAmount,omitempty"`
}

// Copy returns a deep copy of the ticket.
func (t Ticket) Copy() Ticket {
	t.RevealedAmount = cloneInt(t.RevealedAmount)
	return t
}

// Params holds the administrative settings that bound the lottery.
// FeeRecipient defaults to Owner when left as the zero address.
type Params struct {
	Owner        common.Address `json:"owner"`
	MinBet       *big.Int       `json:"minBet"`
	MaxBet       *big.Int       `json:"maxBet"`
	PlatformFee  uint64         `json:"platformFee"` // percent, 0-100
	FeeRecipient common.Address `json:"feeRecipient"`
	PayoutMode   PayoutMode     `json:"payoutMode"`
}

// Copy returns a deep copy of the params.
func (p Params) Copy() Params {
	p.MinBet = cloneInt(p.MinBet)
	p.MaxBet = cloneInt(p.MaxBet)
	return p
}

// Treasury returns the identity that receives the platform fee.
func (p Params) Treasury() common.Address {
	if p.FeeRecipient == (common.Address{}) {
		return p.Owner
	}
	return p.FeeRecipient
}

// HistoryEntry references one ticket bought by a player.
type HistoryEntry struct {
	RoundID  uint64 `json:"roundId"`
	TicketID uint64 `json:"ticketId"`
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
