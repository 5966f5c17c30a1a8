package services

import "errors"

// Errors returned by lottery operations. Every one of them leaves the ledger
// exactly as it was before the call.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidRange    = errors.New("invalid range")
	ErrRoundNotOpen    = errors.New("round not open")
	ErrBetTooLow       = errors.New("bet too low")
	ErrBetTooHigh      = errors.New("bet too high")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyRevealed = errors.New("already revealed")
	ErrInvalidReveal   = errors.New("invalid reveal")
	ErrNoTicketsSold   = errors.New("no tickets sold")
	ErrTransferFailed  = errors.New("transfer failed")
	ErrReentrantCall   = errors.New("reentrant call")
	ErrNothingToClaim  = errors.New("nothing to withdraw")
	ErrNotInitialized  = errors.New("lottery not initialized")
	ErrInitialized     = errors.New("lottery already initialized")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidRange, "InvalidRange"},
	{ErrRoundNotOpen, "RoundNotOpen"},
	{ErrBetTooLow, "BetTooLow"},
	{ErrBetTooHigh, "BetTooHigh"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyRevealed, "AlreadyRevealed"},
	{ErrInvalidReveal, "InvalidReveal"},
	{ErrNoTicketsSold, "NoTicketsSold"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrReentrantCall, "ReentrantCall"},
	{ErrNothingToClaim, "NothingToWithdraw"},
	{ErrNotInitialized, "NotInitialized"},
	{ErrInitialized, "AlreadyInitialized"},
}

// Kind names the class of err, or returns "" if err is not a lottery error.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
