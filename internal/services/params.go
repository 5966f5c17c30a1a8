package services

import (
	"fmt"
	"math/big"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// UpdateBetLimits replaces minBet and maxBet. Owner only.
func (p *SecretLotto) UpdateBetLimits(c *chain.Context, newMin, newMax *big.Int) error {
	params, err := ownerParams(c)
	if err != nil {
		return err
	}
	if err := checkBetLimits(newMin, newMax); err != nil {
		return err
	}
	params.MinBet = newMin
	params.MaxBet = newMax
	if err := c.Tx().PutParams(params); err != nil {
		return err
	}
	c.Emit(models.BetLimitsUpdated{MinBet: new(big.Int).Set(newMin), MaxBet: new(big.Int).Set(newMax)})
	return nil
}

// UpdatePlatformFee replaces the fee percentage. Owner only.
func (p *SecretLotto) UpdatePlatformFee(c *chain.Context, percent uint64) error {
	params, err := ownerParams(c)
	if err != nil {
		return err
	}
	if err := checkFee(percent); err != nil {
		return err
	}
	params.PlatformFee = percent
	if err := c.Tx().PutParams(params); err != nil {
		return err
	}
	c.Emit(models.PlatformFeeUpdated{PlatformFee: percent})
	return nil
}

// Params returns the current settings.
func (p *SecretLotto) Params(tx store.Tx) (models.Params, error) {
	return loadParams(tx)
}

func ownerParams(c *chain.Context) (models.Params, error) {
	params, err := loadParams(c.Tx())
	if err != nil {
		return models.Params{}, err
	}
	if c.Caller() != params.Owner {
		return models.Params{}, fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, c.Caller().Hex())
	}
	return params, nil
}

func checkBetLimits(minBet, maxBet *big.Int) error {
	if minBet == nil || maxBet == nil || minBet.Sign() < 0 || maxBet.Sign() < 0 {
		return fmt.Errorf("%w: bet limits must be non-negative", ErrInvalidRange)
	}
	if minBet.Cmp(maxBet) > 0 {
		return fmt.Errorf("%w: min bet %s exceeds max bet %s", ErrInvalidRange, minBet, maxBet)
	}
	return nil
}

func checkFee(percent uint64) error {
	if percent > 100 {
		return fmt.Errorf("%w: platform fee %d exceeds 100", ErrInvalidRange, percent)
	}
	return nil
}
