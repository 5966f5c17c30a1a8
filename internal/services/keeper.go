package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/logger"
	"github.com/robfig/cron/v3"
)

// Keeper triggers draws on a cron schedule from a fixed identity. Draws are
// permissionless, so the keeper needs no special role.
type Keeper struct {
	service  *LotteryService
	identity common.Address
	timeout  time.Duration
	cron     *cron.Cron
}

// NewKeeper schedules draws for service. schedule accepts standard five
// field cron expressions and descriptors such as "@every 1h".
func NewKeeper(service *LotteryService, identity common.Address, schedule string) (*Keeper, error) {
	k := &Keeper{
		service:  service,
		identity: identity,
		timeout:  30 * time.Second,
		cron:     cron.New(),
	}
	if _, err := k.cron.AddFunc(schedule, k.Tick); err != nil {
		return nil, fmt.Errorf("keeper schedule %q: %w", schedule, err)
	}
	return k, nil
}

// Start runs the schedule in the background.
func (k *Keeper) Start() {
	logger.Infof("Keeper started: identity=%s", k.identity.Hex())
	k.cron.Start()
}

// Stop halts the schedule and waits for a running draw to finish.
func (k *Keeper) Stop() {
	<-k.cron.Stop().Done()
	logger.Info("Keeper stopped.")
}

// Tick attempts one draw. An empty round is skipped.
func (k *Keeper) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	_, err := k.service.DrawWinner(ctx, k.identity)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoTicketsSold):
		logger.Info("Keeper: no tickets sold, skipping draw.")
	default:
		logger.Warningf("Keeper: draw failed: %v", err)
	}
}
