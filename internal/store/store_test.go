package store

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	alice := common.HexToAddress("0xa11ce")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(func(tx Tx) error {
				require.NoError(t, tx.PutParams(models.Params{
					Owner:       alice,
					MinBet:      big.NewInt(1),
					MaxBet:      big.NewInt(10),
					PlatformFee: 5,
				}))
				require.NoError(t, tx.SetCurrentRoundID(2))
				for id := uint64(2); id >= 1; id-- {
					require.NoError(t, tx.PutRound(models.Round{ID: id, TotalPool: big.NewInt(int64(id)), PrizeAmount: new(big.Int)}))
				}
				require.NoError(t, tx.PutTicket(models.Ticket{ID: 0, RoundID: 1, Owner: alice}))
				require.NoError(t, tx.AppendHistory(alice, models.HistoryEntry{RoundID: 1, TicketID: 0}))
				require.NoError(t, tx.AppendHistory(alice, models.HistoryEntry{RoundID: 1, TicketID: 3}))
				require.NoError(t, tx.AppendHistory(alice, models.HistoryEntry{RoundID: 2, TicketID: 0}))
				require.NoError(t, tx.SetBalance(alice, big.NewInt(42)))
				return tx.SetPending(alice, big.NewInt(7))
			})
			require.NoError(t, err)

			err = s.View(func(tx Tx) error {
				p, err := tx.Params()
				require.NoError(t, err)
				assert.Equal(t, alice, p.Owner)
				assert.Equal(t, uint64(5), p.PlatformFee)
				assert.Equal(t, 0, p.MaxBet.Cmp(big.NewInt(10)))

				id, err := tx.CurrentRoundID()
				require.NoError(t, err)
				assert.Equal(t, uint64(2), id)

				rounds, err := tx.Rounds()
				require.NoError(t, err)
				require.Len(t, rounds, 2)
				assert.Equal(t, uint64(1), rounds[0].ID)
				assert.Equal(t, uint64(2), rounds[1].ID)

				ticket, err := tx.Ticket(1, 0)
				require.NoError(t, err)
				assert.Equal(t, alice, ticket.Owner)

				_, err = tx.Ticket(1, 1)
				assert.ErrorIs(t, err, ErrNotFound)

				history, err := tx.History(alice)
				require.NoError(t, err)
				assert.Equal(t, []models.HistoryEntry{{RoundID: 1, TicketID: 0}, {RoundID: 1, TicketID: 3}, {RoundID: 2, TicketID: 0}}, history)

				bal, err := tx.Balance(alice)
				require.NoError(t, err)
				assert.Equal(t, int64(42), bal.Int64())

				pending, err := tx.Pending(alice)
				require.NoError(t, err)
				assert.Equal(t, int64(7), pending.Int64())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	bob := common.HexToAddress("0xb0b")
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(func(tx Tx) error {
				return tx.SetBalance(bob, big.NewInt(100))
			}))

			err := s.Update(func(tx Tx) error {
				require.NoError(t, tx.SetBalance(bob, big.NewInt(1)))
				require.NoError(t, tx.SetCurrentRoundID(9))
				require.NoError(t, tx.AppendHistory(bob, models.HistoryEntry{RoundID: 9}))
				return boom
			})
			assert.ErrorIs(t, err, boom)

			require.NoError(t, s.View(func(tx Tx) error {
				bal, _ := tx.Balance(bob)
				assert.Equal(t, int64(100), bal.Int64())
				id, _ := tx.CurrentRoundID()
				assert.Zero(t, id)
				history, _ := tx.History(bob)
				assert.Empty(t, history)
				return nil
			}))
		})
	}
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.View(func(tx Tx) error {
				return tx.SetCurrentRoundID(1)
			})
			assert.ErrorIs(t, err, ErrReadOnly)
		})
	}
}

func TestStore_MissingRecords(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.View(func(tx Tx) error {
				_, err := tx.Params()
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = tx.Round(1)
				assert.ErrorIs(t, err, ErrNotFound)
				bal, err := tx.Balance(common.HexToAddress("0x1"))
				require.NoError(t, err)
				assert.Zero(t, bal.Sign())
				return nil
			}))
		})
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tx Tx) error {
		return tx.PutRound(models.Round{ID: 1, TotalPool: big.NewInt(300), TicketCount: 2, PrizeAmount: new(big.Int)})
	}))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.View(func(tx Tx) error {
		r, err := tx.Round(1)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), r.TicketCount)
		assert.Equal(t, int64(300), r.TotalPool.Int64())
		return nil
	}))
}
