package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
)

var (
	bucketMeta     = []byte("meta")
	bucketRounds   = []byte("rounds")
	bucketTickets  = []byte("tickets")
	bucketHistory  = []byte("history")
	bucketBalances = []byte("balances")
	bucketPending  = []byte("pending")

	keyParams       = []byte("params")
	keyCurrentRound = []byte("current_round")
)

var allBuckets = [][]byte{
	bucketMeta, bucketRounds, bucketTickets, bucketHistory, bucketBalances, bucketPending,
}

// BoltStore persists the ledger state in a bbolt file.
//
// Keys are big-endian so cursors walk rounds in id order and a player's
// history in (round, ticket) order, which is submission order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(fn func(Tx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Update(fn func(Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (b *boltTx) put(bucket, key []byte, v any) error {
	if !b.tx.Writable() {
		return ErrReadOnly
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", bucket, err)
	}
	return b.tx.Bucket(bucket).Put(key, data)
}

func (b *boltTx) get(bucket, key []byte, v any) error {
	data := b.tx.Bucket(bucket).Get(key)
	if data == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func (b *boltTx) Params() (models.Params, error) {
	var p models.Params
	err := b.get(bucketMeta, keyParams, &p)
	return p, err
}

func (b *boltTx) PutParams(p models.Params) error {
	return b.put(bucketMeta, keyParams, p)
}

func (b *boltTx) CurrentRoundID() (uint64, error) {
	data := b.tx.Bucket(bucketMeta).Get(keyCurrentRound)
	if data == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(data), nil
}

func (b *boltTx) SetCurrentRoundID(id uint64) error {
	if !b.tx.Writable() {
		return ErrReadOnly
	}
	return b.tx.Bucket(bucketMeta).Put(keyCurrentRound, u64(id))
}

func (b *boltTx) Round(id uint64) (models.Round, error) {
	var r models.Round
	err := b.get(bucketRounds, u64(id), &r)
	return r, err
}

func (b *boltTx) PutRound(r models.Round) error {
	return b.put(bucketRounds, u64(r.ID), r)
}

func (b *boltTx) Rounds() ([]models.Round, error) {
	var out []models.Round
	err := b.tx.Bucket(bucketRounds).ForEach(func(_, v []byte) error {
		var r models.Round
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("decode round: %w", err)
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (b *boltTx) Ticket(roundID, ticketID uint64) (models.Ticket, error) {
	var t models.Ticket
	err := b.get(bucketTickets, append(u64(roundID), u64(ticketID)...), &t)
	return t, err
}

func (b *boltTx) PutTicket(t models.Ticket) error {
	return b.put(bucketTickets, append(u64(t.RoundID), u64(t.ID)...), t)
}

func (b *boltTx) History(player common.Address) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	prefix := player.Bytes()
	c := b.tx.Bucket(bucketHistory).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		rest := k[len(prefix):]
		out = append(out, models.HistoryEntry{
			RoundID:  binary.BigEndian.Uint64(rest[:8]),
			TicketID: binary.BigEndian.Uint64(rest[8:]),
		})
	}
	return out, nil
}

func (b *boltTx) AppendHistory(player common.Address, e models.HistoryEntry) error {
	if !b.tx.Writable() {
		return ErrReadOnly
	}
	key := make([]byte, 0, common.AddressLength+16)
	key = append(key, player.Bytes()...)
	key = append(key, u64(e.RoundID)...)
	key = append(key, u64(e.TicketID)...)
	return b.tx.Bucket(bucketHistory).Put(key, []byte{})
}

func (b *boltTx) Balance(addr common.Address) (*big.Int, error) {
	return b.amount(bucketBalances, addr), nil
}

func (b *boltTx) SetBalance(addr common.Address, v *big.Int) error {
	return b.setAmount(bucketBalances, addr, v)
}

func (b *boltTx) Pending(addr common.Address) (*big.Int, error) {
	return b.amount(bucketPending, addr), nil
}

func (b *boltTx) SetPending(addr common.Address, v *big.Int) error {
	return b.setAmount(bucketPending, addr, v)
}

func (b *boltTx) amount(bucket []byte, addr common.Address) *big.Int {
	return new(big.Int).SetBytes(b.tx.Bucket(bucket).Get(addr.Bytes()))
}

func (b *boltTx) setAmount(bucket []byte, addr common.Address, v *big.Int) error {
	if !b.tx.Writable() {
		return ErrReadOnly
	}
	if v == nil || v.Sign() == 0 {
		return b.tx.Bucket(bucket).Delete(addr.Bytes())
	}
	if v.Sign() < 0 {
		return fmt.Errorf("store: negative amount for %s", addr.Hex())
	}
	return b.tx.Bucket(bucket).Put(addr.Bytes(), v.Bytes())
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
