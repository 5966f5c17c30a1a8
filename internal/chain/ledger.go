// Package chain is a deterministic, single-writer execution ledger that hosts
// the lottery program.
//
// Calls are serialized into a total order. Each call mines a block, runs
// inside one store transaction and either commits all of its writes, value
// transfers and events, or none of them.
package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// maxCallDepth bounds nested calls made from receiver hooks.
const maxCallDepth = 64

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeValue     = errors.New("negative value")
	ErrCallDepth         = errors.New("max call depth exceeded")
)

// Block is the host entropy visible to a call.
type Block struct {
	Number    uint64      `json:"number"`
	Timestamp uint64      `json:"timestamp"`
	Random    common.Hash `json:"random"` // unpredictable to callers, known to the block producer
}

// Msg is the sender and attached value of a top-level call.
type Msg struct {
	From  common.Address
	Value *big.Int
}

// Receipt describes a committed call.
type Receipt struct {
	Block  Block
	Events []models.Event
}

// Receiver is code attached to an account. It runs synchronously whenever
// the account is sent value and may call back into the program. Returning an
// error rejects the transfer.
type Receiver interface {
	Receive(c *Context, from common.Address, amount *big.Int) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(c *Context, from common.Address, amount *big.Int) error

func (f ReceiverFunc) Receive(c *Context, from common.Address, amount *big.Int) error {
	return f(c, from, amount)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.clock = now }
}

// WithGenesisRandom seeds the per-block randomness chain.
func WithGenesisRandom(seed common.Hash) Option {
	return func(l *Ledger) { l.head.Random = seed }
}

// Ledger serializes calls against a Store on behalf of one program account.
type Ledger struct {
	mu       sync.Mutex
	store    store.Store
	contract common.Address
	clock    func() time.Time
	head     Block

	rmu       sync.RWMutex
	receivers map[common.Address]Receiver
}

// NewLedger creates a ledger whose program holds funds at contract.
func NewLedger(s store.Store, contract common.Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:     s,
		contract:  contract,
		clock:     time.Now,
		receivers: make(map[common.Address]Receiver),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Contract returns the program's custody account.
func (l *Ledger) Contract() common.Address {
	return l.contract
}

// Head returns the most recently mined block.
func (l *Ledger) Head() Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// SetReceiver attaches r to addr. A nil r detaches any receiver.
func (l *Ledger) SetReceiver(addr common.Address, r Receiver) {
	l.rmu.Lock()
	defer l.rmu.Unlock()
	if r == nil {
		delete(l.receivers, addr)
		return
	}
	l.receivers[addr] = r
}

func (l *Ledger) receiver(addr common.Address) Receiver {
	l.rmu.RLock()
	defer l.rmu.RUnlock()
	return l.receivers[addr]
}

// Execute runs fn as one atomic call from msg.From carrying msg.Value. The
// attached value is moved into the program account before fn runs.
func (l *Ledger) Execute(ctx context.Context, msg Msg, fn func(*Context) error) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	value, err := normalize(msg.Value)
	if err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	block := l.nextBlock()
	l.head = block

	var events []models.Event
	err = l.store.Update(func(tx store.Tx) error {
		c := &Context{
			ledger: l,
			tx:     tx,
			block:  block,
			caller: msg.From,
			value:  value,
			events: &events,
		}
		if err := c.move(msg.From, l.contract, value); err != nil {
			return err
		}
		return fn(c)
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Block: block, Events: events}, nil
}

// Query runs fn against a read-only snapshot of the state.
func (l *Ledger) Query(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.store.View(fn)
}

// Fund credits amount to addr outside of any program call, like a genesis
// allocation.
func (l *Ledger) Fund(addr common.Address, amount *big.Int) error {
	amount, err := normalize(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Update(func(tx store.Tx) error {
		bal, err := tx.Balance(addr)
		if err != nil {
			return err
		}
		return tx.SetBalance(addr, bal.Add(bal, amount))
	})
}

// Balance returns the native balance of addr.
func (l *Ledger) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := l.Query(ctx, func(tx store.Tx) error {
		var err error
		bal, err = tx.Balance(addr)
		return err
	})
	return bal, err
}

func (l *Ledger) nextBlock() Block {
	ts := uint64(l.clock().Unix())
	if ts < l.head.Timestamp {
		ts = l.head.Timestamp
	}
	number := l.head.Number + 1
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], number)
	return Block{
		Number:    number,
		Timestamp: ts,
		Random:    crypto.Keccak256Hash(l.head.Random.Bytes(), n[:]),
	}
}

func normalize(v *big.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeValue, v)
	}
	return new(big.Int).Set(v), nil
}
