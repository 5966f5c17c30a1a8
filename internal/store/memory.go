package store

import (
	"fmt"
	"math/big"
	"slices"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
)

type ticketKey struct {
	round, ticket uint64
}

type memoryState struct {
	params    *models.Params
	currentID uint64
	rounds    map[uint64]models.Round
	tickets   map[ticketKey]models.Ticket
	history   map[common.Address][]models.HistoryEntry
	balances  map[common.Address]*big.Int
	pending   map[common.Address]*big.Int
}

// clone copies the maps. Stored values are never mutated in place, so the
// copies may share them.
func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		params:    s.params,
		currentID: s.currentID,
		rounds:    make(map[uint64]models.Round, len(s.rounds)),
		tickets:   make(map[ticketKey]models.Ticket, len(s.tickets)),
		history:   make(map[common.Address][]models.HistoryEntry, len(s.history)),
		balances:  make(map[common.Address]*big.Int, len(s.balances)),
		pending:   make(map[common.Address]*big.Int, len(s.pending)),
	}
	for k, v := range s.rounds {
		c.rounds[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.history {
		c.history[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.pending {
		c.pending[k] = v
	}
	return c
}

// MemoryStore keeps the ledger state in process memory. Update works on a
// copy of the state and swaps it in on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: (&memoryState{}).clone()}
}

func (s *MemoryStore) View(fn func(Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTx{state: s.state, readOnly: true})
}

func (s *MemoryStore) Update(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&memoryTx{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	state    *memoryState
	readOnly bool
}

func (tx *memoryTx) writable() error {
	if tx.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (tx *memoryTx) Params() (models.Params, error) {
	if tx.state.params == nil {
		return models.Params{}, ErrNotFound
	}
	return tx.state.params.Copy(), nil
}

func (tx *memoryTx) PutParams(p models.Params) error {
	if err := tx.writable(); err != nil {
		return err
	}
	p = p.Copy()
	tx.state.params = &p
	return nil
}

func (tx *memoryTx) CurrentRoundID() (uint64, error) {
	return tx.state.currentID, nil
}

func (tx *memoryTx) SetCurrentRoundID(id uint64) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.state.currentID = id
	return nil
}

func (tx *memoryTx) Round(id uint64) (models.Round, error) {
	r, ok := tx.state.rounds[id]
	if !ok {
		return models.Round{}, ErrNotFound
	}
	return r.Copy(), nil
}

func (tx *memoryTx) PutRound(r models.Round) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.state.rounds[r.ID] = r.Copy()
	return nil
}

func (tx *memoryTx) Rounds() ([]models.Round, error) {
	out := make([]models.Round, 0, len(tx.state.rounds))
	for _, r := range tx.state.rounds {
		out = append(out, r.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) Ticket(roundID, ticketID uint64) (models.Ticket, error) {
	t, ok := tx.state.tickets[ticketKey{roundID, ticketID}]
	if !ok {
		return models.Ticket{}, ErrNotFound
	}
	return t.Copy(), nil
}

func (tx *memoryTx) PutTicket(t models.Ticket) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.state.tickets[ticketKey{t.RoundID, t.ID}] = t.Copy()
	return nil
}

func (tx *memoryTx) History(player common.Address) ([]models.HistoryEntry, error) {
	return slices.Clone(tx.state.history[player]), nil
}

func (tx *memoryTx) AppendHistory(player common.Address, e models.HistoryEntry) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.state.history[player] = append(slices.Clip(tx.state.history[player]), e)
	return nil
}

func (tx *memoryTx) Balance(addr common.Address) (*big.Int, error) {
	return amountOrZero(tx.state.balances[addr]), nil
}

func (tx *memoryTx) SetBalance(addr common.Address, v *big.Int) error {
	if err := tx.writable(); err != nil {
		return err
	}
	return setAmount(tx.state.balances, addr, v)
}

func (tx *memoryTx) Pending(addr common.Address) (*big.Int, error) {
	return amountOrZero(tx.state.pending[addr]), nil
}

func (tx *memoryTx) SetPending(addr common.Address, v *big.Int) error {
	if err := tx.writable(); err != nil {
		return err
	}
	return setAmount(tx.state.pending, addr, v)
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func setAmount(m map[common.Address]*big.Int, addr common.Address, v *big.Int) error {
	if v == nil || v.Sign() == 0 {
		delete(m, addr)
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("store: negative amount for %s", addr.Hex())
	}
	m[addr] = new(big.Int).Set(v)
	return nil
}
