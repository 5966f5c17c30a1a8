package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

// Context is one call frame. It carries the open store transaction, the
// block, the caller and the value attached to the frame.
type Context struct {
	ledger *Ledger
	tx     store.Tx
	block  Block
	caller common.Address
	value  *big.Int
	depth  int
	events *[]models.Event
}

// Tx returns the store transaction shared by every frame of the call.
func (c *Context) Tx() store.Tx { return c.tx }

// Block returns the block the call executes in.
func (c *Context) Block() Block { return c.block }

// Caller returns the immediate sender of this frame.
func (c *Context) Caller() common.Address { return c.caller }

// Value returns a copy of the value attached to this frame.
func (c *Context) Value() *big.Int { return new(big.Int).Set(c.value) }

// Self returns the program's custody account.
func (c *Context) Self() common.Address { return c.ledger.contract }

// Depth returns the nesting level of this frame; 0 is the top-level call.
func (c *Context) Depth() int { return c.depth }

// Emit buffers an event. Events are published only if the call commits.
func (c *Context) Emit(ev models.Event) {
	*c.events = append(*c.events, ev)
}

// Transfer sends amount of the program's funds to to. A receiver attached
// to to runs before Transfer returns; if it fails the funds move back and
// the error is returned.
func (c *Context) Transfer(to common.Address, amount *big.Int) error {
	amount, err := normalize(amount)
	if err != nil {
		return err
	}
	if err := c.move(c.ledger.contract, to, amount); err != nil {
		return err
	}
	r := c.ledger.receiver(to)
	if r == nil {
		return nil
	}
	if c.depth+1 > maxCallDepth {
		return ErrCallDepth
	}
	frame := c.child(c.ledger.contract, amount)
	mark := len(*c.events)
	if err := r.Receive(frame, c.ledger.contract, amount); err != nil {
		*c.events = (*c.events)[:mark]
		if rerr := c.move(to, c.ledger.contract, amount); rerr != nil {
			return fmt.Errorf("receiver %s: %v; refund: %w", to.Hex(), err, rerr)
		}
		return fmt.Errorf("receiver %s: %w", to.Hex(), err)
	}
	return nil
}

// Call runs fn as a nested call from from into the program, attaching
// value. It is how receiver code re-enters the program. On failure the
// attached value and any events emitted by fn are rolled back.
func (c *Context) Call(from common.Address, value *big.Int, fn func(*Context) error) error {
	value, err := normalize(value)
	if err != nil {
		return err
	}
	if c.depth+1 > maxCallDepth {
		return ErrCallDepth
	}
	if err := c.move(from, c.ledger.contract, value); err != nil {
		return err
	}
	mark := len(*c.events)
	if err := fn(c.child(from, value)); err != nil {
		*c.events = (*c.events)[:mark]
		if rerr := c.move(c.ledger.contract, from, value); rerr != nil {
			return fmt.Errorf("%v; refund: %w", err, rerr)
		}
		return err
	}
	return nil
}

func (c *Context) child(caller common.Address, value *big.Int) *Context {
	return &Context{
		ledger: c.ledger,
		tx:     c.tx,
		block:  c.block,
		caller: caller,
		value:  value,
		depth:  c.depth + 1,
		events: c.events,
	}
}

// move shifts amount between two balances inside the open transaction.
func (c *Context) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := c.tx.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), fromBal, amount)
	}
	toBal, err := c.tx.Balance(to)
	if err != nil {
		return err
	}
	if err := c.tx.SetBalance(from, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return c.tx.SetBalance(to, toBal.Add(toBal, amount))
}
