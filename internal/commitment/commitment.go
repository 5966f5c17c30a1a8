// Package commitment builds and opens the hash commitments attached to
// lottery tickets.
//
// A commitment is keccak256 over the 32-byte big-endian amount followed by
// the 32-byte salt, the same bytes an EVM client produces with
// solidityPacked(["uint256", "bytes32"], [amount, salt]).
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// maxAmountBits is the width of the uint256 amount field.
const maxAmountBits = 256

// Compute returns the commitment for amount and salt. It panics if amount is
// outside the uint256 range; use Valid first on untrusted input.
func Compute(amount *big.Int, salt common.Hash) common.Hash {
	if !Valid(amount) {
		panic(fmt.Sprintf("commitment: amount %v out of uint256 range", amount))
	}
	return crypto.Keccak256Hash(common.BigToHash(amount).Bytes(), salt.Bytes())
}

// Verify reports whether amount and salt open commitment.
func Verify(commitment common.Hash, amount *big.Int, salt common.Hash) bool {
	if !Valid(amount) {
		return false
	}
	got := Compute(amount, salt)
	return subtle.ConstantTimeCompare(got.Bytes(), commitment.Bytes()) == 1
}

// Valid reports whether amount fits the uint256 amount field.
func Valid(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.BitLen() <= maxAmountBits
}

// NewSalt returns a fresh random salt.
func NewSalt() (common.Hash, error) {
	var salt common.Hash
	if _, err := rand.Read(salt[:]); err != nil {
		return common.Hash{}, fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}
