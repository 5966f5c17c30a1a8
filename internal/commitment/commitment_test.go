package commitment

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_MatchesPackedEncoding(t *testing.T) {
	amount := big.NewInt(10_000_000_000_000_000) // 0.01 ether
	salt := common.HexToHash("0x01")

	packed := make([]byte, 0, 64)
	packed = append(packed, common.LeftPadBytes(amount.Bytes(), 32)...)
	packed = append(packed, salt.Bytes()...)

	assert.Equal(t, crypto.Keccak256Hash(packed), Compute(amount, salt))
}

func TestVerify(t *testing.T) {
	amount := big.NewInt(1_000_000_000_000_000)
	salt, err := NewSalt()
	require.NoError(t, err)
	c := Compute(amount, salt)

	t.Run("correct opening", func(t *testing.T) {
		assert.True(t, Verify(c, amount, salt))
	})

	t.Run("wrong salt", func(t *testing.T) {
		wrong, err := NewSalt()
		require.NoError(t, err)
		assert.False(t, Verify(c, amount, wrong))
	})

	t.Run("wrong amount", func(t *testing.T) {
		assert.False(t, Verify(c, new(big.Int).Add(amount, big.NewInt(1)), salt))
	})

	t.Run("out of range amount", func(t *testing.T) {
		assert.False(t, Verify(c, big.NewInt(-1), salt))
		assert.False(t, Verify(c, new(big.Int).Lsh(big.NewInt(1), 256), salt))
		assert.False(t, Verify(c, nil, salt))
	})
}

func TestCompute_PanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() { Compute(big.NewInt(-5), common.Hash{}) })
}

func TestNewSalt_Distinct(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
