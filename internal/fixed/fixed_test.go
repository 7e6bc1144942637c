package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StakeLedger/internal/errs"
)

func TestAdd(t *testing.T) {
	v, err := Add(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	_, err = Add(math.MaxUint64, 1)
	require.ErrorIs(t, err, errs.ArithmeticOverflow)
}

func TestSub(t *testing.T) {
	v, err := Sub(5, 5)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = Sub(4, 5)
	require.ErrorIs(t, err, errs.ArithmeticOverflow)
}

func TestMulDiv(t *testing.T) {
	// The product overflows 64 bits but the quotient does not.
	v, err := MulDiv(math.MaxUint64, 1_000, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), v)

	_, err = MulDiv(math.MaxUint64, 2, 1)
	require.ErrorIs(t, err, errs.ArithmeticOverflow)

	_, err = MulDiv(1, 1, 0)
	require.ErrorIs(t, err, errs.ArithmeticOverflow)

	v, err = MulDiv(7, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), v)
}

func TestBps(t *testing.T) {
	v, err := Bps(1_000_000, 2000)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), v)

	v, err = Bps(9, 2000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestToUint64(t *testing.T) {
	_, err := ToUint64(Int(1).Sub(Int(2)))
	require.ErrorIs(t, err, errs.ArithmeticOverflow)

	_, err = ToUint64(Int(math.MaxUint64).Add(Int(1)))
	require.ErrorIs(t, err, errs.ArithmeticOverflow)
}
