package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "wes", "100")
	ctx := context.Background()

	balance, err := f.svc.Deposit(ctx, u.ID, dec("50.255"))
	require.NoError(t, err)
	assertDecimal(t, "150.26", balance)

	balance, err = f.svc.Withdraw(ctx, u.ID, dec("0.26"))
	require.NoError(t, err)
	assertDecimal(t, "150", balance)

	got, err := f.svc.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assertDecimal(t, "150", got)
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "xena", "20")

	_, err := f.svc.Withdraw(context.Background(), u.ID, dec("20.01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assertDecimal(t, "20.01", typed.Required)
	assertDecimal(t, "20", typed.Available)
	assertDecimal(t, "20", f.balance(t, u.ID))
}

func TestCashMovement_InvalidAmounts(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "yara", "20")
	ctx := context.Background()

	for _, amount := range []string{"0", "-5", "0.004"} {
		_, err := f.svc.Deposit(ctx, u.ID, dec(amount))
		assert.ErrorIs(t, err, ErrInvalidInput, amount)
		_, err = f.svc.Withdraw(ctx, u.ID, dec(amount))
		assert.ErrorIs(t, err, ErrInvalidInput, amount)
	}
	assertDecimal(t, "20", f.balance(t, u.ID))
}

func TestGetBalance_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetBalance(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.Deposit(context.Background(), 12345, dec("1"))
	assert.ErrorIs(t, err, ErrUserNotFound)
}
