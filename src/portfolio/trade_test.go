package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksim/src/model"
)

func TestBuy_AverageCost(t *testing.T) {
	f := newFixture(t)
	f.oracle.set("AAPL", "180")
	u := f.createUser(t, "alice", "10000")
	ctx := context.Background()

	first, err := f.svc.Buy(ctx, u.ID, "aapl", dec("10"), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Symbol)
	assertDecimal(t, "1000", first.TotalCost)
	assertDecimal(t, "9000", first.NewBalance)
	assert.NotEmpty(t, first.Reference)

	second, err := f.svc.Buy(ctx, u.ID, "AAPL", dec("10"), dec("200"))
	require.NoError(t, err)
	assertDecimal(t, "7000", second.NewBalance)

	hs := f.holdings(t, u.ID)
	require.Len(t, hs, 1)
	assertDecimal(t, "20", hs[0].Quantity)
	assertDecimal(t, "150", hs[0].AverageBuyPrice)
	assertDecimal(t, "3000", hs[0].TotalInvested)
	assertDecimal(t, "3600", hs[0].CurrentValue)

	assertDecimal(t, "7000", f.balance(t, u.ID))

	var p model.Portfolio
	require.NoError(t, f.db.Where("user_id = ?", u.ID).First(&p).Error)
	assertDecimal(t, "3000", p.TotalInvested)
	assertDecimal(t, "3600", p.TotalValue)
	assertDecimal(t, "600", p.TotalProfitLoss)
	assertDecimal(t, "20", p.ProfitLossPercentage)

	txs := f.transactions(t, u.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, model.TransactionTypeBuy, txs[0].Type)
	assertDecimal(t, "1000", txs[0].TotalAmount)
	assertDecimal(t, "2000", txs[1].TotalAmount)
	assert.Equal(t, first.Reference, txs[0].Reference)
}

func TestSell_ReducesCostBasisProportionally(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "bob", "10000")
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, u.ID, "AAPL", dec("10"), dec("100"))
	require.NoError(t, err)
	_, err = f.svc.Buy(ctx, u.ID, "AAPL", dec("10"), dec("200"))
	require.NoError(t, err)

	receipt, err := f.svc.Sell(ctx, u.ID, "AAPL", dec("10"), dec("250"))
	require.NoError(t, err)
	assertDecimal(t, "2500", receipt.SaleValue)
	assertDecimal(t, "9500", receipt.NewBalance)

	hs := f.holdings(t, u.ID)
	require.Len(t, hs, 1)
	assertDecimal(t, "10", hs[0].Quantity)
	assertDecimal(t, "1500", hs[0].TotalInvested)
	assertDecimal(t, "150", hs[0].AverageBuyPrice)

	txs := f.transactions(t, u.ID)
	require.Len(t, txs, 3)
	assert.Equal(t, model.TransactionTypeSell, txs[2].Type)
	assertDecimal(t, "2500", txs[2].TotalAmount)
}

func TestSell_FullQuantityRemovesHolding(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "carol", "5000")
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, u.ID, "MSFT", dec("4"), dec("300"))
	require.NoError(t, err)
	_, err = f.svc.Buy(ctx, u.ID, "TSLA", dec("2"), dec("250"))
	require.NoError(t, err)

	_, err = f.svc.Sell(ctx, u.ID, "MSFT", dec("4"), dec("310"))
	require.NoError(t, err)

	hs := f.holdings(t, u.ID)
	require.Len(t, hs, 1)
	assert.Equal(t, "TSLA", hs[0].Symbol)

	_, err = f.svc.GetHoldingDetails(ctx, u.ID, "MSFT")
	assert.ErrorIs(t, err, ErrHoldingNotFound)

	var p model.Portfolio
	require.NoError(t, f.db.Where("user_id = ?", u.ID).First(&p).Error)
	assertDecimal(t, "500", p.TotalInvested)
}

func TestSell_InsufficientQuantityLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "dave", "2000")
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, u.ID, "NFLX", dec("3"), dec("400"))
	require.NoError(t, err)

	var userBefore model.User
	require.NoError(t, f.db.First(&userBefore, u.ID).Error)
	holdingsBefore := f.holdings(t, u.ID)
	txsBefore := f.transactions(t, u.ID)
	var portfolioBefore model.Portfolio
	require.NoError(t, f.db.Where("user_id = ?", u.ID).First(&portfolioBefore).Error)

	_, err = f.svc.Sell(ctx, u.ID, "NFLX", dec("4"), dec("410"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assertDecimal(t, "4", typed.Requested)
	assertDecimal(t, "3", typed.Available)
	assert.Equal(t, "NFLX", typed.Symbol)

	var userAfter model.User
	require.NoError(t, f.db.First(&userAfter, u.ID).Error)
	var portfolioAfter model.Portfolio
	require.NoError(t, f.db.Where("user_id = ?", u.ID).First(&portfolioAfter).Error)

	assert.Equal(t, userBefore, userAfter)
	assert.Equal(t, portfolioBefore, portfolioAfter)
	assert.Equal(t, holdingsBefore, f.holdings(t, u.ID))
	assert.Equal(t, txsBefore, f.transactions(t, u.ID))
}

func TestSell_NotFound(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "erin", "1000")
	ctx := context.Background()

	_, err := f.svc.Sell(ctx, u.ID, "AAPL", dec("1"), dec("10"))
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	_, err = f.svc.Buy(ctx, u.ID, "AAPL", dec("1"), dec("10"))
	require.NoError(t, err)

	_, err = f.svc.Sell(ctx, u.ID, "GOOGL", dec("1"), dec("10"))
	assert.ErrorIs(t, err, ErrHoldingNotFound)
}

func TestBuy_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "frank", "1000")

	_, err := f.svc.Buy(context.Background(), u.ID, "AAPL", dec("10"), dec("150.25"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assertDecimal(t, "1502.50", typed.Required)
	assertDecimal(t, "1000", typed.Available)

	assertDecimal(t, "1000", f.balance(t, u.ID))
	assert.Empty(t, f.transactions(t, u.ID))

	var count int64
	require.NoError(t, f.db.Model(&model.Portfolio{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.publisher.events)
}

func TestBuy_InvalidInputListsEveryViolation(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "gina", "1000")

	_, err := f.svc.Buy(context.Background(), u.ID, "   ", decimal.Zero, dec("-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, []string{
		"Valid symbol is required",
		"Valid positive quantity is required",
		"Valid positive price is required",
	}, typed.Violations)
	assert.Zero(t, f.oracle.calls)
}

func TestBuy_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Buy(context.Background(), 999, "AAPL", dec("1"), dec("1"))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTrades_ConserveMoney(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "hank", "50000")
	ctx := context.Background()

	type trade struct {
		buy    bool
		symbol string
		qty    string
		price  string
	}
	trades := []trade{
		{true, "AAPL", "3", "150.255"},
		{true, "GOOGL", "0.5", "2750.80"},
		{true, "AAPL", "7", "149.999"},
		{false, "AAPL", "4", "151.333"},
		{true, "NVDA", "12", "225.30"},
		{false, "GOOGL", "0.5", "2800.01"},
		{false, "NVDA", "5", "230.555"},
	}

	spent := decimal.Zero
	received := decimal.Zero
	for _, tr := range trades {
		if tr.buy {
			r, err := f.svc.Buy(ctx, u.ID, tr.symbol, dec(tr.qty), dec(tr.price))
			require.NoError(t, err)
			spent = spent.Add(r.TotalCost)
		} else {
			r, err := f.svc.Sell(ctx, u.ID, tr.symbol, dec(tr.qty), dec(tr.price))
			require.NoError(t, err)
			received = received.Add(r.SaleValue)
		}
	}

	delta := f.balance(t, u.ID).Sub(dec("50000"))
	assertDecimal(t, received.Sub(spent).String(), delta)
	assert.False(t, f.balance(t, u.ID).IsNegative())

	logged := decimal.Zero
	for _, tx := range f.transactions(t, u.ID) {
		if tx.Type == model.TransactionTypeBuy {
			logged = logged.Sub(tx.TotalAmount)
		} else {
			logged = logged.Add(tx.TotalAmount)
		}
	}
	assertDecimal(t, delta.String(), logged)

	for _, h := range f.holdings(t, u.ID) {
		assert.True(t, h.Quantity.IsPositive(), h.Symbol)
		assert.False(t, h.TotalInvested.IsNegative(), h.Symbol)
	}
}

func TestBuy_ConcurrentSameUserSerialized(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ivy", "1000")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Buy(context.Background(), u.ID, "AMZN", dec("1"), dec("10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assertDecimal(t, "800", f.balance(t, u.ID))
	hs := f.holdings(t, u.ID)
	require.Len(t, hs, 1)
	assertDecimal(t, "20", hs[0].Quantity)
	assertDecimal(t, "200", hs[0].TotalInvested)
	assert.Len(t, f.transactions(t, u.ID), n)
}

func TestTrades_DifferentUsersRunInParallel(t *testing.T) {
	f := newFixture(t)
	users := []*model.User{
		f.createUser(t, "u1", "1000"),
		f.createUser(t, "u2", "1000"),
		f.createUser(t, "u3", "1000"),
	}

	var wg sync.WaitGroup
	for _, u := range users {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				_, err := f.svc.Buy(context.Background(), id, "META", dec("1"), dec("20"))
				assert.NoError(t, err)
			}(u.ID)
		}
	}
	wg.Wait()

	for _, u := range users {
		assertDecimal(t, "900", f.balance(t, u.ID), u.Username)
		assert.Len(t, f.transactions(t, u.ID), 5)
	}
}

func TestBuy_CompletesWhenCallerCancelsAfterLocking(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "jack", "1000")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.oracle.onGet = cancel

	receipt, err := f.svc.Buy(ctx, u.ID, "AAPL", dec("2"), dec("100"))
	require.NoError(t, err)
	assertDecimal(t, "800", receipt.NewBalance)
	assertDecimal(t, "800", f.balance(t, u.ID))
	assert.Len(t, f.transactions(t, u.ID), 1)
	assert.Len(t, f.holdings(t, u.ID), 1)
}

func TestBuy_AbandonedWhileWaitingForLock(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "kate", "1000")

	release, err := f.svc.locks.acquire(context.Background(), u.ID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = f.svc.Buy(ctx, u.ID, "AAPL", dec("1"), dec("100"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assertDecimal(t, "1000", f.balance(t, u.ID))
	assert.Empty(t, f.transactions(t, u.ID))
}

func TestTrades_PublishEventsAfterCommit(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "leo", "1000")
	ctx := context.Background()

	buy, err := f.svc.Buy(ctx, u.ID, "AAPL", dec("2"), dec("100"))
	require.NoError(t, err)
	sell, err := f.svc.Sell(ctx, u.ID, "AAPL", dec("1"), dec("120"))
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, buy.Reference, f.publisher.events[0].Reference)
	assert.Equal(t, "BUY", f.publisher.events[0].Type)
	assert.Equal(t, sell.Reference, f.publisher.events[1].Reference)
	assert.Equal(t, "SELL", f.publisher.events[1].Type)
	assertDecimal(t, "920", f.publisher.events[1].NewBalance)
}

func TestBuy_RejectsTradesThatMoveNoCash(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "hank", "100")
	ctx := context.Background()

	// 0.004 x 1 rounds to 0.00 and would hand out shares for free.
	for i := 0; i < 3; i++ {
		_, err := f.svc.Buy(ctx, u.ID, "AAPL", dec("0.004"), dec("1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)

		var typed *Error
		require.True(t, errors.As(err, &typed))
		assert.Equal(t, []string{"Trade amount must be at least 0.01"}, typed.Violations)
	}

	_, err := f.svc.Sell(ctx, u.ID, "AAPL", dec("0.004"), dec("1"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	assertDecimal(t, "100", f.balance(t, u.ID))
	assert.Empty(t, f.holdings(t, u.ID))
	assert.Empty(t, f.transactions(t, u.ID))
	assert.Zero(t, f.oracle.calls)

	receipt, err := f.svc.Buy(ctx, u.ID, "AAPL", dec("0.005"), dec("1"))
	require.NoError(t, err)
	assertDecimal(t, "0.01", receipt.TotalCost)
}

func TestBuy_RejectsQuantityAndPriceBeyondStoredPrecision(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ivy", "1000")

	_, err := f.svc.Buy(context.Background(), u.ID, "AAPL", dec("1.000000001"), dec("10.123456789"))
	require.Error(t, err)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, []string{
		"Quantity must have at most 8 decimal places",
		"Price must have at most 8 decimal places",
	}, typed.Violations)

	// Trailing zeros are not extra precision.
	_, err = f.svc.Buy(context.Background(), u.ID, "AAPL", dec("1.0000000000"), dec("10.12345678"))
	require.NoError(t, err)
	hs := f.holdings(t, u.ID)
	require.Len(t, hs, 1)
	assertDecimal(t, "1", hs[0].Quantity)
}
