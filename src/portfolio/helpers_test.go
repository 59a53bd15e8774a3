package portfolio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"stocksim/src/database"
	"stocksim/src/events"
	"stocksim/src/model"
)

var dbSeq int64

type stubOracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  int
	onGet  func()
}

func newStubOracle() *stubOracle {
	return &stubOracle{prices: map[string]decimal.Decimal{}}
}

func (o *stubOracle) set(symbol, price string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = dec(price)
}

func (o *stubOracle) GetPrice(_ context.Context, symbol string) decimal.Decimal {
	o.mu.Lock()
	o.calls++
	hook := o.onGet
	price, ok := o.prices[symbol]
	o.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return decimal.NewFromInt(100)
	}
	return price
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TradeEvent
}

func (p *recordingPublisher) PublishTrade(_ context.Context, e events.TradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc       *Service
	db        *gorm.DB
	oracle    *stubOracle
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:portfolio_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, GormLogLevel: 1}, dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	oracle := newStubOracle()
	publisher := &recordingPublisher{}
	svc := NewService(db, nil, oracle, publisher, Config{MaxRetries: 3})

	return &fixture{svc: svc, db: db, oracle: oracle, publisher: publisher}
}

func (f *fixture) createUser(t *testing.T, name, balance string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Balance: dec(balance)}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	var u model.User
	require.NoError(t, f.db.First(&u, userID).Error)
	return u.Balance
}

func (f *fixture) holdings(t *testing.T, userID uint) []model.Holding {
	t.Helper()
	var hs []model.Holding
	require.NoError(t, f.db.
		Joins("JOIN portfolios ON portfolios.id = holdings.portfolio_id").
		Where("portfolios.user_id = ?", userID).
		Order("holdings.id").
		Find(&hs).Error)
	return hs
}

func (f *fixture) transactions(t *testing.T, userID uint) []model.Transaction {
	t.Helper()
	var txs []model.Transaction
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id").Find(&txs).Error)
	return txs
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}
