// Package portfolio is the mutation core of the brokerage simulation: buys,
// sells and cash movements that must update balance, holdings and the
// transaction log as one unit, plus the valuation read path.
package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/database"
	"stocksim/src/events"
	"stocksim/src/model"
	"stocksim/src/pricing"
	"stocksim/src/repository"
)

// PriceOracle returns a usable market price for a symbol. It must not fail.
type PriceOracle interface {
	GetPrice(ctx context.Context, symbol string) decimal.Decimal
}

type Service struct {
	db     *gorm.DB
	readDB *gorm.DB

	users        *repository.UserRepository
	portfolios   *repository.PortfolioRepository
	transactions *repository.TransactionRepository
	quotes       *repository.PriceQuoteRepository
	exceptions   *repository.ExceptionRepository

	oracle    PriceOracle
	publisher events.Publisher
	locks     *userLocks
	config    Config
	now       func() time.Time
}

// NewService builds the core on top of db. readDB serves history and detail
// reads and may be nil, in which case db is used.
func NewService(db, readDB *gorm.DB, oracle PriceOracle, publisher events.Publisher, config Config) *Service {
	if readDB == nil {
		readDB = db
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &Service{
		db:           db,
		readDB:       readDB,
		users:        repository.NewUserRepositoryWithDB(db),
		portfolios:   repository.NewPortfolioRepositoryWithDB(db),
		transactions: repository.NewTransactionRepositoryWithDB(db),
		quotes:       repository.NewPriceQuoteRepositoryWithDB(db),
		exceptions:   repository.NewExceptionRepositoryWithDB(db),
		oracle:       oracle,
		publisher:    publisher,
		locks:        newUserLocks(),
		config:       config.withDefaults(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NewDefaultService wires the service to the global databases and the
// env-configured oracle and publisher. The databases must be initialized.
func NewDefaultService() *Service {
	return NewService(
		database.MainDB,
		database.ReadOnlyDB,
		pricing.NewOracleFromConfig(pricing.GetConfig()),
		events.NewPublisherFromConfig(events.GetConfig()),
		GetConfig(),
	)
}

// Close flushes and closes the trade event publisher.
func (s *Service) Close() error {
	return s.publisher.Close()
}

// lockUser enters the Locking state. Once the lock is held the returned context
// no longer follows the caller's cancellation: the operation runs to a clean
// commit or abort, bounded by CommitTimeout.
func (s *Service) lockUser(ctx context.Context, userID uint) (context.Context, func(), error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CommitTimeout)
	return detached, func() {
		cancel()
		release()
	}, nil
}

func isConflict(err error) bool {
	return errors.Is(err, repository.ErrStaleRecord) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// commit runs fn inside one database transaction, replaying it on version
// conflicts up to MaxRetries times. fn must rebuild all of its state from tx
// on every attempt.
func (s *Service) commit(ctx context.Context, log *logger.Entry, fn func(tx *gorm.DB) error) error {
	attempts := s.config.MaxRetries + 1

	for attempt := 1; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		if attempt >= attempts {
			log.WithField("attempts", attempt).Warn("Giving up after repeated version conflicts")
			return ErrConcurrentModification
		}
		log.WithField("attempt", attempt).WithError(err).Info("Version conflict, retrying unit of work")
	}
}

// fail maps err to the public taxonomy. Anything that is not already a
// *Error is a storage failure; it is recorded and hidden from the caller.
func (s *Service) fail(ctx context.Context, log *logger.Entry, method string, userID uint, symbol string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		log.WithField("kind", typed.Kind.String()).Info("Operation aborted")
		return typed
	}
	// Only the caller's own cancellation passes through. A CommitTimeout hit
	// after locking is a storage failure like any other.
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		log.WithError(err).Warn("Operation abandoned by caller")
		return err
	}

	log.WithError(err).Error("Operation aborted by storage failure")
	s.recordException(ctx, method, userID, symbol, err)
	return storageFailure(err)
}

func (s *Service) recordException(ctx context.Context, method string, userID uint, symbol string, cause error) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	exc := &model.Exception{
		Module:  "portfolio",
		Method:  method,
		UserID:  userID,
		Symbol:  symbol,
		Message: cause.Error(),
		Level:   "error",
	}
	if err := s.exceptions.Create(recordCtx, exc); err != nil {
		logger.WithError(err).Error("Failed to persist exception")
	}
}

func (s *Service) publish(ctx context.Context, event events.TradeEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.publisher.PublishTrade(pubCtx, event); err != nil {
		logger.WithFields(logger.Fields{
			"component": "portfolio",
			"reference": event.Reference,
		}).WithError(err).Warn("Trade committed but event was not published")
	}
}

// loadUser reads the user inside tx; a missing user is a typed error.
func (s *Service) loadUser(ctx context.Context, tx *gorm.DB, userID uint) (*model.User, error) {
	user, err := s.users.WithDB(tx).FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
