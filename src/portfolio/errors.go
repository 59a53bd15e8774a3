package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies the failures returned by the service.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindInsufficientBalance
	KindInsufficientQuantity
	KindUserNotFound
	KindPortfolioNotFound
	KindHoldingNotFound
	KindConcurrentModification
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindInsufficientQuantity:
		return "InsufficientQuantity"
	case KindUserNotFound:
		return "UserNotFound"
	case KindPortfolioNotFound:
		return "PortfolioNotFound"
	case KindHoldingNotFound:
		return "HoldingNotFound"
	case KindConcurrentModification:
		return "ConcurrentModification"
	case KindStorageFailure:
		return "StorageFailure"
	default:
		return "Unknown"
	}
}

// Error is the typed failure of a portfolio operation. Only the fields relevant
// to Kind are set.
type Error struct {
	Kind Kind

	// InvalidInput
	Violations []string

	// InsufficientBalance: Required vs Available.
	// InsufficientQuantity: Requested vs Available.
	Required  decimal.Decimal
	Requested decimal.Decimal
	Available decimal.Decimal

	Symbol string

	// Err is the underlying cause of a StorageFailure. It is never shown to callers.
	Err error
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrInsufficientBalance    = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientQuantity   = &Error{Kind: KindInsufficientQuantity}
	ErrUserNotFound           = &Error{Kind: KindUserNotFound}
	ErrPortfolioNotFound      = &Error{Kind: KindPortfolioNotFound}
	ErrHoldingNotFound        = &Error{Kind: KindHoldingNotFound}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrStorageFailure         = &Error{Kind: KindStorageFailure}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidInput:
		if len(e.Violations) == 0 {
			return "validation failed"
		}
		return "validation failed: " + strings.Join(e.Violations, "; ")
	case KindInsufficientBalance:
		return fmt.Sprintf("insufficient balance: required %s, available %s",
			e.Required.StringFixed(2), e.Available.StringFixed(2))
	case KindInsufficientQuantity:
		return fmt.Sprintf("insufficient quantity to sell %s: requested %s, available %s",
			e.Symbol, e.Requested.String(), e.Available.String())
	case KindUserNotFound:
		return "user not found"
	case KindPortfolioNotFound:
		return "portfolio not found"
	case KindHoldingNotFound:
		if e.Symbol != "" {
			return fmt.Sprintf("stock %s not found in portfolio", e.Symbol)
		}
		return "stock not found in portfolio"
	case KindConcurrentModification:
		return "portfolio was modified concurrently, retry the operation"
	case KindStorageFailure:
		return "internal storage failure"
	default:
		return "portfolio error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func invalidInput(violations ...string) *Error {
	return &Error{Kind: KindInvalidInput, Violations: violations}
}

func insufficientBalance(required, available decimal.Decimal) *Error {
	return &Error{Kind: KindInsufficientBalance, Required: required, Available: available}
}

func insufficientQuantity(symbol string, requested, available decimal.Decimal) *Error {
	return &Error{Kind: KindInsufficientQuantity, Symbol: symbol, Requested: requested, Available: available}
}

func holdingNotFound(symbol string) *Error {
	return &Error{Kind: KindHoldingNotFound, Symbol: symbol}
}

func storageFailure(err error) *Error {
	return &Error{Kind: KindStorageFailure, Err: err}
}
