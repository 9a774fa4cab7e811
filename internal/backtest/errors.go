package backtest

import (
	"context"
	"errors"
	"fmt"

	"optionforge/internal/domain"
	"optionforge/internal/pricing"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrDataNotFound    = errors.New("data not found")
)

// Error kinds persisted with failed runs.
const (
	KindInvalidStrategy = "InvalidStrategyError"
	KindDataNotFound    = "DataNotFoundError"
	KindInvalidInput    = "InvalidInputError"
	KindCanceled        = "Canceled"
	KindInternal        = "InternalError"
)

// InvalidStrategyError reports a malformed StrategyDefinition or request.
// Raised at INITIALIZING and never retried.
type InvalidStrategyError struct {
	Reason string
}

func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("invalid strategy: %s", e.Reason)
}

func (e *InvalidStrategyError) Is(target error) bool { return target == ErrInvalidStrategy }

// Kind returns the error taxonomy name.
func (e *InvalidStrategyError) Kind() string { return KindInvalidStrategy }

// DataNotFoundError reports an empty option chain for the whole requested range.
type DataNotFoundError struct {
	Ticker string
	Start  domain.Date
	End    domain.Date
}

func (e *DataNotFoundError) Error() string {
	return fmt.Sprintf("no option chain data for %s between %s and %s", e.Ticker, e.Start, e.End)
}

func (e *DataNotFoundError) Is(target error) bool { return target == ErrDataNotFound }

// Kind returns the error taxonomy name.
func (e *DataNotFoundError) Kind() string { return KindDataNotFound }

// ErrorKind classifies err for persistence and API responses.
func ErrorKind(err error) string {
	var k interface{ Kind() string }
	switch {
	case err == nil:
		return ""
	case errors.As(err, &k):
		return k.Kind()
	case errors.Is(err, pricing.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

func invalidf(format string, args ...any) error {
	return &InvalidStrategyError{Reason: fmt.Sprintf(format, args...)}
}
