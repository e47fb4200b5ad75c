package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusNotFound    Status = "not_found"
	StatusRateLimited Status = "rate_limited"
	StatusUnavailable Status = "unavailable"
)

// Result is the outcome of a fetch: a snapshot, or a status explaining why there is none.
type Result struct {
	Status   Status    `json:"status"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

func (r Result) Available() bool {
	return r.Status == StatusAvailable && r.Snapshot != nil
}

// Retryable is true when the upstream asked us to back off.
func (r Result) Retryable() bool {
	return r.Status == StatusRateLimited
}

// Err converts a non-available result back into its sentinel error.
func (r Result) Err() error {
	switch r.Status {
	case StatusAvailable:
		return nil
	case StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, r.Reason)
	case StatusRateLimited:
		return fmt.Errorf("%w: %s", ErrRateLimited, r.Reason)
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, r.Reason)
	}
}

// ResultFromError classifies a provider error.
func ResultFromError(err error) Result {
	switch {
	case errors.Is(err, ErrSymbolNotFound):
		return Result{Status: StatusNotFound, Reason: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return Result{Status: StatusRateLimited, Reason: err.Error()}
	default:
		return Result{Status: StatusUnavailable, Reason: err.Error()}
	}
}

// Fetcher wraps a Provider so callers always get a Result instead of an error. The whole
// lookup, however many upstream calls it makes, is bounded by Timeout.
type Fetcher struct {
	provider Provider
	Timeout  time.Duration
}

func NewFetcher(provider Provider) *Fetcher {
	return &Fetcher{provider: provider, Timeout: DefaultTimeout}
}

func (f *Fetcher) Fetch(ctx context.Context, symbol string) Result {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return Result{Status: StatusNotFound, Reason: "empty symbol"}
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	snap, err := f.provider.Quote(ctx, symbol)
	if err != nil {
		return ResultFromError(err)
	}
	if snap == nil {
		return Result{Status: StatusUnavailable, Reason: "provider returned no data"}
	}

	return Result{Status: StatusAvailable, Snapshot: snap}
}
