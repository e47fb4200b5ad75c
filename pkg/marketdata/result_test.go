package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	snap      *Snapshot
	err       error
	gotSymbol string
}

func (s *stubProvider) Name() string { return "STUB" }

func (s *stubProvider) Quote(ctx context.Context, symbol string) (*Snapshot, error) {
	s.gotSymbol = symbol
	return s.snap, s.err
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name       string
		provider   *stubProvider
		symbol     string
		wantStatus Status
		retryable  bool
	}{
		{"available", &stubProvider{snap: &Snapshot{Symbol: "TCS"}}, " tcs ", StatusAvailable, false},
		{"not found", &stubProvider{err: fmt.Errorf("%w: TCS", ErrSymbolNotFound)}, "TCS", StatusNotFound, false},
		{"rate limited", &stubProvider{err: fmt.Errorf("%w: slow down", ErrRateLimited)}, "TCS", StatusRateLimited, true},
		{"other failure", &stubProvider{err: fmt.Errorf("dial tcp: refused")}, "TCS", StatusUnavailable, false},
		{"nil snapshot", &stubProvider{}, "TCS", StatusUnavailable, false},
		{"blank symbol", &stubProvider{}, "  ", StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewFetcher(tt.provider).Fetch(context.Background(), tt.symbol)

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.retryable, res.Retryable())
			assert.Equal(t, tt.wantStatus == StatusAvailable, res.Available())
			if res.Available() {
				assert.NoError(t, res.Err())
				assert.Equal(t, "TCS", tt.provider.gotSymbol)
			} else {
				assert.Error(t, res.Err())
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

// chainedProvider makes several sequential upstream calls, each honouring ctx.
type chainedProvider struct {
	calls int
	step  time.Duration
}

func (c *chainedProvider) Name() string { return "CHAINED" }

func (c *chainedProvider) Quote(ctx context.Context, symbol string) (*Snapshot, error) {
	for i := 0; i < c.calls; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(c.step):
		}
	}
	return &Snapshot{Symbol: symbol}, nil
}

func TestFetchBoundsWholeLookup(t *testing.T) {
	f := NewFetcher(&chainedProvider{calls: 3, step: 80 * time.Millisecond})
	f.Timeout = 100 * time.Millisecond

	start := time.Now()
	res := f.Fetch(context.Background(), "TCS")

	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	f.Timeout = time.Second
	assert.True(t, f.Fetch(context.Background(), "TCS").Available())
	assert.Equal(t, DefaultTimeout, NewFetcher(&chainedProvider{}).Timeout)
}

func TestResultErrRoundTripsSentinels(t *testing.T) {
	assert.ErrorIs(t, ResultFromError(ErrRateLimited).Err(), ErrRateLimited)
	assert.ErrorIs(t, ResultFromError(ErrSymbolNotFound).Err(), ErrSymbolNotFound)
	assert.ErrorIs(t, ResultFromError(fmt.Errorf("x")).Err(), ErrUnavailable)
}

func TestSummarize(t *testing.T) {
	bars := []DailyBar{
		{Date: "2024-05-07", Close: 110, High: 112, Low: 105, Volume: 300},
		{Date: "2024-05-06", Close: 100, High: 101, Low: 99, Volume: 100},
		{Date: "2024-05-03", Close: 90, High: 95, Low: 80, Volume: 200},
		{Date: "2024-05-02", Close: 90, High: 91, Low: 89, Volume: 200},
		{Date: "2024-05-01", Close: 90, High: 91, Low: 89, Volume: 200},
		{Date: "2024-04-30", Close: 90, High: 91, Low: 89, Volume: 200},
	}

	snap := &Snapshot{}
	Summarize(snap, bars)

	assert.Equal(t, 110.0, snap.LatestPrice)
	assert.Equal(t, 10.0, snap.Change)
	assert.Equal(t, 10.0, snap.ChangePercent)
	require.Len(t, snap.Last5Days, 5)
	assert.Equal(t, "2024-05-07", snap.Last5Days[0].Date)
	assert.Len(t, snap.History, 6)
	assert.Equal(t, 95.0, snap.Average30Day)
	assert.Equal(t, 112.0, snap.PeriodHigh)
	assert.Equal(t, 80.0, snap.PeriodLow)
	assert.Equal(t, int64(200), snap.AvgVolume)
}

func TestSummarizeSingleBar(t *testing.T) {
	snap := &Snapshot{}
	Summarize(snap, []DailyBar{{Close: 50, High: 51, Low: 49, Volume: 7}})

	assert.Equal(t, 50.0, snap.LatestPrice)
	assert.Zero(t, snap.Change)
	assert.Zero(t, snap.ChangePercent)
	assert.Len(t, snap.Last5Days, 1)
}
