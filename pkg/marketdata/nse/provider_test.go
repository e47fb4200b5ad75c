package nse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-marketchat-be/pkg/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/TCS", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"source":"NSE","data":{
			"symbol":"TCS","latestPrice":3850.456,"change":-12.3,"changePercent":-0.318,
			"dayHigh":3890,"dayLow":3840.5,"volume":1234567,"lastUpdated":"03-May-2024 16:00:00",
			"companyName":"Tata Consultancy Services Limited","industry":null}}`))
	}))
	defer srv.Close()

	snap, err := NewNSEProvider(srv.URL+"/", time.Second).Quote(context.Background(), "TCS")
	require.NoError(t, err)

	assert.Equal(t, "NSE", snap.Source)
	assert.Equal(t, "TCS", snap.Symbol)
	assert.Equal(t, 3850.46, snap.LatestPrice)
	assert.Equal(t, -12.3, snap.Change)
	assert.Equal(t, -0.32, snap.ChangePercent)
	assert.Equal(t, 3890.0, snap.PeriodHigh)
	assert.Equal(t, 3840.5, snap.PeriodLow)
	assert.Equal(t, int64(1234567), snap.AvgVolume)
	assert.Equal(t, "Tata Consultancy Services Limited", snap.Company.Name)
	assert.Equal(t, "N/A", snap.Company.Industry)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "03-May-2024 16:00:00", snap.LastRefreshed)
}

func TestQuoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"invalid symbol", http.StatusBadRequest, `{"detail":"Invalid NSE symbol"}`, marketdata.ErrSymbolNotFound},
		{"throttled", http.StatusTooManyRequests, ``, marketdata.ErrRateLimited},
		{"server error", http.StatusInternalServerError, ``, marketdata.ErrUnavailable},
		{"unsuccessful body", http.StatusOK, `{"success":false}`, marketdata.ErrSymbolNotFound},
		{"null price", http.StatusOK, `{"success":true,"data":{"symbol":"TCS","latestPrice":null}}`, marketdata.ErrUnavailable},
		{"garbage", http.StatusOK, `<html>`, marketdata.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewNSEProvider(srv.URL, time.Second).Quote(context.Background(), "TCS")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuoteUnreachable(t *testing.T) {
	_, err := NewNSEProvider("http://127.0.0.1:1", 200*time.Millisecond).Quote(context.Background(), "TCS")
	assert.ErrorIs(t, err, marketdata.ErrUnavailable)
}
