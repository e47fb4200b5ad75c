package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifyPicksHighestScore(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf-test", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TCS results beat estimates", body["inputs"])

		w.Write([]byte(`[[{"label":"positive","score":0.91234},{"label":"neutral","score":0.05},{"label":"negative","score":0.03766}]]`))
	})

	c := NewClassifier(srv.URL, "hf-test", time.Second)
	res := c.Classify(context.Background(), "TCS results beat estimates")

	assert.Equal(t, Positive, res.Label)
	assert.Equal(t, 0.912, res.Score)
	assert.Equal(t, StatusOK, res.Status)
	assert.False(t, res.Degraded())
}

func TestClassifyAcceptsFlatPayloadAndUppercaseLabels(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"NEGATIVE","score":0.8},{"label":"POSITIVE","score":0.2}]`))
	})

	res := NewClassifier(srv.URL, "", time.Second).Classify(context.Background(), "margins squeezed")

	assert.Equal(t, Negative, res.Label)
	assert.Equal(t, 0.8, res.Score)
	assert.Equal(t, StatusOK, res.Status)
}

func TestClassifyFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"Model is loading"}`))
			},
		},
		{
			name: "error object instead of scores",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error":"rate limited"}`))
			},
		},
		{
			name: "empty list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			},
		},
		{
			name: "unknown label",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[[{"label":"LABEL_0","score":0.99}]]`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUpstream(t, tt.handler)
			res := NewClassifier(srv.URL, "", time.Second).Classify(context.Background(), "strong rally, bullish breakout")

			assert.Equal(t, StatusDegraded, res.Status)
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, Positive, res.Label)
			assert.Equal(t, 0.7, res.Score)
		})
	}
}

func TestClassifyReturnsWithinTimeoutWhenUpstreamHangs(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	c := NewClassifier(srv.URL, "", 100*time.Millisecond)

	start := time.Now()
	res := c.Classify(context.Background(), "stock crash, heavy selling")
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.True(t, res.Degraded())
	assert.Equal(t, Negative, res.Label)
}

func TestClassifyEmptyTextSkipsUpstream(t *testing.T) {
	called := false
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	res := NewClassifier(srv.URL, "", time.Second).Classify(context.Background(), "   ")

	assert.False(t, called)
	assert.Equal(t, Neutral, res.Label)
	assert.True(t, res.Degraded())
}

func TestFallback(t *testing.T) {
	tests := []struct {
		text string
		want Label
	}{
		{text: "Bullish momentum, strong growth and a breakout", want: Positive},
		{text: "Bearish setup; expect a decline and further weak sessions", want: Negative},
		{text: "What is the P/E of HDFCBANK?", want: Neutral},
		{text: "buy or sell?", want: Neutral},
		{text: "BUY BUY BUY", want: Positive},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := Fallback(tt.text, "test")
			assert.Equal(t, tt.want, res.Label)
			assert.Equal(t, 0.7, res.Score)
			assert.Equal(t, StatusDegraded, res.Status)
		})
	}
}

func TestResultAlwaysWithinBounds(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[{"label":"neutral","score":1.7}]]`))
	})

	res := NewClassifier(srv.URL, "", time.Second).Classify(context.Background(), "flat day")

	assert.Contains(t, []Label{Positive, Negative, Neutral}, res.Label)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
}
