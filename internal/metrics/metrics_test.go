package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/tradesync/internal/model"
)

var cycleStart = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func sampleCycle() model.CycleResult {
	return model.CycleResult{
		ID:         uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		StartedAt:  cycleStart,
		FinishedAt: cycleStart.Add(4 * time.Second),
		Accounts: []model.AccountResult{
			{
				Account:   "A",
				State:     model.StateFailed,
				FailedAt:  model.StateAuthenticating,
				Err:       &model.Failure{Kind: model.KindAuthentication, Message: "login rejected"},
				StartedAt: cycleStart,
			},
			{
				Account:   "B",
				State:     model.StateDone,
				Fetched:   3,
				Duplicate: 1,
				Created:   1,
				Failed:    1,
				Failures:  []model.Failure{{TicketID: 7, Kind: model.KindWrite, Message: "bad"}},
				StartedAt: cycleStart,
				Duration:  2 * time.Second,
			},
		},
	}
}

func TestReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	require.NoError(t, m.Report(context.Background(), sampleCycle()))
	require.NoError(t, m.Report(context.Background(), sampleCycle()))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.accounts.WithLabelValues("A", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.accounts.WithLabelValues("B", "done")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.trades.WithLabelValues("B", "fetched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.trades.WithLabelValues("B", "created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues(string(model.KindAuthentication))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues(string(model.KindWrite))))
	assert.Equal(t, float64(cycleStart.Add(2*time.Second).Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("B")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lastSuccess))
}

func TestWatchInFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	var n int64 = 3
	m.WatchInFlight(func() int64 { return n })

	expected := `
# HELP tradesync_writes_in_flight Journal page creations currently in flight
# TYPE tradesync_writes_in_flight gauge
tradesync_writes_in_flight 3
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradesync_writes_in_flight")
	assert.NoError(t, err)
}

type staticSource struct {
	result model.CycleResult
	ok     bool
}

func (s staticSource) LastResult() (model.CycleResult, bool) {
	return s.result, s.ok
}

func TestHealthHandler(t *testing.T) {
	allFailed := sampleCycle()
	allFailed.Accounts = allFailed.Accounts[:1]

	healthy := sampleCycle()
	healthy.Accounts = healthy.Accounts[1:]

	now := func() time.Time { return cycleStart.Add(time.Minute) }

	tests := []struct {
		name       string
		source     staticSource
		staleAfter time.Duration
		wantStatus string
		wantCode   int
	}{
		{"no cycle yet", staticSource{}, 0, "starting", http.StatusOK},
		{"all accounts done", staticSource{healthy, true}, 0, "healthy", http.StatusOK},
		{"some accounts failed", staticSource{sampleCycle(), true}, 0, "degraded", http.StatusOK},
		{"every account failed", staticSource{allFailed, true}, 0, "unhealthy", http.StatusServiceUnavailable},
		{"stale cycle", staticSource{healthy, true}, 30 * time.Second, "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandler(tt.source, tt.staleAfter, now).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var body struct {
				Status     string         `json:"status"`
				Components map[string]any `json:"components"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NoError(t, m.Report(context.Background(), sampleCycle()))

	s := NewServer(0, "/metrics", reg, HealthHandler(staticSource{sampleCycle(), true}, 0, nil), nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tradesync_trades_total{account="B",outcome="created"} 1`)

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, "application/json", health.Header.Get("Content-Type"))
}
