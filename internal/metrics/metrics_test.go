package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RedditMonitor/internal/domain"
)

func gathered(t *testing.T, m *Metrics, name string) []*dto.Metric {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetched([]domain.Item{{ID: "a"}})
		m.ObserveExcluded(3)
		m.ObserveRelevant(nil)
		m.ObserveBatch(true)
		m.ObserveNotification(errors.New("boom"))
		m.SetLedgerSize(10)
		m.ObserveRun(time.Now(), time.Now())
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveFetched([]domain.Item{
		{ID: "a", Type: domain.TypePost},
		{ID: "b", Type: domain.TypePost},
		{ID: "c", Type: domain.TypeComment},
	})
	m.ObserveBatch(false)
	m.ObserveBatch(true)
	m.ObserveBatch(false)
	m.ObserveNotification(nil)
	m.SetLedgerSize(12)

	fetched := map[string]float64{}
	for _, metric := range gathered(t, m, "reddit_monitor_items_fetched_total") {
		fetched[labelValue(metric, "type")] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"post": 2, "comment": 1}, fetched)

	batches := map[string]float64{}
	for _, metric := range gathered(t, m, "reddit_monitor_batches_total") {
		batches[labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"ok": 2, "failed": 1}, batches)

	ledger := gathered(t, m, "reddit_monitor_ledger_entries")
	require.Len(t, ledger, 1)
	assert.InDelta(t, 12, ledger[0].GetGauge().GetValue(), 1e-9)
}

func TestRouter(t *testing.T) {
	m := New()
	m.ObserveExcluded(2)

	server := httptest.NewServer(Router(m))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "reddit_monitor_items_excluded_total 2")
}
