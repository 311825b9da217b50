package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedChecker(name string, last time.Time, maxAge time.Duration, now time.Time) *StalenessChecker {
	c := NewStalenessChecker(name, func() time.Time { return last }, maxAge)
	c.now = func() time.Time { return now }
	return c
}

func TestStalenessChecker(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want HealthStatus
	}{
		{"never", time.Time{}, StatusUnhealthy},
		{"fresh", now.Add(-time.Second), StatusHealthy},
		{"stale", now.Add(-15 * time.Second), StatusDegraded},
		{"dead", now.Add(-time.Minute), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := fixedChecker("sampler", tt.last, 10*time.Second, now).Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Equal(t, "sampler", h.Name)
		})
	}
}

func TestHealthManager_OverallStatus(t *testing.T) {
	now := time.Now()
	reg := prometheus.NewRegistry()
	hm := NewHealthManager("test", zerolog.Nop(), reg)

	hm.RegisterChecker(NewStaticChecker("documentdb", nil))
	health := hm.CheckHealth(context.Background())
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, int64(1), health.CheckCount)

	hm.RegisterChecker(fixedChecker("sampler", now.Add(-15*time.Second), 10*time.Second, now))
	health = hm.CheckHealth(context.Background())
	assert.Equal(t, StatusDegraded, health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, 0.5, testutil.ToFloat64(hm.componentStatus.WithLabelValues("sampler")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hm.componentStatus.WithLabelValues("documentdb")))
}

func TestHealthManager_HTTPHandler(t *testing.T) {
	hm := NewHealthManager("v1", zerolog.Nop(), nil)
	hm.RegisterChecker(NewStalenessChecker("sampler", func() time.Time { return time.Time{} }, time.Second))

	rec := httptest.NewRecorder()
	hm.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, "v1", body.Version)
	require.Contains(t, body.Components, "sampler")
}
