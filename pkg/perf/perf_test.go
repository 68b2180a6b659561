package perf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

func samplePayload(auditCount int) string {
	var audits strings.Builder
	for i := 0; i < auditCount; i++ {
		if i > 0 {
			audits.WriteString(",")
		}
		fmt.Fprintf(&audits, `"audit-%d": {"title": "Audit %d", "score": 0.9, "scoreDisplayMode": "numeric", "numericValue": 1}`, i, i)
	}
	return fmt.Sprintf(`{
		"lighthouseResult": {
			"categories": {
				"performance": {"score": 0.87},
				"accessibility": {"score": 0.95},
				"best-practices": {"score": 0.8},
				"seo": {"score": 0.92}
			},
			"audits": {
				"largest-contentful-paint": {"title": "LCP", "numericValue": 1800},
				"interaction-to-next-paint": {"title": "INP", "numericValue": 150},
				"cumulative-layout-shift": {"title": "CLS", "numericValue": 0.05},
				"first-contentful-paint": {"title": "FCP", "numericValue": 900},
				"server-response-time": {"title": "TTFB", "numericValue": 300},
				%s
			}
		}
	}`, audits.String())
}

func TestFetchPerformanceProjectsBothStrategies(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "https://example.com/", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePayload(100)))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second, 24*time.Hour)
	mobile, desktop, err := c.FetchPerformance(context.Background(), "https://example.com/")

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, models.StrategyMobile, mobile.Strategy)
	assert.Equal(t, models.StrategyDesktop, desktop.Strategy)
	assert.InDelta(t, 87.0, mobile.PerformanceScore, 0.01)
	assert.Equal(t, 1800.0, mobile.Vitals.LCPMillis)
	assert.GreaterOrEqual(t, mobile.TotalAuditCount(), 100)
	assert.Empty(t, mobile.Error)
}

func TestFetchPerformanceRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePayload(100)))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, 24*time.Hour)
	mobile, _, err := c.FetchPerformance(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, mobile.Error)
}

func TestFetchPerformanceDoesNotRetry4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 5*time.Second, 24*time.Hour)
	mobile, desktop, err := c.FetchPerformance(context.Background(), "https://example.com/")
	require.Error(t, err)
	assert.NotEmpty(t, mobile.Error)
	assert.NotEmpty(t, desktop.Error)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIsStaleByAge(t *testing.T) {
	fresh := models.PerfReport{FetchedAt: time.Now()}
	stale := models.PerfReport{FetchedAt: time.Now().Add(-48 * time.Hour)}
	assert.False(t, IsStale(fresh, 24*time.Hour))
	assert.True(t, IsStale(stale, 24*time.Hour))
}

func TestIsStaleWhenErrored(t *testing.T) {
	errored := models.PerfReport{FetchedAt: time.Now(), Error: "oracle unavailable"}
	assert.True(t, IsStale(errored, 24*time.Hour))
}
