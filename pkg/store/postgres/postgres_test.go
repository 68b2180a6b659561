package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("geoaudit_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	audit := &models.Audit{
		OwnerSubjectID: "user-1",
		OwnerEmail:     "user@example.com",
		Config: models.AuditConfig{
			SeedURL:  "https://example.com",
			Language: models.LanguageEN,
			Market:   models.MarketUS,
			CrawlCap: 50,
		},
	}
	require.NoError(t, s.Put(ctx, audit))
	assert.NotZero(t, audit.ID)

	got, err := s.Get(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerSubjectID)
	assert.Equal(t, "https://example.com", got.Config.SeedURL)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestUpdateStatusIsMonotonicOnProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	audit := &models.Audit{OwnerSubjectID: "user-1", Config: models.AuditConfig{SeedURL: "https://example.com"}}
	require.NoError(t, s.Put(ctx, audit))

	require.NoError(t, s.UpdateStatus(ctx, audit.ID, models.StatusRunning, 40, "crawl", ""))
	require.NoError(t, s.UpdateStatus(ctx, audit.ID, models.StatusRunning, 10, "crawl", ""))

	got, err := s.Get(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress, "progress must never regress, even if a stale update races in")
	require.NotNil(t, got.StartedAt)
}

func TestSetResultsPersistsNestedStructures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	audit := &models.Audit{OwnerSubjectID: "user-1", Config: models.AuditConfig{SeedURL: "https://example.com"}}
	require.NoError(t, s.Put(ctx, audit))

	results := models.AuditResults{
		ReportMarkdown: "## Executive Summary\n",
		FixPlan: []models.FixItem{
			{Issue: "missing schema markup", Priority: models.PriorityCritical, Page: "/", RecommendedValue: "add JSON-LD"},
		},
		Incomplete: true,
		Warnings:   []string{"llm_unavailable"},
	}
	require.NoError(t, s.SetResults(ctx, audit.ID, results))

	got, err := s.Get(ctx, audit.ID)
	require.NoError(t, err)
	require.Len(t, got.Results.FixPlan, 1)
	assert.Equal(t, models.PriorityCritical, got.Results.FixPlan[0].Priority)
	assert.True(t, got.Results.Incomplete)
	assert.Contains(t, got.Results.Warnings, "llm_unavailable")
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 99999)
	require.Error(t, err)
}
