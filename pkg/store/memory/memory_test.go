package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

func TestPutAssignsIDAndGetRoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()

	audit := &models.Audit{OwnerSubjectID: "user-1", Config: models.AuditConfig{SeedURL: "https://example.com"}}
	require.NoError(t, s.Put(ctx, audit))
	assert.NotZero(t, audit.ID)

	got, err := s.Get(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerSubjectID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestUpdateStatusMarksTimestamps(t *testing.T) {
	s := New()
	ctx := context.Background()

	audit := &models.Audit{OwnerSubjectID: "user-1"}
	require.NoError(t, s.Put(ctx, audit))

	require.NoError(t, s.UpdateStatus(ctx, audit.ID, models.StatusRunning, 10, "validate", ""))
	got, err := s.Get(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Equal(t, 10, got.Progress)
	require.NotNil(t, got.StartedAt)

	require.NoError(t, s.UpdateStatus(ctx, audit.ID, models.StatusCompleted, 100, "finalize", ""))
	got, err = s.Get(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.FinishedAt)
}

func TestSetResultsIsIsolatedFromCallerMutation(t *testing.T) {
	s := New()
	ctx := context.Background()

	audit := &models.Audit{OwnerSubjectID: "user-1"}
	require.NoError(t, s.Put(ctx, audit))

	results := models.AuditResults{ReportMarkdown: "## Executive Summary\n"}
	require.NoError(t, s.SetResults(ctx, audit.ID, results))

	results.ReportMarkdown = "mutated after the call"

	got, err := s.Get(ctx, audit.ID)
	require.NoError(t, err)
	assert.Equal(t, "## Executive Summary\n", got.Results.ReportMarkdown)
}
