package repository

import (
	"testing"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestQueryLogRepository_Record(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	agents, err := models.ToJSON([]string{"geo_analytics", "data_harvester"})
	require.NoError(t, err)

	q, err := f.repos.QueryLog.Record(f.ctx, &models.QueryLog{
		UserID:                &alice.ID,
		QueryText:             "Flood extent near Kochi",
		QueryType:             "geospatial",
		ProcessingTimeSeconds: 1.2,
		ResultStatus:          "success",
		AgentsInvolved:        agents,
		IPAddress:             "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotZero(t, q.ID)
	assert.True(t, q.CreatedAt.Equal(f.clock.Now()))

	got, err := f.repos.QueryLog.GetByID(f.ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UserID)
	assert.Equal(t, alice.ID, *got.UserID)
	assert.InDelta(t, 1.2, got.ProcessingTimeSeconds, 1e-9)
	assert.JSONEq(t, `["geo_analytics","data_harvester"]`, string(got.AgentsInvolved))
	assert.Empty(t, got.DataSources)
}

func TestQueryLogRepository_RecordRejects(t *testing.T) {
	f := newFixture(t)

	_, err := f.repos.QueryLog.Record(f.ctx, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.repos.QueryLog.Record(f.ctx, &models.QueryLog{QueryText: "x", ProcessingTimeSeconds: -0.5})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.repos.QueryLog.Record(f.ctx, &models.QueryLog{QueryText: "  "})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.repos.QueryLog.Record(f.ctx, &models.QueryLog{QueryText: "x", DataSources: datatypes.JSON(`{broken`)})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.repos.QueryLog.Record(f.ctx, &models.QueryLog{ID: 7, QueryText: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// A user id that does not resolve is a referential failure.
	missing := uint(4242)
	_, err = f.repos.QueryLog.Record(f.ctx, &models.QueryLog{UserID: &missing, QueryText: "x"})
	assert.ErrorIs(t, err, errs.ErrReferential)

	_, err = f.repos.QueryLog.GetByID(f.ctx, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQueryLogRepository_Lists(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	start := f.clock.Now()
	first := f.queryLog(t, &alice.ID, "geospatial", 1)
	f.clock.Advance(time.Hour)
	second := f.queryLog(t, &alice.ID, "astronomy", 2)
	f.clock.Advance(time.Hour)
	third := f.queryLog(t, &bob.ID, "geospatial", 3)

	logs, err := f.repos.QueryLog.ListByUser(f.ctx, alice.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second.ID, logs[0].ID, "newest first")
	assert.Equal(t, first.ID, logs[1].ID)

	window := models.TimeRange{From: start.Add(30 * time.Minute)}
	logs, err = f.repos.QueryLog.ListByUser(f.ctx, alice.ID, &window, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, second.ID, logs[0].ID)

	logs, err = f.repos.QueryLog.ListByType(f.ctx, "geospatial", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, third.ID, logs[0].ID)

	logs, err = f.repos.QueryLog.ListByStatus(f.ctx, "failed", 0)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)

	logs, err = f.repos.QueryLog.ListByWindow(f.ctx, models.TimeRange{From: start, To: start.Add(time.Hour)}, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	_, err = f.repos.QueryLog.ListByWindow(f.ctx, models.TimeRange{From: start, To: start.Add(-time.Hour)}, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestQueryLogRepository_Statistics(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now()

	f.queryLog(t, nil, "geospatial", 1)
	f.queryLog(t, nil, "geospatial", 3)
	_, err := f.repos.QueryLog.Record(f.ctx, &models.QueryLog{
		QueryText:             "Solar flare activity",
		QueryType:             "astronomy",
		ProcessingTimeSeconds: 2,
		ResultStatus:          "failed",
	})
	require.NoError(t, err)

	stats, err := f.repos.QueryLog.Statistics(f.ctx, models.TimeRange{From: start})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalQueries)
	assert.InDelta(t, 2.0, stats.AvgProcessingTimeSecs, 1e-9)
	assert.Equal(t, map[string]int64{"geospatial": 2, "astronomy": 1}, stats.QueriesByType)
	assert.Equal(t, map[string]int64{"success": 2, "failed": 1}, stats.QueriesByStatus)

	empty, err := f.repos.QueryLog.Statistics(f.ctx, models.TimeRange{From: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, empty.TotalQueries)
	assert.Zero(t, empty.AvgProcessingTimeSecs)
	assert.Empty(t, empty.QueriesByType)
}

func TestQueryLogRepository_ListLimits(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	total := models.DefaultUserListLimit + 3
	var newest *models.QueryLog
	for i := 0; i < total; i++ {
		newest = f.queryLog(t, &alice.ID, "geospatial", 1)
	}

	logs, err := f.repos.QueryLog.ListByUser(f.ctx, alice.ID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, logs, models.DefaultUserListLimit)
	assert.Equal(t, newest.ID, logs[0].ID)

	logs, err = f.repos.QueryLog.ListByUser(f.ctx, alice.ID, nil, 5)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
	assert.Equal(t, newest.ID, logs[0].ID)

	// Non-user lists default to the larger cap.
	logs, err = f.repos.QueryLog.ListByType(f.ctx, "geospatial", 0)
	require.NoError(t, err)
	assert.Len(t, logs, total)

	logs, err = f.repos.QueryLog.ListByType(f.ctx, "geospatial", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 10)
}
