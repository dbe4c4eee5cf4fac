package repository

import (
	"testing"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) apiCall(t *testing.T, provider, endpoint string, status int, ms float64, bytes int64, userID *uint) *models.APIUsageRecord {
	t.Helper()
	rec, err := f.repos.APIUsage.Record(f.ctx, &models.APIUsageRecord{
		APIProvider:    provider,
		Endpoint:       endpoint,
		RequestMethod:  "GET",
		ResponseStatus: status,
		ResponseTimeMs: ms,
		DataSizeBytes:  bytes,
		UserID:         userID,
	})
	require.NoError(t, err)
	return rec
}

func TestAPIUsageRepository_Record(t *testing.T) {
	f := newFixture(t)

	params, err := models.ToJSON(map[string]string{"date": "2025-01-15"})
	require.NoError(t, err)
	remaining := 998

	rec, err := f.repos.APIUsage.Record(f.ctx, &models.APIUsageRecord{
		APIProvider:        "nasa",
		Endpoint:           "/planetary/apod",
		RequestMethod:      "GET",
		RequestParams:      params,
		ResponseStatus:     200,
		ResponseTimeMs:     312.5,
		DataSizeBytes:      2048,
		RateLimitRemaining: &remaining,
	})
	require.NoError(t, err)

	got, err := f.repos.APIUsage.GetByID(f.ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "nasa", got.APIProvider)
	require.NotNil(t, got.RateLimitRemaining)
	assert.Equal(t, 998, *got.RateLimitRemaining)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.UserID)
	assert.JSONEq(t, `{"date":"2025-01-15"}`, string(got.RequestParams))
}

func TestAPIUsageRepository_RecordRejects(t *testing.T) {
	f := newFixture(t)

	cases := []*models.APIUsageRecord{
		{Endpoint: "/x"},
		{APIProvider: "nasa"},
		{APIProvider: "nasa", Endpoint: "/x", ResponseTimeMs: -1},
		{APIProvider: "nasa", Endpoint: "/x", DataSizeBytes: -1},
		{APIProvider: "nasa", Endpoint: "/x", RequestParams: []byte("nope")},
	}
	for _, c := range cases {
		_, err := f.repos.APIUsage.Record(f.ctx, c)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	}

	list, err := f.repos.APIUsage.ListByProvider(f.ctx, "nasa", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAPIUsageRepository_Lists(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	start := f.clock.Now()

	a := f.apiCall(t, "nasa", "/apod", 200, 100, 10, &alice.ID)
	f.clock.Advance(time.Minute)
	b := f.apiCall(t, "nasa", "/neo", 503, 900, 0, nil)
	f.clock.Advance(time.Minute)
	c := f.apiCall(t, "isro", "/bhuvan", 200, 50, 5, &alice.ID)

	list, err := f.repos.APIUsage.ListByProvider(f.ctx, "nasa", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	list, err = f.repos.APIUsage.ListByEndpoint(f.ctx, "/bhuvan", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	list, err = f.repos.APIUsage.ListByStatus(f.ctx, 503, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list, err = f.repos.APIUsage.ListByUser(f.ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.repos.APIUsage.ListByWindow(f.ctx, models.TimeRange{From: start.Add(time.Minute), To: start.Add(time.Minute)}, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestAPIUsageRepository_Statistics(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now()

	f.apiCall(t, "nasa", "/apod", 200, 100, 10, nil)
	f.apiCall(t, "nasa", "/neo", 404, 300, 0, nil)
	f.apiCall(t, "nasa", "/neo", 500, 200, 0, nil)
	f.apiCall(t, "weather", "/forecast", 200, 40, 90, nil)

	stats, err := f.repos.APIUsage.Statistics(f.ctx, models.TimeRange{From: start, To: start})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"nasa": 3, "weather": 1}, stats.UsageByProvider)
	assert.InDelta(t, 200.0, stats.AvgResponseTimeMs["nasa"], 1e-9)
	assert.InDelta(t, 40.0, stats.AvgResponseTimeMs["weather"], 1e-9)
	assert.Equal(t, map[string]int64{"nasa": 2, "weather": 0}, stats.ErrorCounts)
	assert.Equal(t, int64(100), stats.TotalBytes)

	_, err = f.repos.APIUsage.Statistics(f.ctx, models.TimeRange{From: start, To: start.Add(-time.Second)})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}
