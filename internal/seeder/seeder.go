// Package seeder loads demo users, query logs, API usage and feedback
// through the repositories, so every write takes the validated path.
package seeder

import (
	"context"
	"fmt"

	"github.com/astrogeo/backend/internal/models"
	"github.com/astrogeo/backend/internal/repository"
	"github.com/sirupsen/logrus"
)

type demoQuery struct {
	text      string
	queryType string
	agents    []string
	sources   []string
	seconds   float64
	status    string
}

type demoCall struct {
	provider string
	endpoint string
	status   int
	ms       float64
	bytes    int64
}

var (
	demoQueries = []demoQuery{
		{"NDVI trend for Punjab wheat belt, last 90 days", "geospatial", []string{"geo_analytics", "data_harvester"}, []string{"isro", "weather"}, 1.2, "success"},
		{"Is there a geomagnetic storm expected this week?", "astronomy", []string{"astro_intel"}, []string{"nasa"}, 0.8, "success"},
		{"Flood anomaly near Guwahati from yesterday's pass", "anomaly", []string{"anomaly_detection", "visual_intel"}, []string{"isro"}, 3.4, "success"},
		{"Daily insight digest for Chennai", "insights", []string{"daily_insights"}, []string{"weather", "nasa"}, 2.1, "partial"},
		{"Near earth objects passing within 0.05 AU", "astronomy", []string{"astro_intel", "data_harvester"}, []string{"nasa"}, 5.0, "failed"},
	}

	demoCalls = []demoCall{
		{"nasa", "/planetary/apod", 200, 240, 4096},
		{"nasa", "/neo/rest/v1/feed", 429, 90, 0},
		{"isro", "/bhuvan/ndvi", 200, 880, 262144},
		{"weather", "/data/2.5/forecast", 200, 130, 8192},
		{"weather", "/data/2.5/onecall", 503, 3000, 0},
	}

	demoCategories = []string{"accuracy", "speed", "relevance"}
)

// Summary counts what Seed wrote or, in a dry run, would write.
type Summary struct {
	Users     int
	QueryLogs int
	APICalls  int
	Feedback  int
	Resolved  int
}

type Seeder struct {
	repoManager *repository.RepositoryManager
	logger      *logrus.Logger
	dryRun      bool
}

func NewSeeder(repoManager *repository.RepositoryManager, logger *logrus.Logger, dryRun bool) *Seeder {
	return &Seeder{
		repoManager: repoManager,
		logger:      logger,
		dryRun:      dryRun,
	}
}

// Seed creates users demo-user-1..n (reusing existing ones) and, for each, one
// query log per demo query, the provider calls behind it and a rating on
// every query. Every third feedback row is resolved.
func (s *Seeder) Seed(ctx context.Context, users int) (Summary, error) {
	var summary Summary
	if users <= 0 {
		return summary, fmt.Errorf("users must be positive, got %d", users)
	}

	credential, err := models.HashPassword("astrogeo-demo")
	if err != nil {
		return summary, fmt.Errorf("hash demo credential: %w", err)
	}

	for i := 1; i <= users; i++ {
		username := fmt.Sprintf("demo-user-%d", i)
		log := s.logger.WithField("user", username)

		if s.dryRun {
			summary.Users++
			summary.QueryLogs += len(demoQueries)
			summary.APICalls += len(demoQueries) * 2
			summary.Feedback += len(demoQueries)
			log.Info("DRY RUN: Would seed user")
			continue
		}

		user, err := s.ensureUser(ctx, username, credential)
		if err != nil {
			return summary, err
		}
		summary.Users++

		for j, q := range demoQueries {
			entry, err := s.recordQuery(ctx, user.ID, q)
			if err != nil {
				return summary, fmt.Errorf("seed query for %s: %w", username, err)
			}
			summary.QueryLogs++

			for k := 0; k < 2; k++ {
				call := demoCalls[(i+j+k)%len(demoCalls)]
				if err := s.recordCall(ctx, user.ID, call); err != nil {
					return summary, fmt.Errorf("seed api usage for %s: %w", username, err)
				}
				summary.APICalls++
			}

			category := demoCategories[(i+j)%len(demoCategories)]
			fb, err := s.repoManager.Feedback.Submit(ctx, models.FeedbackSubmission{
				UserID:     &user.ID,
				QueryLogID: entry.ID,
				Rating:     models.MinRating + (i+j)%models.MaxRating,
				Type:       "rating",
				Text:       fmt.Sprintf("Demo feedback on %q", q.text),
				Category:   &category,
			})
			if err != nil {
				return summary, fmt.Errorf("seed feedback for %s: %w", username, err)
			}
			summary.Feedback++

			if summary.Feedback%3 == 0 {
				if _, err := s.repoManager.Feedback.Resolve(ctx, fb.ID, "Thanks, logged for the next model update."); err != nil {
					return summary, fmt.Errorf("resolve feedback %d: %w", fb.ID, err)
				}
				summary.Resolved++
			}
		}

		log.WithField("queries", len(demoQueries)).Debug("Seeded user activity")
	}

	s.logger.WithFields(logrus.Fields{
		"users":      summary.Users,
		"query_logs": summary.QueryLogs,
		"api_calls":  summary.APICalls,
		"feedback":   summary.Feedback,
		"resolved":   summary.Resolved,
		"dry_run":    s.dryRun,
	}).Info("Seeding completed")
	return summary, nil
}

func (s *Seeder) ensureUser(ctx context.Context, username, credential string) (*models.User, error) {
	existing, err := s.repoManager.User.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.WithField("user", username).Debug("User already present")
		return existing, nil
	}

	fullName := "Demo " + username
	return s.repoManager.User.Create(ctx, username, username+"@demo.astrogeo.local", credential, &fullName)
}

func (s *Seeder) recordQuery(ctx context.Context, userID uint, q demoQuery) (*models.QueryLog, error) {
	agents, err := models.ToJSON(q.agents)
	if err != nil {
		return nil, err
	}
	sources, err := models.ToJSON(q.sources)
	if err != nil {
		return nil, err
	}

	return s.repoManager.QueryLog.Record(ctx, &models.QueryLog{
		UserID:                &userID,
		QueryText:             q.text,
		QueryType:             q.queryType,
		ProcessingTimeSeconds: q.seconds,
		ResultStatus:          q.status,
		ResultSummary:         "seeded",
		AgentsInvolved:        agents,
		DataSources:           sources,
		IPAddress:             "127.0.0.1",
		UserAgent:             "astrogeo-seed",
	})
}

func (s *Seeder) recordCall(ctx context.Context, userID uint, call demoCall) error {
	params, err := models.ToJSON(map[string]string{"source": "seed"})
	if err != nil {
		return err
	}

	rec := &models.APIUsageRecord{
		APIProvider:    call.provider,
		Endpoint:       call.endpoint,
		RequestMethod:  "GET",
		RequestParams:  params,
		ResponseStatus: call.status,
		ResponseTimeMs: call.ms,
		DataSizeBytes:  call.bytes,
		UserID:         &userID,
	}
	if call.status >= 400 {
		msg := fmt.Sprintf("provider returned %d", call.status)
		rec.ErrorMessage = &msg
	}
	_, err = s.repoManager.APIUsage.Record(ctx, rec)
	return err
}
