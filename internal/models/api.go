package models

import "time"

// QueryStatistics summarises query_logs over a window.
type QueryStatistics struct {
	From                  time.Time        `json:"from,omitempty"`
	To                    time.Time        `json:"to,omitempty"`
	TotalQueries          int64            `json:"total_queries"`
	QueriesByType         map[string]int64 `json:"queries_by_type"`
	QueriesByStatus       map[string]int64 `json:"queries_by_status"`
	AvgProcessingTimeSecs float64          `json:"avg_processing_time"`
}

// APIUsageStatistics summarises api_usage per provider over a window.
type APIUsageStatistics struct {
	From              time.Time          `json:"from,omitempty"`
	To                time.Time          `json:"to,omitempty"`
	UsageByProvider   map[string]int64   `json:"usage_by_provider"`
	AvgResponseTimeMs map[string]float64 `json:"avg_response_time"`
	ErrorCounts       map[string]int64   `json:"error_counts"`
	TotalBytes        int64              `json:"total_bytes"`
}

// FeedbackStatistics summarises all feedback rows.
type FeedbackStatistics struct {
	TotalFeedback       int64            `json:"total_feedback"`
	AverageRating       float64          `json:"average_rating"`
	RatingsDistribution map[int]int64    `json:"ratings_distribution"`
	FeedbackByCategory  map[string]int64 `json:"feedback_by_category"`
	Resolved            int64            `json:"resolved"`
	Unresolved          int64            `json:"unresolved"`
}
