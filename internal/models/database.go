package models

// GORM models

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Table names
const (
	TableUsers     = "users"
	TableQueryLogs = "query_logs"
	TableAPIUsage  = "api_usage"
	TableFeedback  = "feedback"
)

// Rating bounds enforced by chk_feedback_rating
const (
	MinRating = 1
	MaxRating = 5
)

// List limits. Per-user lists default to DefaultUserListLimit, every other
// list to DefaultListLimit; no list returns more than MaxListLimit rows.
const (
	DefaultUserListLimit = 50
	DefaultListLimit     = 100
	MaxListLimit         = 1000
)

// ListLimit resolves a caller-supplied limit. Non-positive means def.
func ListLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit
}

// User is an account. Rows are never hard-deleted by the application;
// Deactivate clears is_active instead.
type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Username       string     `json:"username" gorm:"size:100;not null;uniqueIndex:idx_users_username"`
	Email          string     `json:"email" gorm:"size:255;not null;uniqueIndex:idx_users_email"`
	HashedPassword string     `json:"-" gorm:"size:255;not null"`
	FullName       *string    `json:"full_name" gorm:"size:255"`
	IsActive       bool       `json:"is_active" gorm:"not null;default:true;index:idx_users_is_active"`
	IsAdmin        bool       `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      *time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
	LastLogin      *time.Time `json:"last_login"`
}

// QueryLog records one processed query. Append-only.
type QueryLog struct {
	ID                    uint           `json:"id" gorm:"primaryKey"`
	UserID                *uint          `json:"user_id" gorm:"index:idx_query_logs_user_id"`
	QueryText             string         `json:"query_text" gorm:"type:text;not null"`
	QueryType             string         `json:"query_type" gorm:"size:50;index:idx_query_logs_query_type"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds" gorm:"check:chk_query_logs_processing_time_seconds,processing_time_seconds >= 0"`
	ResultStatus          string         `json:"result_status" gorm:"size:20;index:idx_query_logs_result_status"`
	ResultSummary         string         `json:"result_summary" gorm:"type:text"`
	AgentsInvolved        datatypes.JSON `json:"agents_involved" gorm:"type:json"`
	DataSources           datatypes.JSON `json:"data_sources" gorm:"type:json"`
	CreatedAt             time.Time      `json:"created_at" gorm:"not null;autoCreateTime;index:idx_query_logs_created_at"`
	IPAddress             string         `json:"ip_address" gorm:"column:ip_address;size:45"`
	UserAgent             string         `json:"user_agent" gorm:"type:text"`

	// Associations
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

// APIUsageRecord records one outbound call to a data provider. Append-only.
type APIUsageRecord struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	APIProvider        string         `json:"api_provider" gorm:"column:api_provider;size:50;not null;index:idx_api_usage_api_provider"`
	Endpoint           string         `json:"endpoint" gorm:"size:255;not null;index:idx_api_usage_endpoint"`
	RequestMethod      string         `json:"request_method" gorm:"size:10"`
	RequestParams      datatypes.JSON `json:"request_params" gorm:"type:json"`
	ResponseStatus     int            `json:"response_status" gorm:"index:idx_api_usage_response_status"`
	ResponseTimeMs     float64        `json:"response_time_ms" gorm:"check:chk_api_usage_response_time_ms,response_time_ms >= 0"`
	DataSizeBytes      int64          `json:"data_size_bytes" gorm:"check:chk_api_usage_data_size_bytes,data_size_bytes >= 0"`
	RateLimitRemaining *int           `json:"rate_limit_remaining"`
	ErrorMessage       *string        `json:"error_message" gorm:"type:text"`
	UserID             *uint          `json:"user_id" gorm:"index:idx_api_usage_user_id"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null;autoCreateTime;index:idx_api_usage_created_at"`

	// Associations
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

// Feedback is a rating left against a query log. It lives and dies with
// that log; the user reference is advisory.
type Feedback struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	UserID        *uint      `json:"user_id" gorm:"index:idx_feedback_user_id"`
	QueryLogID    uint       `json:"query_log_id" gorm:"not null;index:idx_feedback_query_log_id"`
	Rating        int        `json:"rating" gorm:"not null;index:idx_feedback_rating;check:chk_feedback_rating,rating >= 1 AND rating <= 5"`
	FeedbackType  string     `json:"feedback_type" gorm:"size:50"`
	FeedbackText  string     `json:"feedback_text" gorm:"type:text"`
	IsResolved    bool       `json:"is_resolved" gorm:"not null;default:false"`
	AdminResponse *string    `json:"admin_response" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at" gorm:"not null;autoCreateTime;index:idx_feedback_created_at"`
	UpdatedAt     *time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
	Category      *string    `json:"category" gorm:"size:50;index:idx_feedback_category"`

	// Associations
	User     *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	QueryLog *QueryLog `json:"-" gorm:"foreignKey:QueryLogID;constraint:OnDelete:CASCADE"`
}

// FeedbackState is derived from IsResolved.
type FeedbackState string

const (
	FeedbackOpen     FeedbackState = "open"
	FeedbackResolved FeedbackState = "resolved"
)

func (f *Feedback) State() FeedbackState {
	if f.IsResolved {
		return FeedbackResolved
	}
	return FeedbackOpen
}

// UserUpdate lists the mutable user fields; nil means unchanged.
type UserUpdate struct {
	Username       *string
	Email          *string
	HashedPassword *string
	FullName       *string
	IsActive       *bool
	IsAdmin        *bool
}

// FeedbackSubmission is the input of FeedbackRepository.Submit.
type FeedbackSubmission struct {
	UserID     *uint
	QueryLogID uint
	Rating     int
	Type       string
	Text       string
	Category   *string
}

// TimeRange bounds created_at. A zero From or To leaves that side open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Apply adds the range predicate to a query on the given column.
func (r TimeRange) Apply(db *gorm.DB, column string) *gorm.DB {
	if !r.From.IsZero() {
		db = db.Where(column+" >= ?", r.From)
	}
	if !r.To.IsZero() {
		db = db.Where(column+" <= ?", r.To)
	}
	return db
}

func (r TimeRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return errs.InvalidArgument("", "time_range", "end is before start")
	}
	return nil
}

// Database interfaces for repository pattern
type UserRepository interface {
	Create(ctx context.Context, username, email, credentialHash string, fullName *string) (*User, error)
	GetByID(ctx context.Context, id uint) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListActive(ctx context.Context) ([]User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Update(ctx context.Context, id uint, fields UserUpdate) (*User, error)
	Deactivate(ctx context.Context, id uint) (*User, error)
}

type QueryLogRepository interface {
	Record(ctx context.Context, entry *QueryLog) (*QueryLog, error)
	GetByID(ctx context.Context, id uint) (*QueryLog, error)
	ListByUser(ctx context.Context, userID uint, window *TimeRange, limit int) ([]QueryLog, error)
	ListByType(ctx context.Context, queryType string, limit int) ([]QueryLog, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]QueryLog, error)
	ListByWindow(ctx context.Context, window TimeRange, limit int) ([]QueryLog, error)
	Statistics(ctx context.Context, window TimeRange) (*QueryStatistics, error)
}

type APIUsageRepository interface {
	Record(ctx context.Context, entry *APIUsageRecord) (*APIUsageRecord, error)
	GetByID(ctx context.Context, id uint) (*APIUsageRecord, error)
	ListByProvider(ctx context.Context, provider string, limit int) ([]APIUsageRecord, error)
	ListByEndpoint(ctx context.Context, endpoint string, limit int) ([]APIUsageRecord, error)
	ListByStatus(ctx context.Context, status int, limit int) ([]APIUsageRecord, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]APIUsageRecord, error)
	ListByWindow(ctx context.Context, window TimeRange, limit int) ([]APIUsageRecord, error)
	Statistics(ctx context.Context, window TimeRange) (*APIUsageStatistics, error)
}

type FeedbackRepository interface {
	Submit(ctx context.Context, in FeedbackSubmission) (*Feedback, error)
	GetByID(ctx context.Context, id uint) (*Feedback, error)
	Resolve(ctx context.Context, id uint, adminResponse string) (*Feedback, error)
	ListByCategory(ctx context.Context, category string, limit int) ([]Feedback, error)
	ListByRating(ctx context.Context, rating int, limit int) ([]Feedback, error)
	ListUnresolved(ctx context.Context, limit int) ([]Feedback, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]Feedback, error)
	ListByQueryLog(ctx context.Context, queryLogID uint, limit int) ([]Feedback, error)
	Statistics(ctx context.Context) (*FeedbackStatistics, error)
}

// TableName methods for custom table names
func (User) TableName() string           { return TableUsers }
func (QueryLog) TableName() string       { return TableQueryLogs }
func (APIUsageRecord) TableName() string { return TableAPIUsage }
func (Feedback) TableName() string       { return TableFeedback }

// Model validation methods
func ValidateNewUser(username, email, credentialHash string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	return validateCredentialHash(credentialHash)
}

func (u *User) Validate() error {
	return ValidateNewUser(u.Username, u.Email, u.HashedPassword)
}

func (u UserUpdate) Validate() error {
	if u.Username != nil {
		if err := validateUsername(*u.Username); err != nil {
			return err
		}
	}
	if u.Email != nil {
		if err := validateEmail(*u.Email); err != nil {
			return err
		}
	}
	if u.HashedPassword != nil {
		if err := validateCredentialHash(*u.HashedPassword); err != nil {
			return err
		}
	}
	if u.FullName != nil && len(*u.FullName) > 255 {
		return errs.InvalidArgument(TableUsers, "full_name", "must be at most 255 characters")
	}
	return nil
}

func (q *QueryLog) Validate() error {
	if strings.TrimSpace(q.QueryText) == "" {
		return errs.InvalidArgument(TableQueryLogs, "query_text", "is required")
	}
	if math.IsNaN(q.ProcessingTimeSeconds) || q.ProcessingTimeSeconds < 0 {
		return errs.InvalidArgument(TableQueryLogs, "processing_time_seconds", "must not be negative")
	}
	if len(q.QueryType) > 50 {
		return errs.InvalidArgument(TableQueryLogs, "query_type", "must be at most 50 characters")
	}
	if len(q.ResultStatus) > 20 {
		return errs.InvalidArgument(TableQueryLogs, "result_status", "must be at most 20 characters")
	}
	if len(q.IPAddress) > 45 {
		return errs.InvalidArgument(TableQueryLogs, "ip_address", "must be at most 45 characters")
	}
	if err := validateJSON(TableQueryLogs, "agents_involved", q.AgentsInvolved); err != nil {
		return err
	}
	return validateJSON(TableQueryLogs, "data_sources", q.DataSources)
}

func (a *APIUsageRecord) Validate() error {
	if strings.TrimSpace(a.APIProvider) == "" {
		return errs.InvalidArgument(TableAPIUsage, "api_provider", "is required")
	}
	if strings.TrimSpace(a.Endpoint) == "" {
		return errs.InvalidArgument(TableAPIUsage, "endpoint", "is required")
	}
	if len(a.APIProvider) > 50 {
		return errs.InvalidArgument(TableAPIUsage, "api_provider", "must be at most 50 characters")
	}
	if len(a.Endpoint) > 255 {
		return errs.InvalidArgument(TableAPIUsage, "endpoint", "must be at most 255 characters")
	}
	if len(a.RequestMethod) > 10 {
		return errs.InvalidArgument(TableAPIUsage, "request_method", "must be at most 10 characters")
	}
	if math.IsNaN(a.ResponseTimeMs) || a.ResponseTimeMs < 0 {
		return errs.InvalidArgument(TableAPIUsage, "response_time_ms", "must not be negative")
	}
	if a.DataSizeBytes < 0 {
		return errs.InvalidArgument(TableAPIUsage, "data_size_bytes", "must not be negative")
	}
	return validateJSON(TableAPIUsage, "request_params", a.RequestParams)
}

func (s FeedbackSubmission) Validate() error {
	if err := ValidateRating(s.Rating); err != nil {
		return err
	}
	if s.QueryLogID == 0 {
		return errs.InvalidArgument(TableFeedback, "query_log_id", "is required")
	}
	if len(s.Type) > 50 {
		return errs.InvalidArgument(TableFeedback, "feedback_type", "must be at most 50 characters")
	}
	if s.Category != nil && len(*s.Category) > 50 {
		return errs.InvalidArgument(TableFeedback, "category", "must be at most 50 characters")
	}
	return nil
}

func (f *Feedback) Validate() error {
	return FeedbackSubmission{
		UserID:     f.UserID,
		QueryLogID: f.QueryLogID,
		Rating:     f.Rating,
		Type:       f.FeedbackType,
		Text:       f.FeedbackText,
		Category:   f.Category,
	}.Validate()
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return errs.InvalidArgument(TableFeedback, "rating", "must be between 1 and 5")
	}
	return nil
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errs.InvalidArgument(TableUsers, "username", "is required")
	}
	if len(username) > 100 {
		return errs.InvalidArgument(TableUsers, "username", "must be at most 100 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return errs.InvalidArgument(TableUsers, "email", "is required")
	}
	if len(email) > 255 {
		return errs.InvalidArgument(TableUsers, "email", "must be at most 255 characters")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return errs.InvalidArgument(TableUsers, "email", "is not a valid address")
	}
	return nil
}

func validateCredentialHash(hash string) error {
	if !IsCredentialHash(hash) {
		return errs.InvalidArgument(TableUsers, "hashed_password", "must be a bcrypt hash, not a plaintext password")
	}
	return nil
}

func validateJSON(table, field string, value datatypes.JSON) error {
	if len(value) == 0 {
		return nil
	}
	if !json.Valid(value) {
		return errs.InvalidArgument(table, field, "is not valid JSON")
	}
	return nil
}

// GORM hooks
func (u *User) BeforeCreate(tx *gorm.DB) error {
	return u.Validate()
}

func (q *QueryLog) BeforeCreate(tx *gorm.DB) error {
	return q.Validate()
}

func (a *APIUsageRecord) BeforeCreate(tx *gorm.DB) error {
	return a.Validate()
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	return f.Validate()
}
