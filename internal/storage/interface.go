package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrSchemaMissing means an expected table is absent. The outlook
	// service treats a missing rule table as recoverable: every deal keeps
	// unmodified CRM-only weighting.
	ErrSchemaMissing = errors.New("schema missing")
)

// DefaultDealLimit bounds the candidate set a single computation reads so
// latency stays predictable.
const DefaultDealLimit = 2000

// DealQuery scopes a bounded deal listing
type DealQuery struct {
	OrgID       string
	RepUserIDs  []string
	WindowStart time.Time
	WindowEnd   time.Time
	Limit       int
}

// Store defines the persistence interface the platform reads and the admin
// service writes through
type Store interface {
	// Organization and user operations
	GetOrganization(ctx context.Context, orgID string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context, orgID string) ([]models.User, error)
	SetUserManager(ctx context.Context, userID string, managerUserID *string) error

	// Visibility edges
	ListVisibilityEdges(ctx context.Context, orgID string) ([]models.VisibilityEdge, error)
	CreateVisibilityEdge(ctx context.Context, edge *models.VisibilityEdge) error
	DeleteVisibilityEdge(ctx context.Context, id int64) error

	// Deal operations (read-only to this platform; ingestion writes them)
	ListDeals(ctx context.Context, q DealQuery) ([]models.Deal, error)

	// Health rule operations
	ListHealthRules(ctx context.Context, orgID string) ([]models.HealthScoreRule, error)
	CreateHealthRule(ctx context.Context, rule *models.HealthScoreRule) error
	DeleteHealthRule(ctx context.Context, orgID string, ruleID int64) error

	// Quota period operations, newest period_start first
	ListQuotaPeriods(ctx context.Context, orgID string) ([]models.QuotaPeriod, error)
	CreateQuotaPeriod(ctx context.Context, p *models.QuotaPeriod) error

	// Org configuration
	GetStageProbabilities(ctx context.Context, orgID string) (*models.StageProbabilities, error)
	ListScoreLabels(ctx context.Context, orgID string) ([]models.ScoreLabel, error)

	// Close connection
	Close() error
}
