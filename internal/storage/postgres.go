package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/sirupsen/logrus"
)

// pgUndefinedTable is the PostgreSQL error code for a missing relation
const pgUndefinedTable = "42P01"

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// schemaMissing maps an undefined-table failure onto ErrSchemaMissing
func schemaMissing(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

// Organization and user operations

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	query := `SELECT * FROM organizations WHERE id = $1`

	err := s.db.GetContext(ctx, &org, query, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}

	return &org, nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	query := `SELECT * FROM organizations ORDER BY id`

	if err := s.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE id = $1`

	err := s.db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, orgID string) ([]models.User, error) {
	var users []models.User
	query := `SELECT * FROM users WHERE org_id = $1 ORDER BY id`

	if err := s.db.SelectContext(ctx, &users, query, orgID); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) SetUserManager(ctx context.Context, userID string, managerUserID *string) error {
	query := `UPDATE users SET manager_user_id = $1 WHERE id = $2`

	res, err := s.db.ExecContext(ctx, query, managerUserID, userID)
	if err != nil {
		return fmt.Errorf("set user manager: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Visibility edges

func (s *PostgresStore) ListVisibilityEdges(ctx context.Context, orgID string) ([]models.VisibilityEdge, error) {
	var edges []models.VisibilityEdge
	query := `SELECT * FROM visibility_edges WHERE org_id = $1 ORDER BY id`

	if err := s.db.SelectContext(ctx, &edges, query, orgID); err != nil {
		return nil, fmt.Errorf("list visibility edges: %w", err)
	}
	return edges, nil
}

func (s *PostgresStore) CreateVisibilityEdge(ctx context.Context, edge *models.VisibilityEdge) error {
	query := `
		INSERT INTO visibility_edges (org_id, manager_user_id, visible_user_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, edge.OrgID, edge.ManagerUserID, edge.VisibleUserID).Scan(&edge.ID)
	if err != nil {
		return fmt.Errorf("create visibility edge: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteVisibilityEdge(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visibility_edges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete visibility edge: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Deal operations

func (s *PostgresStore) ListDeals(ctx context.Context, q DealQuery) ([]models.Deal, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultDealLimit
	}
	if len(q.RepUserIDs) == 0 {
		// Visibility failed closed upstream; never widen to all deals.
		return []models.Deal{}, nil
	}

	var deals []models.Deal
	query := `
		SELECT id, org_id, rep_user_id, rep_name, account_name, opportunity_name,
			amount, close_date, forecast_stage, health_score, signal_text, updated_at
		FROM deals
		WHERE org_id = $1
			AND rep_user_id = ANY($2)
			AND close_date >= $3
			AND close_date <= $4
		ORDER BY close_date, id
		LIMIT $5
	`

	err := s.db.SelectContext(ctx, &deals, query,
		q.OrgID, pq.Array(q.RepUserIDs), q.WindowStart, q.WindowEnd, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	if len(deals) == 0 {
		return deals, nil
	}

	if err := s.attachCategories(ctx, deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// attachCategories folds the per-deal MEDDPICC+TB rows into each deal
func (s *PostgresStore) attachCategories(ctx context.Context, deals []models.Deal) error {
	ids := make([]string, len(deals))
	index := make(map[string]int, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
		index[d.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT deal_id, key, score, evidence_summary, coaching_tip
		FROM deal_category_scores
		WHERE deal_id = ANY($1)
		ORDER BY deal_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list deal categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dealID string
		var cat models.CategoryScore
		if err := rows.Scan(&dealID, &cat.Key, &cat.Score, &cat.EvidenceSummary, &cat.CoachingTip); err != nil {
			return fmt.Errorf("scan deal category: %w", err)
		}
		if i, ok := index[dealID]; ok {
			deals[i].Categories = append(deals[i].Categories, cat)
		}
	}
	return rows.Err()
}

// Health rule operations

func (s *PostgresStore) ListHealthRules(ctx context.Context, orgID string) ([]models.HealthScoreRule, error) {
	var rules []models.HealthScoreRule
	query := `SELECT * FROM health_score_rules WHERE org_id = $1 ORDER BY id`

	if err := s.db.SelectContext(ctx, &rules, query, orgID); err != nil {
		if schemaMissing(err) {
			return nil, ErrSchemaMissing
		}
		return nil, fmt.Errorf("list health rules: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) CreateHealthRule(ctx context.Context, rule *models.HealthScoreRule) error {
	query := `
		INSERT INTO health_score_rules
			(org_id, min_score, max_score, mapped_category, suppression, probability_modifier, created_at)
		VALUES (:org_id, :min_score, :max_score, :mapped_category, :suppression, :probability_modifier, :created_at)
		RETURNING id
	`

	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("create health rule: %w", err)
	}
	defer stmt.Close()

	if err := stmt.QueryRowxContext(ctx, rule).Scan(&rule.ID); err != nil {
		return fmt.Errorf("create health rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteHealthRule(ctx context.Context, orgID string, ruleID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM health_score_rules WHERE org_id = $1 AND id = $2`, orgID, ruleID)
	if err != nil {
		return fmt.Errorf("delete health rule: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Quota period operations

func (s *PostgresStore) ListQuotaPeriods(ctx context.Context, orgID string) ([]models.QuotaPeriod, error) {
	var periods []models.QuotaPeriod
	query := `SELECT * FROM quota_periods WHERE org_id = $1 ORDER BY period_start DESC`

	if err := s.db.SelectContext(ctx, &periods, query, orgID); err != nil {
		return nil, fmt.Errorf("list quota periods: %w", err)
	}
	return periods, nil
}

func (s *PostgresStore) CreateQuotaPeriod(ctx context.Context, p *models.QuotaPeriod) error {
	query := `
		INSERT INTO quota_periods (org_id, period_start, period_end, fiscal_year, fiscal_quarter)
		VALUES (:org_id, :period_start, :period_end, :fiscal_year, :fiscal_quarter)
		RETURNING id
	`

	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("create quota period: %w", err)
	}
	defer stmt.Close()

	if err := stmt.QueryRowxContext(ctx, p).Scan(&p.ID); err != nil {
		return fmt.Errorf("create quota period: %w", err)
	}
	return nil
}

// Org configuration

func (s *PostgresStore) GetStageProbabilities(ctx context.Context, orgID string) (*models.StageProbabilities, error) {
	var probs models.StageProbabilities
	query := `SELECT * FROM stage_probabilities WHERE org_id = $1`

	err := s.db.GetContext(ctx, &probs, query, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get stage probabilities: %w", err)
	}
	return &probs, nil
}

func (s *PostgresStore) ListScoreLabels(ctx context.Context, orgID string) ([]models.ScoreLabel, error) {
	var labels []models.ScoreLabel
	query := `SELECT * FROM score_labels WHERE org_id = $1 ORDER BY category_key, score`

	if err := s.db.SelectContext(ctx, &labels, query, orgID); err != nil {
		return nil, fmt.Errorf("list score labels: %w", err)
	}
	return labels, nil
}
