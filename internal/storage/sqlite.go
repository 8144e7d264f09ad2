package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements storage using SQLite (for local/development)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_org_id TEXT,
		full_analytics_access BOOLEAN DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		hierarchy_level INTEGER DEFAULT 0,
		manager_user_id TEXT,
		active BOOLEAN DEFAULT 1,
		see_all_visibility BOOLEAN DEFAULT 0,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS visibility_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_id TEXT NOT NULL,
		manager_user_id TEXT NOT NULL,
		visible_user_id TEXT NOT NULL,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		rep_user_id TEXT NOT NULL,
		rep_name TEXT,
		account_name TEXT,
		opportunity_name TEXT,
		amount REAL NOT NULL,
		close_date DATETIME,
		forecast_stage TEXT,
		health_score INTEGER,
		signal_text TEXT,
		updated_at DATETIME,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS deal_category_scores (
		deal_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		key TEXT NOT NULL,
		score INTEGER,
		evidence_summary TEXT DEFAULT '',
		coaching_tip TEXT DEFAULT '',
		PRIMARY KEY (deal_id, key),
		FOREIGN KEY (deal_id) REFERENCES deals(id)
	);

	CREATE TABLE IF NOT EXISTS health_score_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_id TEXT NOT NULL,
		min_score INTEGER NOT NULL,
		max_score INTEGER NOT NULL,
		mapped_category TEXT NOT NULL,
		suppression BOOLEAN DEFAULT 0,
		probability_modifier REAL DEFAULT 1.0,
		created_at DATETIME,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS quota_periods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_id TEXT NOT NULL,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		fiscal_year INTEGER NOT NULL,
		fiscal_quarter INTEGER NOT NULL,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS stage_probabilities (
		org_id TEXT PRIMARY KEY,
		"commit" REAL NOT NULL,
		best_case REAL NOT NULL,
		pipeline REAL NOT NULL,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS score_labels (
		org_id TEXT NOT NULL,
		category_key TEXT NOT NULL,
		score INTEGER NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (org_id, category_key, score),
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_deals_org_close ON deals(org_id, close_date);
	CREATE INDEX IF NOT EXISTS idx_users_org ON users(org_id);
	CREATE INDEX IF NOT EXISTS idx_rules_org ON health_score_rules(org_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Organization and user operations

func (s *SQLiteStore) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.GetContext(ctx, &org, `SELECT * FROM organizations WHERE id = ?`, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := s.db.SelectContext(ctx, &orgs, `SELECT * FROM organizations ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context, orgID string) ([]models.User, error) {
	var users []models.User
	if err := s.db.SelectContext(ctx, &users, `SELECT * FROM users WHERE org_id = ? ORDER BY id`, orgID); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) SetUserManager(ctx context.Context, userID string, managerUserID *string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET manager_user_id = ? WHERE id = ?`, managerUserID, userID)
	if err != nil {
		return fmt.Errorf("set user manager: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Visibility edges

func (s *SQLiteStore) ListVisibilityEdges(ctx context.Context, orgID string) ([]models.VisibilityEdge, error) {
	var edges []models.VisibilityEdge
	if err := s.db.SelectContext(ctx, &edges, `SELECT * FROM visibility_edges WHERE org_id = ? ORDER BY id`, orgID); err != nil {
		return nil, fmt.Errorf("list visibility edges: %w", err)
	}
	return edges, nil
}

func (s *SQLiteStore) CreateVisibilityEdge(ctx context.Context, edge *models.VisibilityEdge) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO visibility_edges (org_id, manager_user_id, visible_user_id) VALUES (?, ?, ?)`,
		edge.OrgID, edge.ManagerUserID, edge.VisibleUserID)
	if err != nil {
		return fmt.Errorf("create visibility edge: %w", err)
	}
	edge.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) DeleteVisibilityEdge(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visibility_edges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete visibility edge: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Deal operations

func (s *SQLiteStore) ListDeals(ctx context.Context, q DealQuery) ([]models.Deal, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultDealLimit
	}
	if len(q.RepUserIDs) == 0 {
		// Visibility failed closed upstream; never widen to all deals.
		return []models.Deal{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, org_id, rep_user_id, rep_name, account_name, opportunity_name,
			amount, close_date, forecast_stage, health_score, signal_text, updated_at
		FROM deals
		WHERE org_id = ?
			AND rep_user_id IN (?)
			AND close_date >= ?
			AND close_date <= ?
		ORDER BY close_date, id
		LIMIT ?
	`, q.OrgID, q.RepUserIDs, q.WindowStart, q.WindowEnd, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("build deal query: %w", err)
	}

	var deals []models.Deal
	if err := s.db.SelectContext(ctx, &deals, query, args...); err != nil {
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

func (s *SQLiteStore) attachCategories(ctx context.Context, deals []models.Deal) error {
	ids := make([]string, len(deals))
	index := make(map[string]int, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
		index[d.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT deal_id, key, score, evidence_summary, coaching_tip
		FROM deal_category_scores
		WHERE deal_id IN (?)
		ORDER BY deal_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("build category query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) ListHealthRules(ctx context.Context, orgID string) ([]models.HealthScoreRule, error) {
	var rules []models.HealthScoreRule
	err := s.db.SelectContext(ctx, &rules, `SELECT * FROM health_score_rules WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, ErrSchemaMissing
		}
		return nil, fmt.Errorf("list health rules: %w", err)
	}
	return rules, nil
}

func (s *SQLiteStore) CreateHealthRule(ctx context.Context, rule *models.HealthScoreRule) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO health_score_rules
			(org_id, min_score, max_score, mapped_category, suppression, probability_modifier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rule.OrgID, rule.MinScore, rule.MaxScore, rule.MappedCategory, rule.Suppression, rule.ProbabilityModifier, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("create health rule: %w", err)
	}
	rule.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) DeleteHealthRule(ctx context.Context, orgID string, ruleID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM health_score_rules WHERE org_id = ? AND id = ?`, orgID, ruleID)
	if err != nil {
		return fmt.Errorf("delete health rule: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Quota period operations

func (s *SQLiteStore) ListQuotaPeriods(ctx context.Context, orgID string) ([]models.QuotaPeriod, error) {
	var periods []models.QuotaPeriod
	err := s.db.SelectContext(ctx, &periods, `SELECT * FROM quota_periods WHERE org_id = ? ORDER BY period_start DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list quota periods: %w", err)
	}
	return periods, nil
}

func (s *SQLiteStore) CreateQuotaPeriod(ctx context.Context, p *models.QuotaPeriod) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_periods (org_id, period_start, period_end, fiscal_year, fiscal_quarter)
		VALUES (?, ?, ?, ?, ?)
	`, p.OrgID, p.PeriodStart, p.PeriodEnd, p.FiscalYear, p.FiscalQuarter)
	if err != nil {
		return fmt.Errorf("create quota period: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// Org configuration

func (s *SQLiteStore) GetStageProbabilities(ctx context.Context, orgID string) (*models.StageProbabilities, error) {
	var probs models.StageProbabilities
	err := s.db.GetContext(ctx, &probs, `SELECT * FROM stage_probabilities WHERE org_id = ?`, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get stage probabilities: %w", err)
	}
	return &probs, nil
}

func (s *SQLiteStore) ListScoreLabels(ctx context.Context, orgID string) ([]models.ScoreLabel, error) {
	var labels []models.ScoreLabel
	err := s.db.SelectContext(ctx, &labels, `SELECT * FROM score_labels WHERE org_id = ? ORDER BY category_key, score`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list score labels: %w", err)
	}
	return labels, nil
}
