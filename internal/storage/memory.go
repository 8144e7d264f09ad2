package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// MemoryStore is an in-memory Store used by demo mode and tests. It applies
// the same query semantics as the SQL stores, including the fail-closed
// empty rep scope and the row cap.
type MemoryStore struct {
	mu sync.RWMutex

	orgs    map[string]models.Organization
	users   map[string]models.User
	edges   map[int64]models.VisibilityEdge
	deals   map[string]models.Deal
	rules   map[int64]models.HealthScoreRule
	periods map[int64]models.QuotaPeriod
	probs   map[string]models.StageProbabilities
	labels  []models.ScoreLabel

	nextID int64

	// NoRuleTable simulates a deployment whose rule schema was never
	// provisioned: rule reads return ErrSchemaMissing.
	NoRuleTable bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:    make(map[string]models.Organization),
		users:   make(map[string]models.User),
		edges:   make(map[int64]models.VisibilityEdge),
		deals:   make(map[string]models.Deal),
		rules:   make(map[int64]models.HealthScoreRule),
		periods: make(map[int64]models.QuotaPeriod),
		probs:   make(map[string]models.StageProbabilities),
	}
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) nextSequence() int64 {
	m.nextID++
	return m.nextID
}

// PutOrganization upserts an organization
func (m *MemoryStore) PutOrganization(org models.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = org
}

// PutUser upserts a user
func (m *MemoryStore) PutUser(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// PutDeal upserts a deal
func (m *MemoryStore) PutDeal(deal models.Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[deal.ID] = deal
}

// PutStageProbabilities upserts an org's stage weights
func (m *MemoryStore) PutStageProbabilities(p models.StageProbabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probs[p.OrgID] = p
}

// PutScoreLabel appends a score label
func (m *MemoryStore) PutScoreLabel(l models.ScoreLabel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = append(m.labels, l)
}

func (m *MemoryStore) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (m *MemoryStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orgs := make([]models.Organization, 0, len(m.orgs))
	for _, o := range m.orgs {
		orgs = append(orgs, o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })
	return orgs, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context, orgID string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var users []models.User
	for _, u := range m.users {
		if u.OrgID == orgID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MemoryStore) SetUserManager(ctx context.Context, userID string, managerUserID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.ManagerUserID = managerUserID
	m.users[userID] = user
	return nil
}

func (m *MemoryStore) ListVisibilityEdges(ctx context.Context, orgID string) ([]models.VisibilityEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var edges []models.VisibilityEdge
	for _, e := range m.edges {
		if e.OrgID == orgID {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

func (m *MemoryStore) CreateVisibilityEdge(ctx context.Context, edge *models.VisibilityEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge.ID = m.nextSequence()
	m.edges[edge.ID] = *edge
	return nil
}

func (m *MemoryStore) DeleteVisibilityEdge(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[id]; !ok {
		return ErrNotFound
	}
	delete(m.edges, id)
	return nil
}

func (m *MemoryStore) ListDeals(ctx context.Context, q DealQuery) ([]models.Deal, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultDealLimit
	}
	if len(q.RepUserIDs) == 0 {
		return []models.Deal{}, nil
	}

	reps := make(map[string]bool, len(q.RepUserIDs))
	for _, id := range q.RepUserIDs {
		reps[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var deals []models.Deal
	for _, d := range m.deals {
		if d.OrgID != q.OrgID || !reps[d.RepUserID] {
			continue
		}
		if d.CloseDate.Before(q.WindowStart) || d.CloseDate.After(q.WindowEnd) {
			continue
		}
		deals = append(deals, d)
	}
	sort.Slice(deals, func(i, j int) bool {
		if !deals[i].CloseDate.Equal(deals[j].CloseDate) {
			return deals[i].CloseDate.Before(deals[j].CloseDate)
		}
		return deals[i].ID < deals[j].ID
	})
	if len(deals) > q.Limit {
		deals = deals[:q.Limit]
	}
	return deals, nil
}

func (m *MemoryStore) ListHealthRules(ctx context.Context, orgID string) ([]models.HealthScoreRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.NoRuleTable {
		return nil, ErrSchemaMissing
	}
	var rules []models.HealthScoreRule
	for _, r := range m.rules {
		if r.OrgID == orgID {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (m *MemoryStore) CreateHealthRule(ctx context.Context, rule *models.HealthScoreRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NoRuleTable {
		return ErrSchemaMissing
	}
	rule.ID = m.nextSequence()
	m.rules[rule.ID] = *rule
	return nil
}

func (m *MemoryStore) DeleteHealthRule(ctx context.Context, orgID string, ruleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[ruleID]
	if !ok || r.OrgID != orgID {
		return ErrNotFound
	}
	delete(m.rules, ruleID)
	return nil
}

func (m *MemoryStore) ListQuotaPeriods(ctx context.Context, orgID string) ([]models.QuotaPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var periods []models.QuotaPeriod
	for _, p := range m.periods {
		if p.OrgID == orgID {
			periods = append(periods, p)
		}
	}
	// Newest period first, matching the SQL stores
	sort.Slice(periods, func(i, j int) bool { return periods[i].PeriodStart.After(periods[j].PeriodStart) })
	return periods, nil
}

func (m *MemoryStore) CreateQuotaPeriod(ctx context.Context, p *models.QuotaPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextSequence()
	m.periods[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetStageProbabilities(ctx context.Context, orgID string) (*models.StageProbabilities, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.probs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) ListScoreLabels(ctx context.Context, orgID string) ([]models.ScoreLabel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var labels []models.ScoreLabel
	for _, l := range m.labels {
		if l.OrgID == orgID {
			labels = append(labels, l)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].CategoryKey != labels[j].CategoryKey {
			return strings.Compare(labels[i].CategoryKey, labels[j].CategoryKey) < 0
		}
		return labels[i].Score < labels[j].Score
	})
	return labels, nil
}
