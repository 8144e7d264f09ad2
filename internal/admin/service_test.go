package admin

import (
	"context"
	"testing"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/pipehealth/pipehealth-go/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := storage.NewMemoryStore()
	store.PutOrganization(models.Organization{ID: "acme", Name: "Acme"})
	return NewService(store, nil, logger), store
}

func seedUser(store *storage.MemoryStore, id, orgID string, managerID *string) {
	store.PutUser(models.User{
		ID:            id,
		OrgID:         orgID,
		Name:          id,
		Role:          models.RoleManager,
		ManagerUserID: managerID,
		Active:        true,
	})
}

func strPtr(s string) *string { return &s }

func TestCreateHealthRuleClampsModifier(t *testing.T) {
	svc, store := newTestService(t)

	rule := &models.HealthScoreRule{
		OrgID:               "acme",
		MinScore:            0,
		MaxScore:            10,
		MappedCategory:      models.BucketCommit,
		ProbabilityModifier: 25,
	}
	require.NoError(t, svc.CreateHealthRule(context.Background(), rule))

	assert.NotZero(t, rule.ID)
	assert.Equal(t, 9.9999, rule.ProbabilityModifier)

	stored, err := store.ListHealthRules(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 9.9999, stored[0].ProbabilityModifier)
}

func TestCreateHealthRuleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rule models.HealthScoreRule
	}{
		{"missing org", models.HealthScoreRule{MinScore: 0, MaxScore: 5, MappedCategory: models.BucketCommit}},
		{"negative min", models.HealthScoreRule{OrgID: "acme", MinScore: -1, MaxScore: 5, MappedCategory: models.BucketCommit}},
		{"inverted range", models.HealthScoreRule{OrgID: "acme", MinScore: 9, MaxScore: 5, MappedCategory: models.BucketCommit}},
		{"bad bucket", models.HealthScoreRule{OrgID: "acme", MinScore: 0, MaxScore: 5, MappedCategory: "WON"}},
		{"excluded bucket", models.HealthScoreRule{OrgID: "acme", MinScore: 0, MaxScore: 5, MappedCategory: models.BucketExcluded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			assert.Error(t, svc.CreateHealthRule(ctx, &rule))
		})
	}
}

func TestDeleteHealthRuleNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Error(t, svc.DeleteHealthRule(context.Background(), "acme", 404))
}

func TestDeleteHealthRuleWrongOrg(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rule := &models.HealthScoreRule{OrgID: "acme", MinScore: 0, MaxScore: 5, MappedCategory: models.BucketPipeline, ProbabilityModifier: 1}
	require.NoError(t, svc.CreateHealthRule(ctx, rule))

	assert.Error(t, svc.DeleteHealthRule(ctx, "other", rule.ID))
	assert.NoError(t, svc.DeleteHealthRule(ctx, "acme", rule.ID))
}

func TestRuleOverlaps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, r := range []models.HealthScoreRule{
		{OrgID: "acme", MinScore: 0, MaxScore: 10, MappedCategory: models.BucketCommit, ProbabilityModifier: 1},
		{OrgID: "acme", MinScore: 8, MaxScore: 15, MappedCategory: models.BucketCommit, ProbabilityModifier: 1},
		{OrgID: "acme", MinScore: 8, MaxScore: 15, MappedCategory: models.BucketPipeline, ProbabilityModifier: 1},
	} {
		rule := r
		require.NoError(t, svc.CreateHealthRule(ctx, &rule))
	}

	overlaps, err := svc.RuleOverlaps(ctx, "acme")
	require.NoError(t, err)
	// Only the two COMMIT rules intersect; buckets are independent
	require.Len(t, overlaps, 1)
}

func TestCreateQuotaPeriodValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	assert.Error(t, svc.CreateQuotaPeriod(ctx, &models.QuotaPeriod{OrgID: "acme", PeriodStart: end, PeriodEnd: start, FiscalYear: 2026, FiscalQuarter: 3}))
	assert.Error(t, svc.CreateQuotaPeriod(ctx, &models.QuotaPeriod{OrgID: "acme", PeriodStart: start, PeriodEnd: end, FiscalYear: 2026, FiscalQuarter: 5}))

	p := &models.QuotaPeriod{OrgID: "acme", PeriodStart: start, PeriodEnd: end, FiscalYear: 2026, FiscalQuarter: 3}
	require.NoError(t, svc.CreateQuotaPeriod(ctx, p))
	assert.NotZero(t, p.ID)
}

func TestSetUserManagerRejectsCycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedUser(store, "alice", "acme", nil)
	seedUser(store, "bob", "acme", strPtr("alice"))
	seedUser(store, "carol", "acme", strPtr("bob"))

	// alice -> carol would close alice > bob > carol > alice
	err := svc.SetUserManager(ctx, "acme", "alice", strPtr("carol"))
	assert.Error(t, err)

	// Self-management is a degenerate cycle
	assert.Error(t, svc.SetUserManager(ctx, "acme", "alice", strPtr("alice")))

	// Reparenting carol directly under alice is fine
	require.NoError(t, svc.SetUserManager(ctx, "acme", "carol", strPtr("alice")))

	carol, err := store.GetUser(ctx, "carol")
	require.NoError(t, err)
	require.NotNil(t, carol.ManagerUserID)
	assert.Equal(t, "alice", *carol.ManagerUserID)
}

func TestSetUserManagerCrossOrgRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	store.PutOrganization(models.Organization{ID: "other", Name: "Other"})
	seedUser(store, "alice", "acme", nil)
	seedUser(store, "eve", "other", nil)

	assert.Error(t, svc.SetUserManager(ctx, "acme", "alice", strPtr("eve")))
	assert.Error(t, svc.SetUserManager(ctx, "other", "alice", strPtr("eve")))
}

func TestSetUserManagerClear(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedUser(store, "alice", "acme", nil)
	seedUser(store, "bob", "acme", strPtr("alice"))

	require.NoError(t, svc.SetUserManager(ctx, "acme", "bob", nil))

	bob, err := store.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, bob.ManagerUserID)
}

func TestVisibilityEdgeLifecycle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedUser(store, "alice", "acme", nil)
	seedUser(store, "bob", "acme", nil)

	edge := &models.VisibilityEdge{OrgID: "acme", ManagerUserID: "alice", VisibleUserID: "bob"}
	require.NoError(t, svc.CreateVisibilityEdge(ctx, edge))
	require.NotZero(t, edge.ID)

	// Self-edges and unknown users are rejected
	assert.Error(t, svc.CreateVisibilityEdge(ctx, &models.VisibilityEdge{OrgID: "acme", ManagerUserID: "alice", VisibleUserID: "alice"}))
	assert.Error(t, svc.CreateVisibilityEdge(ctx, &models.VisibilityEdge{OrgID: "acme", ManagerUserID: "alice", VisibleUserID: "ghost"}))

	require.NoError(t, svc.DeleteVisibilityEdge(ctx, edge.ID))
	assert.Error(t, svc.DeleteVisibilityEdge(ctx, edge.ID))
}
