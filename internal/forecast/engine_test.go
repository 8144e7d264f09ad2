package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewEngine(logger)
}

func testUser(id string) models.User {
	return models.User{ID: id, OrgID: "org-1", Name: "User " + id, Role: models.RoleRep, Active: true}
}

func testDeal(id, rep, stage string, amount float64, score *int) models.Deal {
	return models.Deal{
		ID:              id,
		OrgID:           "org-1",
		RepUserID:       rep,
		RepName:         "User " + rep,
		AccountName:     "Account " + id,
		OpportunityName: "Opp " + id,
		Amount:          amount,
		CloseDate:       time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		ForecastStage:   stage,
		HealthScore:     score,
	}
}

func baseInput() ComputeInput {
	return ComputeInput{
		Caller: models.User{ID: "mgr-1", OrgID: "org-1", Role: models.RoleManager, Active: true},
		Period: models.QuotaPeriod{ID: 1, OrgID: "org-1", FiscalYear: 2026, FiscalQuarter: 3},
		AllowedReps: map[string]models.User{
			"rep-1": testUser("rep-1"),
			"rep-2": testUser("rep-2"),
		},
		Probabilities: models.DefaultStageProbabilities("org-1"),
		Labels:        models.ScoreLabelMap{},
	}
}

func TestCompute_BucketsAndConservation(t *testing.T) {
	in := baseInput()
	in.Rules = []models.HealthScoreRule{
		rule(1, 0, 17, models.BucketCommit, false, 0.85),
		rule(2, 0, 17, models.BucketBestCase, false, 0.9),
	}
	in.Deals = []models.Deal{
		testDeal("d1", "rep-1", "Commit", 10000, intPtr(10)),
		testDeal("d2", "rep-1", "Best Case", 20000, intPtr(12)),
		testDeal("d3", "rep-2", "Negotiation", 5000, intPtr(25)),
		testDeal("d4", "rep-2", "Closed Won", 99999, intPtr(30)), // excluded
	}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)

	// Weighting example: 10000 x 0.8 x 0.85.
	commit := res.Groups.Commit
	assert.InDelta(t, 8000.0, commit.Totals.CRMOutlookWeighted, 1e-9)
	assert.InDelta(t, 6800.0, commit.Totals.AIOutlookWeighted, 1e-9)
	assert.InDelta(t, -1200.0, commit.Totals.Gap, 1e-9)

	// Closed deal never enters any group's universe.
	total := res.Groups.Commit.Totals.CRMOutlookWeighted +
		res.Groups.BestCase.Totals.CRMOutlookWeighted +
		res.Groups.Pipeline.Totals.CRMOutlookWeighted
	assert.InDelta(t, res.Totals.CRMOutlookWeighted, total, 1e-9)

	// Conservation: bucket gaps sum to the overall gap.
	gapSum := res.Groups.Commit.Totals.Gap + res.Groups.BestCase.Totals.Gap + res.Groups.Pipeline.Totals.Gap
	assert.InDelta(t, res.Totals.Gap, gapSum, 1e-9)

	// d3 matched no rule (score 25 above every range): modifier 1.0.
	require.Len(t, res.Groups.Pipeline.Deals, 1)
	assert.Equal(t, 1.0, res.Groups.Pipeline.Deals[0].Health.HealthModifier)
	assert.Equal(t, 0.0, res.Groups.Pipeline.Totals.Gap)
}

func TestCompute_ShownTotalsCoverDisplayedSubsetOnly(t *testing.T) {
	in := baseInput()
	in.Rules = []models.HealthScoreRule{rule(1, 0, 30, models.BucketCommit, false, 0.5)}
	in.Deals = []models.Deal{
		testDeal("big", "rep-1", "Commit", 100000, intPtr(10)),
		testDeal("small", "rep-1", "Commit", 100, intPtr(10)),
	}
	in.Filters = Filters{DriverTake: 1}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)

	group := res.Groups.Commit
	require.Len(t, group.Deals, 1)
	assert.Equal(t, "big", group.Deals[0].ID)

	// Full-universe totals cover both deals; shown totals only the one.
	assert.InDelta(t, group.Deals[0].Weighted.Gap, group.ShownTotals.Gap, 1e-9)
	assert.Greater(t, group.ShownTotals.Gap, group.Totals.Gap)
}

func TestCompute_FailClosedOnOutOfScopeRep(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{testDeal("d1", "rep-1", "Commit", 1000, intPtr(20))}
	in.Filters = Filters{RepUserID: "rep-elsewhere"}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err, "out-of-scope rep must not surface as an error")

	assert.Nil(t, res.RepContext)
	assert.Empty(t, res.Groups.Commit.Deals)
	assert.Equal(t, models.OutlookTotals{}, res.Totals)
}

func TestCompute_RepFilterNarrowsUniverse(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{
		testDeal("d1", "rep-1", "Commit", 1000, intPtr(20)),
		testDeal("d2", "rep-2", "Commit", 2000, intPtr(20)),
	}
	in.Filters = Filters{RepUserID: "rep-1"}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, res.RepContext)
	assert.Equal(t, "rep-1", res.RepContext.UserID)
	require.Len(t, res.Groups.Commit.Deals, 1)
	assert.Equal(t, "d1", res.Groups.Commit.Deals[0].ID)
}

func TestCompute_RepNameFilter(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{testDeal("d1", "rep-2", "Commit", 1000, intPtr(20))}
	in.Filters = Filters{RepName: "user rep-2"}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res.RepContext)
	assert.Equal(t, "rep-2", res.RepContext.UserID)
}

func TestCompute_InvisibleRepDealsDropOut(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{
		testDeal("visible", "rep-1", "Commit", 1000, intPtr(20)),
		testDeal("foreign", "rep-99", "Commit", 9000, intPtr(20)),
	}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Groups.Commit.Deals, 1)
	assert.Equal(t, "visible", res.Groups.Commit.Deals[0].ID)
}

func TestCompute_RuleTableMissingFallsBackToCRMOnly(t *testing.T) {
	in := baseInput()
	in.RuleTableMissing = true
	in.Rules = nil
	in.Deals = []models.Deal{testDeal("d1", "rep-1", "Commit", 10000, intPtr(5))}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Groups.Commit.Deals, 1)
	d := res.Groups.Commit.Deals[0]
	assert.Equal(t, 1.0, d.Health.HealthModifier)
	assert.False(t, d.Health.Suppression)
	assert.Equal(t, 0.0, d.Weighted.Gap)
}

func TestCompute_InvalidFilterRejected(t *testing.T) {
	in := baseInput()
	in.Filters = Filters{Mode: "bogus"}

	_, err := testEngine().Compute(context.Background(), in)
	require.Error(t, err)

	var invalid *InvalidFilterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "mode", invalid.Field)
}

func TestCompute_StageFilter(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{
		testDeal("c", "rep-1", "Commit", 1000, intPtr(20)),
		testDeal("p", "rep-1", "Early", 1000, intPtr(20)),
	}
	in.Filters = Filters{Stage: "commit"}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, res.Groups.Commit.Deals, 1)
	assert.Empty(t, res.Groups.Pipeline.Deals)
	assert.Equal(t, models.OutlookTotals{}, res.Groups.Pipeline.Totals)
}

func TestCompute_SuppressedOnlyFilter(t *testing.T) {
	in := baseInput()
	in.Rules = []models.HealthScoreRule{rule(1, 0, 10, models.BucketCommit, true, 0)}
	in.Deals = []models.Deal{
		testDeal("suppressed", "rep-1", "Commit", 1000, intPtr(5)),
		testDeal("healthy", "rep-1", "Commit", 1000, intPtr(25)),
	}
	in.Filters = Filters{SuppressedOnly: true}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Groups.Commit.Deals, 1)
	assert.Equal(t, "suppressed", res.Groups.Commit.Deals[0].ID)
	assert.True(t, res.Groups.Commit.Deals[0].Health.Suppression)

	// The synthetic flag rides along.
	require.NotEmpty(t, res.Groups.Commit.Deals[0].RiskFlags)
	assert.Equal(t, SuppressedFlagKey, res.Groups.Commit.Deals[0].RiskFlags[len(res.Groups.Commit.Deals[0].RiskFlags)-1].CategoryKey)
}

func TestCompute_HealthPctRangeFilter(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{
		testDeal("low", "rep-1", "Commit", 1000, intPtr(6)),    // 20%
		testDeal("high", "rep-1", "Commit", 1000, intPtr(27)),  // 90%
		testDeal("unscored", "rep-1", "Commit", 1000, nil),
	}
	min, max := 50, 100
	in.Filters = Filters{HealthPctMin: &min, HealthPctMax: &max}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Groups.Commit.Deals, 1)
	assert.Equal(t, "high", res.Groups.Commit.Deals[0].ID)
}

func TestCompute_RiskCategoryFilter(t *testing.T) {
	weak := testDeal("weak-champion", "rep-1", "Commit", 1000, intPtr(20))
	weak.Categories = []models.CategoryScore{{Key: "champion", Score: intPtr(1)}}
	strong := testDeal("strong-champion", "rep-1", "Commit", 1000, intPtr(20))
	strong.Categories = []models.CategoryScore{{Key: "champion", Score: intPtr(3)}}

	in := baseInput()
	in.Deals = []models.Deal{weak, strong}
	in.Filters = Filters{RiskCategory: "champion"}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Groups.Commit.Deals, 1)
	assert.Equal(t, "weak-champion", res.Groups.Commit.Deals[0].ID)
}

func TestCompute_RiskMode(t *testing.T) {
	in := baseInput()
	in.Rules = []models.HealthScoreRule{rule(1, 0, 10, models.BucketCommit, false, 0.85)}
	in.Deals = []models.Deal{
		testDeal("penalized", "rep-1", "Commit", 10000, intPtr(5)),
		testDeal("unmatched", "rep-1", "Commit", 10000, intPtr(25)),
	}
	in.Filters = Filters{Mode: models.ModeRisk, RiskMinDownside: 500, RiskRequireScoreEffect: true}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Groups.Commit.Deals, 1)
	assert.Equal(t, "penalized", res.Groups.Commit.Deals[0].ID)
	// Downside = crm - ai = 8000 - 6800.
	assert.InDelta(t, -1200.0, res.Groups.Commit.Deals[0].Weighted.Gap, 1e-9)
}

func TestCompute_AIVerdictIndependentOfRuleBucket(t *testing.T) {
	in := baseInput()
	in.Deals = []models.Deal{testDeal("d1", "rep-1", "Early Pipeline", 1000, intPtr(26))}

	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Groups.Pipeline.Deals, 1)
	d := res.Groups.Pipeline.Deals[0]
	assert.Equal(t, models.BucketPipeline, d.CRMStage.Bucket)
	assert.Equal(t, models.BucketCommit, d.AIVerdictStage)
}

func TestCompute_QuotaPeriodEchoed(t *testing.T) {
	in := baseInput()
	res, err := testEngine().Compute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Period, res.QuotaPeriod)
}
