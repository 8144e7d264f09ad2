package forecast

import (
	"testing"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestWeigh_Example(t *testing.T) {
	// amount=10000, Commit at 0.8, modifier 0.85:
	// crm = 8000, ai = 6800, gap = -1200.
	deal := &models.Deal{Amount: 10000, HealthScore: intPtr(20)}
	probs := models.DefaultStageProbabilities("org-1")
	res := RuleResolution{Matched: true, ProbabilityModifier: 0.85, HealthModifier: 0.85}

	health, weighted := Weigh(deal, models.BucketCommit, probs, res)

	assert.Equal(t, 0.8, weighted.StageProbability)
	assert.InDelta(t, 8000.0, weighted.CRMWeighted, 1e-9)
	assert.InDelta(t, 6800.0, weighted.AIWeighted, 1e-9)
	assert.InDelta(t, -1200.0, weighted.Gap, 1e-9)
	assert.Equal(t, 0.85, health.HealthModifier)
}

func TestWeigh_ExactProduct(t *testing.T) {
	deal := &models.Deal{Amount: 123456.78, HealthScore: intPtr(12)}
	probs := models.StageProbabilities{Commit: 0.8, BestCase: 0.325, Pipeline: 0.1}
	res := RuleResolution{Matched: true, ProbabilityModifier: 1.25, HealthModifier: 1.25}

	_, weighted := Weigh(deal, models.BucketBestCase, probs, res)

	assert.Equal(t, deal.Amount*0.325, weighted.CRMWeighted)
	assert.Equal(t, deal.Amount*0.325*1.25, weighted.AIWeighted)
	assert.Equal(t, weighted.AIWeighted-weighted.CRMWeighted, weighted.Gap)
}

func TestWeigh_SuppressionZeroesAIWeighted(t *testing.T) {
	deal := &models.Deal{Amount: 5000, HealthScore: intPtr(8)}
	probs := models.DefaultStageProbabilities("org-1")
	res := RuleResolution{Matched: true, Suppression: true, ProbabilityModifier: 0.6, HealthModifier: 0.0}

	health, weighted := Weigh(deal, models.BucketPipeline, probs, res)

	assert.Equal(t, 0.0, weighted.AIWeighted)
	assert.InDelta(t, -500.0, weighted.Gap, 1e-9)
	assert.True(t, health.Suppression)
}

func TestHealthPct(t *testing.T) {
	tests := []struct {
		name  string
		score *int
		want  *int
	}{
		{"Nil score", nil, nil},
		{"Zero score", intPtr(0), nil},
		{"Negative score", intPtr(-3), nil},
		{"Mid score", intPtr(15), intPtr(50)},
		{"Rounding", intPtr(20), intPtr(67)},
		{"Full score", intPtr(30), intPtr(100)},
		{"Above scale clamps", intPtr(35), intPtr(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthPct(tt.score)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestAIVerdictStage(t *testing.T) {
	tests := []struct {
		name  string
		score *int
		want  models.StageBucket
	}{
		{"Nil score", nil, models.BucketPipeline},
		{"Low score", intPtr(10), models.BucketPipeline},
		{"Just below best case", intPtr(17), models.BucketPipeline},
		{"Best case boundary", intPtr(18), models.BucketBestCase},
		{"Just below commit", intPtr(23), models.BucketBestCase},
		{"Commit boundary", intPtr(24), models.BucketCommit},
		{"Top score", intPtr(30), models.BucketCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AIVerdictStage(tt.score))
		})
	}
}

func TestStageProbabilities_ForBucket(t *testing.T) {
	p := models.DefaultStageProbabilities("org-1")
	assert.Equal(t, 0.8, p.ForBucket(models.BucketCommit))
	assert.Equal(t, 0.325, p.ForBucket(models.BucketBestCase))
	assert.Equal(t, 0.1, p.ForBucket(models.BucketPipeline))
}
