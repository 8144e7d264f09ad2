package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *models.OutlookResult {
	pct := 83
	return &models.OutlookResult{
		QuotaPeriod: models.QuotaPeriod{
			ID:            1,
			OrgID:         "acme",
			PeriodStart:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:     time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
			FiscalYear:    2026,
			FiscalQuarter: 3,
		},
		Totals:      models.OutlookTotals{CRMOutlookWeighted: 8000, AIOutlookWeighted: 6800, Gap: -1200},
		ShownTotals: models.OutlookTotals{CRMOutlookWeighted: 8000, AIOutlookWeighted: 6800, Gap: -1200},
		Groups: models.OutlookGroups{
			Commit: models.OutlookGroup{
				Deals: []models.DealOutlook{{
					ID:              "d1",
					RepName:         "Riley",
					OpportunityName: "Acme Renewal",
					Amount:          10000,
					CRMStage:        models.CRMStage{Raw: "Commit", Bucket: models.BucketCommit, Label: "Commit"},
					Health:          models.HealthDetail{HealthPct: &pct, ProbabilityModifier: 0.85, HealthModifier: 0.85},
					Weighted:        models.WeightedDetail{StageProbability: 0.8, CRMWeighted: 8000, AIWeighted: 6800, Gap: -1200},
					RiskFlags:       []models.RiskFlag{{CategoryKey: "champion", Label: "Champion: score 1"}},
					CoachingInsights: []string{
						"Identify an internal champion before the security review.",
					},
				}},
				Totals:      models.OutlookTotals{CRMOutlookWeighted: 8000, AIOutlookWeighted: 6800, Gap: -1200},
				ShownTotals: models.OutlookTotals{CRMOutlookWeighted: 8000, AIOutlookWeighted: 6800, Gap: -1200},
			},
			BestCase: models.OutlookGroup{Deals: []models.DealOutlook{}},
			Pipeline: models.OutlookGroup{Deals: []models.DealOutlook{}},
		},
	}
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(sampleResult(), &buf))

	out := buf.String()
	assert.Contains(t, out, "FY2026 Q3")
	assert.Contains(t, out, "Acme Renewal")
	assert.Contains(t, out, "Champion: score 1")
	assert.Contains(t, out, "health 83%")
	assert.Contains(t, out, "Identify an internal champion")
}

func TestJSONFormatterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(sampleResult(), &buf))

	var decoded models.OutlookResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.InDelta(t, -1200, decoded.Totals.Gap, 1e-9)
	require.Len(t, decoded.Groups.Commit.Deals, 1)
	assert.Equal(t, "d1", decoded.Groups.Commit.Deals[0].ID)
}

func TestQuietFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&QuietFormatter{}).Format(sampleResult(), &buf))
	assert.Contains(t, buf.String(), "gap -1200.00")

	buf.Reset()
	flat := sampleResult()
	flat.Totals = models.OutlookTotals{CRMOutlookWeighted: 500, AIOutlookWeighted: 500}
	require.NoError(t, (&QuietFormatter{}).Format(flat, &buf))
	assert.Contains(t, buf.String(), "✅")
}

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &TableFormatter{}, NewFormatter("table"))
	assert.IsType(t, &TableFormatter{}, NewFormatter(""))
	assert.IsType(t, &JSONFormatter{}, NewFormatter("json"))
	assert.IsType(t, &QuietFormatter{}, NewFormatter("quiet"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a very long...", truncate("a very long opportunity name", 14))
}
