package period

import (
	"testing"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quarter(id int64, y int, q int) models.QuotaPeriod {
	startMonth := time.Month((q-1)*3 + 1)
	start := day(y, startMonth, 1)
	end := start.AddDate(0, 3, -1)
	return models.QuotaPeriod{ID: id, OrgID: "org-1", PeriodStart: start, PeriodEnd: end, FiscalYear: y, FiscalQuarter: q}
}

func int64Ptr(v int64) *int64 { return &v }

func TestResolve_ExplicitID(t *testing.T) {
	periods := []models.QuotaPeriod{quarter(3, 2026, 3), quarter(2, 2026, 2), quarter(1, 2026, 1)}

	p, err := Resolve(periods, int64Ptr(2), day(2026, time.August, 29))
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
}

func TestResolve_UnknownExplicitIDFallsThrough(t *testing.T) {
	periods := []models.QuotaPeriod{quarter(3, 2026, 3)}

	// Unknown id falls back to the containing period rather than erroring.
	p, err := Resolve(periods, int64Ptr(99), day(2026, time.August, 29))
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
}

func TestResolve_ContainsToday(t *testing.T) {
	periods := []models.QuotaPeriod{quarter(3, 2026, 3), quarter(2, 2026, 2)}

	p, err := Resolve(periods, nil, day(2026, time.August, 29))
	require.NoError(t, err)
	assert.Equal(t, 3, p.FiscalQuarter)
}

func TestResolve_BoundaryDaysInclusive(t *testing.T) {
	periods := []models.QuotaPeriod{quarter(3, 2026, 3)}

	p, err := Resolve(periods, nil, day(2026, time.July, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)

	p, err = Resolve(periods, nil, day(2026, time.September, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
}

func TestResolve_MostRecentlyStartedFallback(t *testing.T) {
	// Today falls in no period: pick the most recently started.
	periods := []models.QuotaPeriod{quarter(1, 2025, 4), quarter(2, 2026, 1)}

	p, err := Resolve(periods, nil, day(2026, time.August, 29))
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
}

func TestResolve_NoPeriods(t *testing.T) {
	_, err := Resolve(nil, nil, day(2026, time.August, 29))
	assert.ErrorIs(t, err, ErrMissingQuotaPeriod)
}
