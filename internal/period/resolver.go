package period

import (
	"errors"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// ErrMissingQuotaPeriod means no period could be resolved at all; there is
// nothing to scope deals against and the computation must not start.
var ErrMissingQuotaPeriod = errors.New("missing quota period")

// Resolve selects the quota period a computation is scoped to.
//
// An explicit id wins when it names an existing period. Otherwise the
// period containing the current UTC date is used, then the most recently
// started one. With no periods at all the resolution fails.
func Resolve(periods []models.QuotaPeriod, explicitID *int64, now time.Time) (models.QuotaPeriod, error) {
	if explicitID != nil {
		for _, p := range periods {
			if p.ID == *explicitID {
				return p, nil
			}
		}
	}

	today := now.UTC().Truncate(24 * time.Hour)
	for _, p := range periods {
		if !today.Before(p.PeriodStart) && !today.After(p.PeriodEnd) {
			return p, nil
		}
	}

	if latest := mostRecentlyStarted(periods); latest != nil {
		return *latest, nil
	}

	return models.QuotaPeriod{}, ErrMissingQuotaPeriod
}

func mostRecentlyStarted(periods []models.QuotaPeriod) *models.QuotaPeriod {
	var latest *models.QuotaPeriod
	for i := range periods {
		p := &periods[i]
		if latest == nil || p.PeriodStart.After(latest.PeriodStart) {
			latest = p
		}
	}
	return latest
}
