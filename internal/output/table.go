package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// TableFormatter renders the outlook as grouped text for terminals
type TableFormatter struct{}

func (f *TableFormatter) Format(result *models.OutlookResult, w io.Writer) error {
	p := result.QuotaPeriod
	fmt.Fprintf(w, "📈 Weighted Outlook · FY%d Q%d (%s to %s)\n",
		p.FiscalYear, p.FiscalQuarter,
		p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"))
	if result.RepContext != nil {
		fmt.Fprintf(w, "Rep: %s\n", result.RepContext.Name)
	}
	fmt.Fprintf(w, "\n")

	f.formatGroup(w, "Commit", &result.Groups.Commit)
	f.formatGroup(w, "Best Case", &result.Groups.BestCase)
	f.formatGroup(w, "Pipeline", &result.Groups.Pipeline)

	fmt.Fprintf(w, "%s\n", strings.Repeat("─", 64))
	fmt.Fprintf(w, "Total     CRM %14.2f   AI %14.2f   Gap %14.2f\n",
		result.Totals.CRMOutlookWeighted, result.Totals.AIOutlookWeighted, result.Totals.Gap)
	if result.ShownTotals != result.Totals {
		fmt.Fprintf(w, "Shown     CRM %14.2f   AI %14.2f   Gap %14.2f\n",
			result.ShownTotals.CRMOutlookWeighted, result.ShownTotals.AIOutlookWeighted, result.ShownTotals.Gap)
	}
	return nil
}

func (f *TableFormatter) formatGroup(w io.Writer, name string, g *models.OutlookGroup) {
	fmt.Fprintf(w, "%s  (%d shown)\n", name, len(g.Deals))
	fmt.Fprintf(w, "  CRM %14.2f   AI %14.2f   Gap %14.2f\n",
		g.Totals.CRMOutlookWeighted, g.Totals.AIOutlookWeighted, g.Totals.Gap)

	for i := range g.Deals {
		d := &g.Deals[i]
		fmt.Fprintf(w, "  %s %-24s %-16s %10.2f  gap %10.2f  %s\n",
			gapEmoji(d.Weighted.Gap),
			truncate(d.OpportunityName, 24),
			d.RepName,
			d.Amount,
			d.Weighted.Gap,
			healthSummary(d),
		)
		for _, flag := range d.RiskFlags {
			fmt.Fprintf(w, "      ⚑ %s\n", flag.Label)
		}
		for _, tip := range d.CoachingInsights {
			fmt.Fprintf(w, "      💡 %s\n", tip)
		}
	}
	fmt.Fprintf(w, "\n")
}

func healthSummary(d *models.DealOutlook) string {
	if d.Health.Suppression {
		return "suppressed"
	}
	if d.Health.HealthPct == nil {
		return "unscored"
	}
	return fmt.Sprintf("health %d%%", *d.Health.HealthPct)
}

func gapEmoji(gap float64) string {
	switch {
	case gap < 0:
		return "🔴"
	case gap > 0:
		return "🟢"
	default:
		return "•"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
