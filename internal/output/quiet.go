package output

import (
	"fmt"
	"io"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// QuietFormatter outputs a one-line summary (for scripts and cron)
type QuietFormatter struct{}

func (f *QuietFormatter) Format(result *models.OutlookResult, w io.Writer) error {
	shown := len(result.Groups.Commit.Deals) + len(result.Groups.BestCase.Deals) + len(result.Groups.Pipeline.Deals)

	if result.Totals.Gap < 0 {
		fmt.Fprintf(w, "⚠️  AI outlook %.2f vs CRM %.2f (gap %.2f, %d deals shown)\n",
			result.Totals.AIOutlookWeighted, result.Totals.CRMOutlookWeighted, result.Totals.Gap, shown)
		return nil
	}

	fmt.Fprintf(w, "✅ AI outlook %.2f vs CRM %.2f (gap %+.2f, %d deals shown)\n",
		result.Totals.AIOutlookWeighted, result.Totals.CRMOutlookWeighted, result.Totals.Gap, shown)
	return nil
}
