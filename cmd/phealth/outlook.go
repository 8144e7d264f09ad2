package main

import (
	"context"
	"os"

	"github.com/pipehealth/pipehealth-go/internal/forecast"
	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/pipehealth/pipehealth-go/internal/output"
	"github.com/pipehealth/pipehealth-go/internal/service"
	"github.com/spf13/cobra"
)

var (
	outlookCaller        string
	outlookPeriodID      int64
	outlookRep           string
	outlookRepName       string
	outlookStage         string
	outlookMode          string
	outlookSuppressed    bool
	outlookPctMin        int
	outlookPctMax        int
	outlookRiskCategory  string
	outlookMinAbsGap     float64
	outlookScoreEffect   bool
	outlookTake          int
	outlookRiskDownside  float64
	outlookFormat        string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Compute the weighted outlook for the current quota period",
	Long: `Computes CRM-weighted and AI-weighted revenue per forecast bucket over
every deal you are allowed to see, and surfaces the deals driving the gap
(drivers mode) or the largest downside (risk mode).`,
	RunE: runOutlook,
}

func init() {
	f := outlookCmd.Flags()
	f.StringVar(&outlookCaller, "caller", "", "acting user id (required)")
	f.Int64Var(&outlookPeriodID, "period", 0, "quota period id (default: current)")
	f.StringVar(&outlookRep, "rep", "", "narrow to one rep by user id")
	f.StringVar(&outlookRepName, "rep-name", "", "narrow to one rep by display name")
	f.StringVar(&outlookStage, "stage", "", "narrow to one bucket: commit, best_case, pipeline")
	f.StringVar(&outlookMode, "mode", "drivers", "selection mode: drivers or risk")
	f.BoolVar(&outlookSuppressed, "suppressed-only", false, "only suppressed deals")
	f.IntVar(&outlookPctMin, "health-pct-min", -1, "minimum health percentage")
	f.IntVar(&outlookPctMax, "health-pct-max", -1, "maximum health percentage")
	f.StringVar(&outlookRiskCategory, "risk-category", "", "only deals weak in this category")
	f.Float64Var(&outlookMinAbsGap, "min-abs-gap", 0, "drivers: ignore deals with a smaller absolute gap")
	f.BoolVar(&outlookScoreEffect, "score-effect", false, "only deals whose modifier actually moves the number")
	f.IntVar(&outlookTake, "take", 0, "cap on shown deals per bucket")
	f.Float64Var(&outlookRiskDownside, "risk-min-downside", 0, "risk: minimum downside to surface")
	f.StringVar(&outlookFormat, "format", "", "output format: table, json, quiet (default: auto)")
	outlookCmd.MarkFlagRequired("caller")
}

func runOutlook(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	req := buildOutlookRequest()
	result, err := a.outlook.Run(ctx, req)
	if err != nil {
		return err
	}

	format := outlookFormat
	if format == "" {
		format = output.DefaultFormat()
	}
	return output.NewFormatter(format).Format(result, os.Stdout)
}

func buildOutlookRequest() (req service.Request) {
	req.CallerUserID = outlookCaller
	if outlookPeriodID != 0 {
		id := outlookPeriodID
		req.PeriodID = &id
	}

	f := forecast.Filters{
		RepUserID:      outlookRep,
		RepName:        outlookRepName,
		Stage:          outlookStage,
		RiskCategory:   outlookRiskCategory,
		SuppressedOnly: outlookSuppressed,
		Mode:           models.Mode(outlookMode),
	}
	if outlookPctMin >= 0 {
		v := outlookPctMin
		f.HealthPctMin = &v
	}
	if outlookPctMax >= 0 {
		v := outlookPctMax
		f.HealthPctMax = &v
	}

	switch f.Mode {
	case models.ModeRisk:
		f.RiskMinDownside = outlookRiskDownside
		f.RiskRequireScoreEffect = outlookScoreEffect
		f.RiskTake = outlookTake
	default:
		f.DriverMinAbsGap = outlookMinAbsGap
		f.DriverRequireScoreEffect = outlookScoreEffect
		f.DriverTake = outlookTake
	}

	req.Filters = f
	return req
}
