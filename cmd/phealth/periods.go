package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	periodOrg     string
	periodStart   string
	periodEnd     string
	periodYear    int
	periodQuarter int
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Manage quota periods",
}

var periodsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an org's quota periods",
	RunE:  runPeriodsList,
}

var periodsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a quota period",
	RunE:  runPeriodsAdd,
}

func init() {
	periodsCmd.PersistentFlags().StringVar(&periodOrg, "org", "", "organization id (required)")
	periodsCmd.MarkPersistentFlagRequired("org")

	f := periodsAddCmd.Flags()
	f.StringVar(&periodStart, "start", "", "period start date (YYYY-MM-DD)")
	f.StringVar(&periodEnd, "end", "", "period end date (YYYY-MM-DD)")
	f.IntVar(&periodYear, "year", 0, "fiscal year")
	f.IntVar(&periodQuarter, "quarter", 0, "fiscal quarter (1-4)")
	periodsAddCmd.MarkFlagRequired("start")
	periodsAddCmd.MarkFlagRequired("end")
	periodsAddCmd.MarkFlagRequired("year")
	periodsAddCmd.MarkFlagRequired("quarter")

	periodsCmd.AddCommand(periodsListCmd)
	periodsCmd.AddCommand(periodsAddCmd)
}

func runPeriodsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	periods, err := a.store.ListQuotaPeriods(ctx, periodOrg)
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		fmt.Printf("No quota periods configured for %s\n", periodOrg)
		return nil
	}

	fmt.Printf("Quota periods for %s\n", periodOrg)
	for _, p := range periods {
		fmt.Printf("  #%-4d FY%d Q%d  %s to %s\n", p.ID, p.FiscalYear, p.FiscalQuarter,
			p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"))
	}
	return nil
}

func runPeriodsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, err := time.Parse("2006-01-02", periodStart)
	if err != nil {
		return fmt.Errorf("bad start date %q (want YYYY-MM-DD)", periodStart)
	}
	end, err := time.Parse("2006-01-02", periodEnd)
	if err != nil {
		return fmt.Errorf("bad end date %q (want YYYY-MM-DD)", periodEnd)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	p := &models.QuotaPeriod{
		OrgID:         periodOrg,
		PeriodStart:   start,
		PeriodEnd:     end,
		FiscalYear:    periodYear,
		FiscalQuarter: periodQuarter,
	}
	if err := a.admin.CreateQuotaPeriod(ctx, p); err != nil {
		return err
	}
	fmt.Printf("✅ Quota period #%d (FY%d Q%d) created\n", p.ID, p.FiscalYear, p.FiscalQuarter)
	return nil
}
