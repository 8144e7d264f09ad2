package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	ruleOrg      string
	ruleMin      int
	ruleMax      int
	ruleBucket   string
	ruleSuppress bool
	ruleModifier float64
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage health score rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an org's health score rules",
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a health score rule",
	Long: `Adds a rule mapping a health score range to a probability modifier (or
suppression) for one forecast bucket. Ranges may overlap; resolution at
read time is deterministic.`,
	RunE: runRulesAdd,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a health score rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesOverlapsCmd = &cobra.Command{
	Use:   "overlaps",
	Short: "Report overlapping rule ranges",
	RunE:  runRulesOverlaps,
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&ruleOrg, "org", "", "organization id (required)")
	rulesCmd.MarkPersistentFlagRequired("org")

	f := rulesAddCmd.Flags()
	f.IntVar(&ruleMin, "min", 0, "minimum health score (inclusive)")
	f.IntVar(&ruleMax, "max", 0, "maximum health score (inclusive)")
	f.StringVar(&ruleBucket, "bucket", "", "forecast bucket: commit, best_case, pipeline")
	f.BoolVar(&ruleSuppress, "suppress", false, "suppress matching deals from the AI outlook")
	f.Float64Var(&ruleModifier, "modifier", 1.0, "probability modifier")
	rulesAddCmd.MarkFlagRequired("bucket")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesOverlapsCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rules, err := a.store.ListHealthRules(ctx, ruleOrg)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Printf("No rules configured for %s\n", ruleOrg)
		return nil
	}

	fmt.Printf("Health score rules for %s\n", ruleOrg)
	fmt.Printf("%s\n", strings.Repeat("─", 56))
	for _, r := range rules {
		effect := fmt.Sprintf("modifier %.4f", r.ProbabilityModifier)
		if r.Suppression {
			effect = "suppressed"
		}
		fmt.Printf("  #%-4d %-10s scores %2d-%2d  %s\n", r.ID, r.MappedCategory, r.MinScore, r.MaxScore, effect)
	}
	return nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	bucket, ok := bucketFromFlag(ruleBucket)
	if !ok {
		return fmt.Errorf("unknown bucket %q (want commit, best_case or pipeline)", ruleBucket)
	}

	rule := &models.HealthScoreRule{
		OrgID:               ruleOrg,
		MinScore:            ruleMin,
		MaxScore:            ruleMax,
		MappedCategory:      bucket,
		Suppression:         ruleSuppress,
		ProbabilityModifier: ruleModifier,
	}
	if err := a.admin.CreateHealthRule(ctx, rule); err != nil {
		return err
	}

	fmt.Printf("✅ Rule #%d created\n", rule.ID)
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad rule id %q", args[0])
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.admin.DeleteHealthRule(ctx, ruleOrg, id); err != nil {
		return err
	}
	fmt.Printf("✅ Rule #%d deleted\n", id)
	return nil
}

func runRulesOverlaps(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	overlaps, err := a.admin.RuleOverlaps(ctx, ruleOrg)
	if err != nil {
		return err
	}
	if len(overlaps) == 0 {
		fmt.Printf("✅ No overlapping rule ranges for %s\n", ruleOrg)
		return nil
	}

	fmt.Printf("⚠️  %d overlapping rule pair(s) for %s (resolution stays deterministic)\n", len(overlaps), ruleOrg)
	for _, o := range overlaps {
		fmt.Printf("  %s: rule #%d overlaps rule #%d\n", o.Category, o.RuleA, o.RuleB)
	}
	return nil
}

func bucketFromFlag(s string) (models.StageBucket, bool) {
	switch s {
	case "commit":
		return models.BucketCommit, true
	case "best_case":
		return models.BucketBestCase, true
	case "pipeline":
		return models.BucketPipeline, true
	}
	return "", false
}
