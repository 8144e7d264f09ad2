package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/spf13/cobra"
)

var (
	visOrg     string
	visManager string
	visVisible string
)

var visibilityCmd = &cobra.Command{
	Use:   "visibility",
	Short: "Manage the reporting hierarchy and visibility edges",
}

var visibilityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an org's reporting chains and explicit edges",
	RunE:  runVisibilityShow,
}

var visibilityGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant a manager visibility into a user's deals",
	RunE:  runVisibilityGrant,
}

var visibilityRevokeCmd = &cobra.Command{
	Use:   "revoke <edge-id>",
	Short: "Revoke a visibility edge",
	Args:  cobra.ExactArgs(1),
	RunE:  runVisibilityRevoke,
}

var visibilitySetManagerCmd = &cobra.Command{
	Use:   "set-manager <user-id> [manager-id]",
	Short: "Set or clear a user's manager",
	Long: `Sets the user's manager within the org reporting chain. Omit the
manager id to clear the assignment. Assignments that would create a
reporting cycle are rejected.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runVisibilitySetManager,
}

func init() {
	visibilityCmd.PersistentFlags().StringVar(&visOrg, "org", "", "organization id (required)")
	visibilityCmd.MarkPersistentFlagRequired("org")

	f := visibilityGrantCmd.Flags()
	f.StringVar(&visManager, "manager", "", "manager user id")
	f.StringVar(&visVisible, "user", "", "user whose deals become visible")
	visibilityGrantCmd.MarkFlagRequired("manager")
	visibilityGrantCmd.MarkFlagRequired("user")

	visibilityCmd.AddCommand(visibilityShowCmd)
	visibilityCmd.AddCommand(visibilityGrantCmd)
	visibilityCmd.AddCommand(visibilityRevokeCmd)
	visibilityCmd.AddCommand(visibilitySetManagerCmd)
}

func runVisibilityShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.store.ListUsers(ctx, visOrg)
	if err != nil {
		return err
	}
	edges, err := a.store.ListVisibilityEdges(ctx, visOrg)
	if err != nil {
		return err
	}

	fmt.Printf("Reporting chains for %s\n", visOrg)
	for _, u := range users {
		mgr := "(none)"
		if u.ManagerUserID != nil {
			mgr = *u.ManagerUserID
		}
		marker := ""
		if u.SeeAllVisibility {
			marker = "  [sees all]"
		}
		if !u.Active {
			marker += "  [inactive]"
		}
		fmt.Printf("  %-12s %-8s manager: %s%s\n", u.ID, u.Role, mgr, marker)
	}

	if len(edges) > 0 {
		fmt.Println("\nExplicit edges")
		for _, e := range edges {
			fmt.Printf("  #%-4d %s sees %s\n", e.ID, e.ManagerUserID, e.VisibleUserID)
		}
	}
	return nil
}

func runVisibilityGrant(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	edge := &models.VisibilityEdge{
		OrgID:         visOrg,
		ManagerUserID: visManager,
		VisibleUserID: visVisible,
	}
	if err := a.admin.CreateVisibilityEdge(ctx, edge); err != nil {
		return err
	}
	fmt.Printf("✅ Edge #%d: %s can now see %s\n", edge.ID, visManager, visVisible)
	return nil
}

func runVisibilityRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad edge id %q", args[0])
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.admin.DeleteVisibilityEdge(ctx, id); err != nil {
		return err
	}
	fmt.Printf("✅ Edge #%d revoked\n", id)
	return nil
}

func runVisibilitySetManager(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	userID := args[0]
	var managerID *string
	if len(args) == 2 {
		managerID = &args[1]
	}

	if err := a.admin.SetUserManager(ctx, visOrg, userID, managerID); err != nil {
		return err
	}
	if managerID == nil {
		fmt.Printf("✅ Cleared manager for %s\n", userID)
	} else {
		fmt.Printf("✅ %s now reports to %s\n", userID, *managerID)
	}
	return nil
}
