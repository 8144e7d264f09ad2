package main

import (
	"context"
	"fmt"

	"github.com/pipehealth/pipehealth-go/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and connectivity status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("PipeHealth Status")
	fmt.Println("═════════════════")
	fmt.Println()

	fmt.Println("⚙️  Configuration")
	fmt.Printf("   Mode:     %s\n", cfg.Mode)
	fmt.Printf("   Storage:  %s\n", cfg.Storage.Type)
	switch cfg.Storage.Type {
	case "postgres":
		dsn := cfg.Storage.PostgresDSN
		if dsn == "" {
			km := config.NewKeyringManager()
			dsn, _ = km.GetPostgresDSN()
		}
		fmt.Printf("   DSN:      %s\n", config.MaskSecret(dsn))
	case "sqlite":
		fmt.Printf("   Path:     %s\n", cfg.Storage.LocalPath)
	case "memory":
		if cfg.Storage.SeedFile != "" {
			fmt.Printf("   Seed:     %s\n", cfg.Storage.SeedFile)
		}
	}
	fmt.Println()

	fmt.Println("🗄️  Storage")
	a, err := newApp(ctx)
	if err != nil {
		fmt.Printf("   ❌ Not connected: %v\n", err)
		return nil
	}
	defer a.close()

	if _, err := a.store.ListOrganizations(ctx); err != nil {
		fmt.Printf("   ❌ Query failed: %v\n", err)
	} else {
		fmt.Println("   ✅ Connected")
	}
	fmt.Println()

	fmt.Println("⚡ Redis")
	if a.redis == nil {
		fmt.Println("   ⏭️  Disabled")
	} else if err := a.redis.HealthCheck(ctx); err != nil {
		fmt.Printf("   ❌ Unreachable: %v\n", err)
	} else {
		fmt.Printf("   ✅ Connected (%s:%d)\n", cfg.Redis.Host, cfg.Redis.Port)
	}
	fmt.Println()

	fmt.Println("📦 Local cache")
	if a.local == nil {
		fmt.Println("   ⏭️  Disabled")
	} else {
		fmt.Printf("   ✅ %s\n", cfg.Cache.Path)
	}
	fmt.Println()

	fmt.Println("🔐 Keyring")
	km := config.NewKeyringManager()
	if km.IsAvailable() {
		fmt.Println("   ✅ Available")
	} else {
		fmt.Println("   ⚠️  Unavailable (set PIPEHEALTH_POSTGRES_DSN instead)")
	}

	return nil
}
