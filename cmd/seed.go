package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/davidschrooten/catalog-search-sync/config"
	"github.com/davidschrooten/catalog-search-sync/internal/sqlstore"
)

// seedCmd bootstraps the catalog database with demo data
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the products table and insert demo data",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := sqlstore.NewStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open catalog database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	inserted, err := store.Seed(ctx)
	if err != nil {
		return err
	}

	log.Printf("Seed completed, %d rows inserted", inserted)
	return nil
}
