package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidschrooten/catalog-search-sync/config"
)

// syncCmd runs a single synchronization pass and exits
var syncCmd = &cobra.Command{
	Use:       "sync [full|incremental]",
	Short:     "Run one synchronization pass",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"full", "incremental"},
	RunE:      runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx := context.Background()

	switch args[0] {
	case "full":
		_, err = svcs.syncer.FullSync(ctx)
	case "incremental":
		_, err = svcs.syncer.IncrementalSync(ctx)
	}
	return err
}
