package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "catalog-search-sync",
	Short: "Keeps the product search index consistent with the catalog database",
	Long: `catalog-search-sync pushes the products table into an Elasticsearch index,
either as a full rebuild or as an incremental run driven by a persisted
sync watermark.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
