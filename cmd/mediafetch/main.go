package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:          "mediafetch",
	Short:        "Server-side media fetching into an object store",
	Long:         "mediafetch asks the object store to pull every media URL listed on an item, skips objects that already exist, and writes the stored locations back onto the item.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MEDIAFETCH_CONFIG"), "Path to YAML config file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
