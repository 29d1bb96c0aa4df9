package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:           "dataprovider",
	Short:         "Admin UI data provider over GraphQL, DynamoDB and admin queries",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dataprovider.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files loaded before the configuration")

	rootCmd.AddCommand(serveCmd(), listCmd(), getCmd(), operationsCmd(), versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
