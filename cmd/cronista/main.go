package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "cronista",
		Short: "Consistency and reconciliation engine for the chronicle knowledge base",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "cronista.yaml", "Path to the project config")
	root.AddCommand(checkCmd())
	root.AddCommand(fixCmd())
	root.AddCommand(linkCmd())
	root.AddCommand(inferCmd())
	root.AddCommand(partitionCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
