// main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-records",
		Short: "Clinic patient records service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(sweepCodesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
