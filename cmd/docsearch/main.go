// Command docsearch is a terminal client for the document search backend.
//
// Usage:
//
//	docsearch login --id-token <token>
//	docsearch ask "who flew to Santa Fe in 2002?"
//	docsearch search "flight logs" --doc-type flight_log --limit 5
//	docsearch mock-server --addr :8000
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "docsearch",
		Short:         "Search documents and stream AI answers from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			teardown()
		},
	}
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(loginCmd, whoamiCmd, logoutCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd, docCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mockServerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
