package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/tokendash/internal/appupdate"
	"github.com/janekbaraniewski/tokendash/internal/version"
)

func main() {
	// Provider API keys are commonly kept in a local .env during development.
	_ = godotenv.Load()

	root := cobra.Command{
		Use:           "tokendash",
		Short:         "tokendash monitors token usage, spend and balances across AI providers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		newStatusCommand(),
		newCachedCommand(),
		newUsageCommand(),
		newProvidersCommand(),
		newDaemonCommand(),
		newAuthCommand(),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	var checkUpdate bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tokendash version.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println(version.String())
			if !checkUpdate {
				return nil
			}
			result, err := appupdate.Check(cmd.Context(), appupdate.CheckOptions{
				CurrentVersion: version.Version,
			})
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}
			if result.UpdateAvailable {
				fmt.Printf("Update available: %s (run: %s)\n", result.LatestVersion, result.UpgradeHint)
			} else {
				fmt.Println("Up to date.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkUpdate, "check-update", false, "check GitHub releases for a newer version")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
