package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/tokendash/internal/collectors"
	"github.com/janekbaraniewski/tokendash/internal/config"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored provider API keys.",
	}
	cmd.AddCommand(newAuthSetCommand(), newAuthRemoveCommand(), newAuthListCommand())
	return cmd
}

func knownProvider(id string) error {
	if _, ok := collectors.ByID(id); !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	return nil
}

func newAuthSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> <api-key>",
		Short: "Store an API key for a provider.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			providerID, apiKey := args[0], args[1]
			if err := knownProvider(providerID); err != nil {
				return err
			}
			if err := config.SaveCredential(providerID, apiKey); err != nil {
				return err
			}
			fmt.Printf("Stored API key for %s in %s\n", providerID, config.CredentialsPath())
			return nil
		},
	}
}

func newAuthRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <provider>",
		Short: "Remove a stored API key. The provider falls back to its environment variable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			providerID := args[0]
			if err := knownProvider(providerID); err != nil {
				return err
			}
			if err := config.DeleteCredential(providerID); err != nil {
				return err
			}
			fmt.Printf("Removed stored API key for %s\n", providerID)
			return nil
		},
	}
}

func newAuthListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers with stored API keys.",
		RunE: func(_ *cobra.Command, _ []string) error {
			creds, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(creds.Keys))
			for id := range creds.Keys {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			if len(ids) == 0 {
				fmt.Println("No stored API keys.")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
