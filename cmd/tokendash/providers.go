package main

import (
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/tokendash/internal/collectors"
	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/daemon"
)

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and whether credentials resolve for them.",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			creds, err := config.LoadCredentials()
			if err != nil {
				creds = config.Credentials{}
			}
			resolve := config.Resolver(cfg, creds)

			var out []daemon.ProviderDescriptor
			for _, col := range collectors.All() {
				if !cfg.ProviderEnabled(col.ID()) {
					continue
				}
				info := col.Describe()
				out = append(out, daemon.ProviderDescriptor{
					ID:           col.ID(),
					Name:         info.Name,
					Configured:   col.IsConfigured(resolve(col.ID())),
					Capabilities: info.Capabilities,
					DocURL:       info.DocURL,
				})
			}
			return printJSON(out)
		},
	}
}
