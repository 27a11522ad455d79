package cli

import (
	"fmt"

	"github.com/kiranshivaraju/vince/internal/config"
	"github.com/kiranshivaraju/vince/internal/service"
	"github.com/spf13/cobra"
)

func newServiceKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service-key",
		Short: "Manage the service credential used by validation callers",
	}
	cmd.AddCommand(newServiceKeyShowCmd())
	cmd.AddCommand(newServiceKeyRotateCmd())
	return cmd
}

// ---------- service-key show ----------

func newServiceKeyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the version and preview of the current service key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			cred, err := service.NewServiceKeys(e.store, e.cache, 0).Current(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d  %s  (created %s)\n",
				cred.Version, cred.Preview, cred.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

// ---------- service-key rotate ----------

func newServiceKeyRotateCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Issue a new service key",
		Long: `Issue a new service key and make it current for every server sharing the
database. The old key stops working once the servers' cached copy expires,
or immediately when Redis is configured. The new key is printed once.`,
		Example: `  vincectl service-key rotate
  vincectl service-key rotate --env-file .env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			plaintext, cred, err := service.NewServiceKeys(e.store, e.cache, e.cfg.ServiceKey.CacheTTL).Rotate(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service key rotated (version %d):\n\n", cred.Version)
			fmt.Fprintf(out, "  %s\n\n", plaintext)

			if envFile != "" {
				if err := config.WriteEnvValue(envFile, "SERVICE_API_KEY", plaintext); err != nil {
					return err
				}
				fmt.Fprintf(out, "  SERVICE_API_KEY updated in %s\n", envFile)
			}
			fmt.Fprintln(out, "  Save this key now - it cannot be retrieved again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file whose SERVICE_API_KEY is updated")
	return cmd
}
