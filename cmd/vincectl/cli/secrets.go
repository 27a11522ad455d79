package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/kiranshivaraju/vince/internal/config"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Generate deployment secrets",
	}
	cmd.AddCommand(newSecretsGenerateCmd())
	return cmd
}

// ---------- secrets generate ----------

func newSecretsGenerateCmd() *cobra.Command {
	var (
		envFile      string
		hashPassword bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a JWT secret, admin password and service key",
		Long: `Generate fresh values for JWT_SECRET, ADMIN_PASSWORD and SERVICE_API_KEY.

Without --env-file the values are printed as KEY=value lines. With --env-file
they are written into that dotenv file, keeping its other entries. With
--hash-password the file receives ADMIN_PASSWORD_HASH (bcrypt) instead of the
plaintext password, which is printed once.`,
		Example: `  vincectl secrets generate
  vincectl secrets generate --env-file .env --hash-password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSecretsGenerate(cmd, envFile, hashPassword)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to write the secrets into")
	cmd.Flags().BoolVar(&hashPassword, "hash-password", false, "store a bcrypt hash of the admin password instead of the password")

	return cmd
}

type secret struct {
	key   string
	value string
}

func runSecretsGenerate(cmd *cobra.Command, envFile string, hashPassword bool) error {
	jwtSecret, err := credential.RandomBytes(32)
	if err != nil {
		return err
	}
	passwordBytes, err := credential.RandomBytes(15)
	if err != nil {
		return err
	}
	password := credential.EncodeURLSafe(passwordBytes)
	serviceKey, err := credential.NewServiceKey()
	if err != nil {
		return err
	}

	secrets := []secret{
		{"JWT_SECRET", hex.EncodeToString(jwtSecret)},
		{"SERVICE_API_KEY", serviceKey},
	}
	if hashPassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		secrets = append(secrets, secret{"ADMIN_PASSWORD_HASH", string(hash)})
	} else {
		secrets = append(secrets, secret{"ADMIN_PASSWORD", password})
	}

	out := cmd.OutOrStdout()
	if envFile == "" {
		for _, s := range secrets {
			fmt.Fprintf(out, "%s=%s\n", s.key, s.value)
		}
		if hashPassword {
			fmt.Fprintf(out, "# admin password: %s\n", password)
		}
		return nil
	}

	for _, s := range secrets {
		if err := config.WriteEnvValue(envFile, s.key, s.value); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Secrets written to %s\n", envFile)
	fmt.Fprintf(out, "  Admin password: %s\n", password)
	fmt.Fprintln(out, "  Save this password now - it cannot be retrieved again.")
	return nil
}
