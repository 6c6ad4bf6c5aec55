package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dt-demo-gcp/authserver/config"
	"github.com/dt-demo-gcp/authserver/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue or decode access tokens with the configured secret",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a 24h access token for a user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(tokenSubject)
		if err != nil {
			return fmt.Errorf("invalid --subject: %w", err)
		}

		token, err := newTokenService().Issue(userID, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Verify a token and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claims, err := newTokenService().Decode(args[0], time.Now())
		if errors.Is(err, services.ErrConfiguration) {
			return err
		}
		if err != nil {
			return fmt.Errorf("%s: %w", services.ErrorCode(err), err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(claims)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd, tokenDecodeCmd)
	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "", "user id to put in the sub claim")
	_ = tokenIssueCmd.MarkFlagRequired("subject")
}

func newTokenService() *services.TokenService {
	cfg := config.LoadConfig()
	return services.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.Issuer)
}
