/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/cvdreamjob/apiserver/internal/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer session tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for a user",
	Long: `Issues an HS256 bearer token signed with JWT_SECRET. Usage:

	cvdream token issue --user <id> [--ttl 24h]
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}

		userID, _ := cmd.Flags().GetString("user")
		userID = strings.TrimSpace(userID)
		if userID == "" {
			return errors.New("--user is required")
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.IssueToken(userID, cfg.JWTSecret, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().String("user", "", "user id the token is issued for")
	tokenIssueCmd.Flags().Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
}
