package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/auth"
	"github.com/spec-kit/ticket-portal/internal/config"
	"github.com/spec-kit/ticket-portal/internal/persistence"
	"github.com/spec-kit/ticket-portal/internal/repository"
	"github.com/spec-kit/ticket-portal/internal/service"
)

func newCreateAdminCommand() *cobra.Command {
	var input service.CreateAdminInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account or promote an existing user",
		Long: `Create an admin account. If the username already exists the user is promoted
and its password replaced. The password may also be supplied via ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Password == "" {
				input.Password = os.Getenv("ADMIN_PASSWORD")
			}
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *persistence.Database, logger *zap.Logger) error {
				if err := persistence.RunMigrations(ctx, db, logger); err != nil {
					return err
				}
				users := repository.NewUserRepository(db)
				tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
				svc := service.NewAuthService(cfg.Auth, users, tokens, auth.NewMemoryRevocations(), logger)

				user, created, err := svc.CreateAdmin(ctx, input)
				if err != nil {
					return err
				}
				verb := "promoted"
				if created {
					verb = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin %q %s\n", user.Username, verb)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input.Username, "username", "u", "", "Admin username (required)")
	cmd.Flags().StringVarP(&input.Email, "email", "e", "", "Contact email, required for new accounts")
	cmd.Flags().StringVarP(&input.Password, "password", "p", "", "Password (default: $ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
