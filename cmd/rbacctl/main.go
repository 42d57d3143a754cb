package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MohamedNashad/seafood-node-api/config"
	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/auth"
	"github.com/MohamedNashad/seafood-node-api/internal/mailer"
	"github.com/MohamedNashad/seafood-node-api/internal/service"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	cfg := config.Load()
	if err := util.InitLogger(util.LogConfig{Env: cfg.Server.Env, Level: cfg.Observ.LogLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer util.SyncLogger()

	var (
		databaseURL = cfg.Database.URL
		timeout     = 2 * time.Minute
	)

	root := &cobra.Command{
		Use:          "rbacctl",
		Short:        "Schema and access control bootstrap for the seafood API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", databaseURL, "Postgres URL (env DATABASE_URL)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Overall command timeout")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := store.NewStore(databaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("applied %s\n", name)
			}
			return nil
		},
	}

	var seedFile string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create missing roles, permissions and bootstrap admins from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadSeed(seedFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := store.NewStore(databaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			access := service.NewAccessControl(db.RBAC())
			rbac := service.NewRBACService(db.RBAC(), access)
			report, err := rbac.Seed(ctx, *data)
			if err != nil {
				return err
			}
			fmt.Printf("permissions created: %d, roles created: %d, roles assigned: %d\n",
				report.PermissionsCreated, report.RolesCreated, report.RolesAssigned)

			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Hour)
			users := service.NewUserService(db, access, mailer.Discard{}, tokens, cfg.Auth.BcryptCost)
			for _, admin := range data.Admins {
				if err := seedAdmin(ctx, db, users, rbac, admin); err != nil {
					return fmt.Errorf("admin %s: %w", admin.Email, err)
				}
				fmt.Printf("admin %s holds %s\n", admin.Email, admin.Role)
			}
			return nil
		},
	}
	seedCmd.Flags().StringVar(&seedFile, "file", "config/rbac_seed.yaml", "Seed file")

	root.AddCommand(migrateCmd, seedCmd)

	if err := root.Execute(); err != nil {
		util.GetLogger().Error("rbacctl failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadSeed(path string) (*service.SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var data service.SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &data, nil
}

// seedAdmin registers the account unless the email is taken, then grants the role
func seedAdmin(ctx context.Context, users store.UserRepository, svc *service.UserService, rbac *service.RBACService, admin service.SeedAdmin) error {
	roleID, err := rbac.RoleIDBySlug(ctx, admin.Role)
	if err != nil {
		return err
	}

	userID := ""
	created, err := svc.Register(ctx, admin.UserInput)
	switch {
	case err == nil:
		userID = created.ID
	case errors.Is(err, apperr.ErrConflict):
		existing, err := users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(admin.Email)))
		if err != nil {
			return err
		}
		userID = existing.ID
	default:
		return err
	}

	return rbac.AssignRolesToUser(ctx, userID, []string{roleID})
}
