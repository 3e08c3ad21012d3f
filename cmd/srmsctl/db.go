package main

import (
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"srms_backend/internals/configs"
	database "srms_backend/internals/databases"
	authService "srms_backend/internals/features/users/auth/service"
)

func openDB(env *configs.Env) (*gorm.DB, error) {
	db, err := database.ConnectDB(env)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := openDB(env)
			if err != nil {
				return err
			}
			defer database.Close(db)
			log.Println("[INFO] ✅ schema is up to date")
			return nil
		},
	}
}

func seedAdminCommand() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account, or reset its name and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = configs.GetEnv("SRMS_ADMIN_PASSWORD")
			}
			env, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := openDB(env)
			if err != nil {
				return err
			}
			defer database.Close(db)

			tokens, err := authService.NewTokenService(env.JWTSecret, authService.AccessTokenTTL)
			if err != nil {
				return err
			}
			admin, err := authService.NewAuthService(db, tokens).SeedAdmin(cmd.Context(), email, name, password)
			if err != nil {
				return err
			}
			log.Printf("[INFO] ✅ admin %s (%s) ready", admin.AdminEmail, admin.AdminID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (default $SRMS_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
