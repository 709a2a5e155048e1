package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/internal/service/staff"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/reference"
	"github.com/jwalitptl/hospital-api/pkg/security"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hospitalctl",
		Short:         "Operator tools for the hospital front-desk API",
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (default: search ., ./config, /app/config)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(seedAdminCmd())
	rootCmd.AddCommand(eventsCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig()
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", len(applied))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the migrations built into this binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := postgres.LoadMigrations()
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Fprintf(cmd.OutOrStdout(), "%03d %s\n", m.Version, m.Name)
			}
			return nil
		},
	})

	return cmd
}

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Encode and decode appointment references",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "decode REF-dddd-dddd-ddd-dddd",
		Short: "Print the ids packed into a reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := reference.Decode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "patient_id=%d doctor_id=%d token_no=%d slot_id=%d\n",
				t.PatientID, t.DoctorID, t.TokenNo, t.SlotID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "encode PATIENT_ID DOCTOR_ID TOKEN_NO SLOT_ID",
		Short: "Build the reference for the given ids",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nums [4]int64
			for i, arg := range args {
				n, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("argument %d: %q is not a number", i+1, arg)
				}
				nums[i] = n
			}
			ref, err := reference.Encode(reference.Tuple{
				PatientID: nums[0],
				DoctorID:  nums[1],
				TokenNo:   int(nums[2]),
				SlotID:    nums[3],
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	})

	return cmd
}

func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			store := postgres.NewStore(db)
			defer store.Close()

			return seedAdmin(ctx, cmd.OutOrStdout(), store, bcrypt.DefaultCost, username, password, name)
		},
	}
	cmd.Flags().String("username", "admin", "Login name of the admin")
	cmd.Flags().String("password", "", "Password of the admin")
	cmd.Flags().String("name", "Administrator", "Display name of the admin")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedAdmin(ctx context.Context, out io.Writer, store repository.Store, cost int, username, password, name string) error {
	svc := staff.NewService(store, security.NewBcryptHasher(cost), logger.Nop())
	created, err := svc.SeedAdmin(ctx, username, password, name)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "admin %q created\n", username)
	} else {
		fmt.Fprintf(out, "admin %q already exists, nothing to do\n", username)
	}
	return nil
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published domain events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print events from the Redis channel until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			broker, err := redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), nil)
			if err != nil {
				return err
			}
			defer broker.Close()

			msgs, err := broker.Subscribe(ctx, cfg.Redis.Channel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", cfg.Redis.Channel)
			for msg := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
			}
			return nil
		},
	})

	return cmd
}
