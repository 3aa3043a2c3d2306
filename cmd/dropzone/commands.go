package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/dropzone-hq/dropzone/cmd/dropzone/cli"
	"github.com/dropzone-hq/dropzone/internal/aircraft"
	"github.com/dropzone-hq/dropzone/internal/app"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/jobs"
)

// runCommand dispatches the maintenance subcommands. Anything else falls
// through to the HTTP server in main.
func runCommand(ctx context.Context, name string, args []string) error {
	switch name {
	case "create-admin":
		return runCreateAdmin(ctx, args)
	case "sweep-loads":
		return runSweepLoads(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (supported: create-admin, sweep-loads)", name)
	}
}

func runCreateAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "login name for the admin account")
	password := fs.String("password", "", "password for the admin account")
	firstName := fs.String("first-name", "Admin", "first name")
	lastName := fs.String("last-name", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	result, err := cli.NewAdminCLI(pool).CreateAdmin(ctx, *username, *password, *firstName, *lastName)
	if err != nil {
		return err
	}
	if result.Created {
		fmt.Printf("created admin %q (user id %d)\n", *username, result.UserID)
	} else {
		fmt.Printf("updated admin %q (user id %d)\n", *username, result.UserID)
	}
	return nil
}

func runSweepLoads(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep-loads", flag.ExitOnError)
	enqueue := fs.Bool("enqueue", false, "enqueue the sweep task instead of running it in process")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	if *enqueue {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		defer func() {
			if err := jobsCLI.Close(); err != nil {
				logger.Warn("jobs cli close", slog.Any("error", err))
			}
		}()
		info, err := jobsCLI.Trigger(ctx, jobs.TaskLoadStatusSweep)
		if err != nil {
			return fmt.Errorf("enqueue sweep: %w", err)
		}
		fmt.Printf("enqueued %s (task id %s)\n", info.Type, info.ID)
		if stats, err := jobsCLI.InspectQueue(ctx); err == nil {
			fmt.Printf("queue %s: %d pending, %d active\n", stats.Queue, stats.Pending, stats.Active)
		}
		return nil
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	fleet := aircraft.NewService(aircraft.NewRepository(pool))
	service := loads.NewService(loads.NewRepository(pool), fleet, logger, nil)
	transitions, err := service.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep loads: %w", err)
	}
	for _, t := range transitions {
		fmt.Printf("load %d -> %s\n", t.LoadID, t.To)
	}
	fmt.Printf("swept %d load(s)\n", len(transitions))
	return nil
}
