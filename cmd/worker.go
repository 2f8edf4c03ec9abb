package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	authPostgres "github.com/frahmantamala/rbac-admin/internal/auth/postgres"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers like the refresh token cleaner.`,
}

// Token cleanup worker command
var tokenWorkerCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Start refresh token cleanup worker",
	Long:  `Periodically delete expired and revoked refresh tokens so the table does not grow unbounded.`,
	Run: func(cmd *cobra.Command, args []string) {
		startTokenWorker()
	},
}

var (
	purgeInterval  time.Duration
	purgeRetention time.Duration
)

func startTokenWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.L()

	db, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orm: %v\n", err)
		os.Exit(1)
	}

	repo := authPostgres.NewRepository(gormDB)

	log.Info("token cleanup worker started",
		"interval", purgeInterval,
		"retention", purgeRetention)

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	purge := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		removed, err := repo.PurgeTokens(ctx, purgeRetention)
		if err != nil {
			log.Error("token purge failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("purged refresh tokens", "removed", removed)
		}
	}

	// run once at startup, then on every tick
	purge()

	for {
		select {
		case <-ticker.C:
			purge()
		case sig := <-sigChan:
			log.Info("received signal, shutting down token worker", "signal", sig)
			if err := db.Close(); err != nil {
				log.Error("database close error", "error", err)
			}
			return
		}
	}
}

func init() {
	tokenWorkerCmd.Flags().DurationVar(&purgeInterval, "interval", time.Hour, "How often to run the purge")
	tokenWorkerCmd.Flags().DurationVar(&purgeRetention, "retention", 24*time.Hour, "How long to keep expired or revoked tokens")

	workerCmd.AddCommand(tokenWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
