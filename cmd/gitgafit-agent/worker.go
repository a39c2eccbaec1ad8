package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quanluon/gitgafit-web-sub000/config"
	"github.com/quanluon/gitgafit-web-sub000/db"
	"github.com/quanluon/gitgafit-web-sub000/errors"
	"github.com/quanluon/gitgafit-web-sub000/logger"
	"github.com/quanluon/gitgafit-web-sub000/push"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background push worker",
	Long: `Run the background push worker.

The worker receives push-service configuration from the agent over a unix
socket and caches it durably, so it can initialize itself after restarts
even when the agent is not running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		log := logger.Named("worker")

		database, err := db.Open(cfg.Database.Path, log)
		if err != nil {
			return err
		}
		defer database.Close()

		w := push.NewWorker(push.NewStore(database), cfg.Push.WorkerSocket, log)
		if err := w.SelfInitialize(); err != nil {
			log.Warnw("Worker self-initialization failed", "error", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return w.Run(ctx)
	},
}
