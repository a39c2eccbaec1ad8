package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quanluon/gitgafit-web-sub000/config"
	"github.com/quanluon/gitgafit-web-sub000/coordinator"
	"github.com/quanluon/gitgafit-web-sub000/db"
	"github.com/quanluon/gitgafit-web-sub000/errors"
	"github.com/quanluon/gitgafit-web-sub000/internal/apiclient"
	"github.com/quanluon/gitgafit-web-sub000/ledger"
	"github.com/quanluon/gitgafit-web-sub000/logger"
	"github.com/quanluon/gitgafit-web-sub000/notify"
	"github.com/quanluon/gitgafit-web-sub000/push"
	"github.com/quanluon/gitgafit-web-sub000/realtime"
	"github.com/quanluon/gitgafit-web-sub000/reconcile"
)

var (
	runUserID   string
	runPlatform string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track background generations for a user session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runUserID == "" {
			return errors.New("--user is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		log := logger.Named("agent")

		database, err := db.Open(cfg.Database.Path, log)
		if err != nil {
			return err
		}
		defer database.Close()

		jobs := ledger.New(ledger.NewStore(database), logger.Named("ledger"), cfg.Jobs.Retention())

		api := apiclient.New(cfg.API.BaseURL, func() string { return cfg.API.Token }).
			WithRateLimit(cfg.API.RateLimitRPS)

		rt := realtime.NewAdapter(
			cfg.Realtime.URL,
			jobs,
			logger.Named("realtime"),
			cfg.Realtime.ReconnectAttempts,
			cfg.Realtime.ReconnectBackoff(),
		)

		pushAdapter := push.NewAdapter(push.Options{
			Store:     push.NewStore(database),
			Link:      push.NewSocketLink(cfg.Push.WorkerSocket),
			Tokens:    push.NewEndpointTokenSource(api, cfg.Push.TokenEndpoint),
			Registrar: push.NewRegistrar(api),
			Jobs:      jobs,
			Platform:  parsePlatform(runPlatform),
			AppConfig: json.RawMessage(cfg.Push.AppConfig),
			Log:       logger.Named("push"),
		})

		coord := coordinator.New(coordinator.Options{
			Jobs:       jobs,
			Dedup:      notify.New(jobs, nil, logger.Named("notify"), cfg.Jobs.AlertGrace()),
			Realtime:   rt,
			Push:       pushAdapter,
			Reconciler: reconcile.New(api, jobs, logger.Named("reconcile")),
			Log:        log,
		})

		// Hot-reload the settings that can change without a restart.
		if path := config.ProjectConfigPath(); path != "" {
			watcher, err := config.NewConfigWatcher(path)
			if err != nil {
				log.Warnw("Config watcher unavailable", "path", path, "error", err)
			} else {
				watcher.OnReload(func(next *config.Config) error {
					api.WithRateLimit(next.API.RateLimitRPS)
					log.Infow("Applied reloaded config",
						"rate_limit_rps", next.API.RateLimitRPS)
					return nil
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := coord.Start(ctx, runUserID); err != nil {
			return err
		}
		defer coord.Stop()

		log.Infow("Agent running; press Ctrl+C to stop", "user", runUserID)
		<-ctx.Done()
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runUserID, "user", "", "User ID to track generations for")
	runCmd.Flags().StringVar(&runPlatform, "platform", "web", "Client platform hint (ios, android, web)")
}

// parsePlatform maps the --platform flag onto the registration platform.
func parsePlatform(s string) push.Platform {
	switch s {
	case "ios":
		return push.PlatformIOS
	case "android":
		return push.PlatformAndroid
	case "web":
		return push.PlatformWeb
	default:
		return push.PlatformUnknown
	}
}
